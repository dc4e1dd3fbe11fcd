package network

// 事件类型
const (
	EventHello     = "hello"
	EventStandings = "standings"
	EventGameEnded = "game_ended"
	EventPing      = "ping"
)
