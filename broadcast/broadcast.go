// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/wiezen/models"
	"github.com/wfunc/wiezen/network"
	"github.com/wfunc/wiezen/session"
)

// 广播接口
type Broadcaster interface {
	StandingsChanged(update models.StandingsUpdate)
	GameEnded(gameID uint)
}

// GameBroadcaster pushes ledger updates to every watcher of a game.
type GameBroadcaster struct {
	sessionManager *session.Manager
}

func NewGameBroadcaster(sessionManager *session.Manager) *GameBroadcaster {
	return &GameBroadcaster{sessionManager: sessionManager}
}

func (b *GameBroadcaster) StandingsChanged(update models.StandingsUpdate) {
	for _, s := range b.sessionManager.ByGame(update.GameID) {
		if err := s.Send(network.EventStandings, update); err != nil {
			// 发送失败的连接留给读循环去收尾
			continue
		}
	}
}

func (b *GameBroadcaster) GameEnded(gameID uint) {
	for _, s := range b.sessionManager.ByGame(gameID) {
		if err := s.Send(network.EventGameEnded, map[string]uint{"game_id": gameID}); err != nil {
			continue
		}
	}
}
