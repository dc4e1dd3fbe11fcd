package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type standing struct {
	PlayerID uint   `json:"player_id"`
	Name     string `json:"name"`
	Total    int    `json:"total"`
}

type standingsUpdate struct {
	GameID     uint       `json:"game_id"`
	Standings  []standing `json:"standings"`
	RoundCount int        `json:"round_count"`
}

func printStandings(update standingsUpdate) {
	sort.Slice(update.Standings, func(i, j int) bool {
		return update.Standings[i].Total > update.Standings[j].Total
	})
	fmt.Printf("--- game %d, %d rounds ---\n", update.GameID, update.RoundCount)
	for _, s := range update.Standings {
		fmt.Printf("%-12s %+d\n", s.Name, s.Total)
	}
}

func main() {
	host := flag.String("host", "localhost:8080", "score server address")
	gameID := flag.Uint("game", 0, "game to watch (0 = active game)")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	if *gameID != 0 {
		u.RawQuery = fmt.Sprintf("game_id=%d", *gameID)
	}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			var env envelope
			if err := json.Unmarshal(message, &env); err != nil {
				log.Printf("Received invalid message: %s", string(message))
				continue
			}
			switch env.Event {
			case "hello", "standings":
				var update standingsUpdate
				if err := json.Unmarshal(env.Data, &update); err != nil {
					log.Println("Decode error:", err)
					continue
				}
				printStandings(update)
			case "game_ended":
				log.Println("Game ended, closing.")
				return
			case "ping":
				// keepalive, nothing to show
			default:
				log.Printf("<- %s: %s", env.Event, string(env.Data))
			}
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("Interrupt received, closing connection.")
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Println("Write close error:", err)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}
