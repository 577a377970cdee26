package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type event struct {
	Type           string  `json:"type"`
	ChallengeID    string  `json:"challenge_id"`
	ChallengeTitle string  `json:"challenge_title"`
	UserTelegramID int64   `json:"user_telegram_id"`
	Amount         int64   `json:"amount"`
	Progress       float64 `json:"progress"`
}

func main() {
	url := flag.String("url", "ws://localhost:8888/api/v1/ws", "event stream url")
	flag.Parse()

	// signed init data copied from the mini-app, or any init data when the
	// server runs with telegramAuth.debug
	initData := os.Getenv("TELEGRAM_INIT_DATA")

	header := http.Header{}
	header.Add("Authorization", "Telegram "+initData)

	conn, _, err := websocket.DefaultDialer.Dial(*url, header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	messageQueue := make(chan []byte)

	go func() {
		defer close(messageQueue)
		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}

			messageQueue <- p
		}
	}()

	for message := range messageQueue {
		var e event
		if err := json.Unmarshal(message, &e); err != nil {
			log.Printf("Received:\n%s\n", message)
			continue
		}

		out, _ := json.MarshalIndent(e, "", "  ")
		log.Printf("Received %s:\n%s\n", e.Type, out)
	}
}
