package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/Cheese-ChessVote/internal/chatfeed"
)

func main() {
	baseURL := os.Getenv("CHAT_API_URL")
	wsURL := os.Getenv("CHAT_WS_URL")

	if baseURL == "" && wsURL == "" {
		log.Fatal("CHAT_API_URL or CHAT_WS_URL is required")
	}

	if baseURL != "" {
		client := chatfeed.NewClient(baseURL, chatfeed.WithTimeout(8*time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		h, err := client.Health(ctx)
		cancel()
		if err != nil {
			log.Printf("/health error: %v", err)
		} else {
			log.Printf("/health ok: status=%s channels=%s", h.Status, strings.Join(h.Channels, ","))
		}
	}

	if wsURL == "" {
		log.Println("CHAT_WS_URL not set; skipping WS check")
		return
	}

	ws := chatfeed.NewWebSocket(wsURL, 5)
	ws.OnStateChange(func(state chatfeed.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *chatfeed.Message) {
		ev, ok := chatfeed.ToVoteEvent(msg)
		if !ok {
			fmt.Printf("WS msg dropped room=%s text=%q\n", msg.Room, msg.Msg)
			return
		}
		fmt.Printf("WS vote channel=%s voter=%s roles=%+v text=%q\n", ev.SourceChannel, ev.Voter.ID, ev.Voter.Roles, ev.RawText)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	// Observe for a short window
	t := time.NewTimer(10 * time.Second)
	<-t.C

	_ = ws.Close(context.Background())
}
