package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirerelay-server/internal/proto"
)

// chatLine is what chat clients exchange through general broadcast.
type chatLine struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "display name announced with join_chat")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, proto.Envelope{Command: proto.CommandJoin, Sender: *user}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Type messages and press Enter to send. /ping measures round trip. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *user)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var doc struct {
			proto.Envelope
			Users      []string `json:"users"`
			Text       string   `json:"text"`
			Message    string   `json:"message"`
			ServerTime int64    `json:"serverTime"`
		}
		if err := wsjson.Read(ctx, conn, &doc); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch {
		case doc.Command == proto.CommandUpdateUserList:
			fmt.Printf("* online: %s\n", strings.Join(doc.Users, ", "))
		case doc.Type == proto.TypeError:
			fmt.Printf("! %s\n", doc.Message)
		case doc.Type == proto.TypePong:
			fmt.Printf("* pong, server time %s\n", time.UnixMilli(doc.ServerTime).Format(time.RFC3339Nano))
		case doc.Text != "":
			fmt.Printf("%s: %s\n", doc.Sender, doc.Text)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, user string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var out any = chatLine{Sender: user, Text: text}
			if text == "/ping" {
				out = map[string]any{"type": proto.TypePing, "timestamp": time.Now().UnixMilli()}
			}
			if err := wsjson.Write(ctx, conn, out); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
