package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirerelay-server/internal/proto"
)

// screenshot mirrors what capture agents send.
type screenshot struct {
	Action string `json:"action"`
	Screen int    `json:"screen"`
	Data   string `json:"data"`
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	size := flag.Int("size", 90000, "bytes of synthetic screenshot data to relay")
	screen := flag.Int("screen", 0, "screen index to announce")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	viewer := dial(ctx, *addr)
	defer viewer.Close(websocket.StatusNormalClosure, "done")
	agent := dial(ctx, *addr)
	defer agent.Close(websocket.StatusNormalClosure, "done")

	if err := wsjson.Write(ctx, viewer, proto.Envelope{Command: proto.CommandSubscribe}); err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	// The relay handles each connection independently; give the role a moment to land.
	time.Sleep(200 * time.Millisecond)

	data := strings.Repeat("A", *size)
	start := time.Now()
	if err := wsjson.Write(ctx, agent, screenshot{Action: proto.ActionScreenshotResult, Screen: *screen, Data: data}); err != nil {
		log.Fatalf("send screenshot: %v", err)
	}

	got, chunks, err := receive(ctx, viewer)
	if err != nil {
		log.Fatalf("receive: %v", err)
	}
	if got != data {
		log.Fatalf("payload mismatch: got %d bytes, want %d", len(got), len(data))
	}
	fmt.Printf("relayed %d bytes in %d chunk(s) in %s\n", len(got), chunks, time.Since(start))
}

func dial(ctx context.Context, addr string) *websocket.Conn {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	conn.SetReadLimit(64 << 20)
	return conn
}

// receive reads until a whole screenshot arrived, either as one frame or as chunks.
func receive(ctx context.Context, conn *websocket.Conn) (string, int, error) {
	var r proto.Reassembler
	chunks := 0
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return "", chunks, err
		}

		env, err := proto.DecodeEnvelope(raw)
		if err != nil {
			return "", chunks, fmt.Errorf("decode: %w", err)
		}
		switch {
		case env.Command == proto.CommandUpdateUserList:
			continue
		case env.HasKind(proto.TypeScreenshotChunk):
			var c proto.Chunk
			if err := json.Unmarshal(raw, &c); err != nil {
				return "", chunks, fmt.Errorf("decode chunk: %w", err)
			}
			chunks++
			data, done, err := r.Add(c)
			if err != nil {
				return "", chunks, err
			}
			if done {
				return data, chunks, nil
			}
		case env.HasKind(proto.ActionScreenshotResult):
			data, _ := env.DataString()
			return data, 1, nil
		default:
			log.Printf("ignoring frame: %s", raw)
		}
	}
}
