package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirerelay-server/internal/config"
	"github.com/vovakirdan/wirerelay-server/internal/core"
	"github.com/vovakirdan/wirerelay-server/internal/proto"
	"github.com/vovakirdan/wirerelay-server/internal/store"
	"github.com/vovakirdan/wirerelay-server/internal/store/sqlite"
)

type testServer struct {
	ts      *httptest.Server
	hub     *core.Hub
	journal store.Store
}

func (s *testServer) wsURL() string {
	return strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws"
}

// startTestServer runs a hub and HTTP server backed by an in-memory journal.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	if mutate != nil {
		mutate(&cfg)
	}

	journal := createTestStore(t)
	logger := zerolog.Nop()
	hub := core.NewHub(core.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		IncludeSender:     cfg.IncludeSender,
		BinaryPreamble:    cfg.BinaryPreamble,
		Journal:           journal,
		Chunks: core.ChunkPolicy{
			Threshold: cfg.ChunkThreshold,
			Size:      cfg.ChunkSize,
			Prefixes:  cfg.ChunkPrefixes,
		},
		Rules: core.Rules{
			JoinCommand:      cfg.JoinCommand,
			SubscribeCommand: cfg.SubscribeCommand,
			ArtifactTypes:    cfg.ArtifactTypes,
		},
	}, &logger)

	server := NewServer(hub, journal, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		hub.Shutdown()
		ts.Close()
	})

	return &testServer{ts: ts, hub: hub, journal: journal}
}

// createTestStore creates an in-memory SQLite journal.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	conn.SetReadLimit(1 << 20)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, wsjson.Write(ctx, conn, v))
}

// readNonRoster returns the next text document that is not a roster announcement.
func readNonRoster(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()
	for {
		var doc map[string]any
		require.NoError(t, wsjson.Read(ctx, conn, &doc))
		if doc["command"] == proto.CommandUpdateUserList {
			continue
		}
		return doc
	}
}

// readRoster returns the users of the next roster announcement.
func readRoster(t *testing.T, ctx context.Context, conn *websocket.Conn) []string {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var list proto.UserList
		if json.Unmarshal(data, &list) == nil && list.Command == proto.CommandUpdateUserList {
			return list.Users
		}
	}
}

const (
	waitFor = 3 * time.Second
	tickFor = 10 * time.Millisecond
)
