package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay-server/internal/proto"
)

var errNoPong = errors.New("no pong")

// fakeTransport records outbound frames in memory.
type fakeTransport struct {
	mu          sync.Mutex
	frames      []Frame
	batches     int
	pings       int
	silent      bool
	closed      bool
	closeReason string
	sendErr     error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Send(frames ...Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, frames...)
	f.batches++
	return nil
}

func (f *fakeTransport) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if f.silent {
		return errNoPong
	}
	return nil
}

func (f *fakeTransport) Close(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeReason = reason
}

func (f *fakeTransport) setSilent(silent bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent = silent
}

func (f *fakeTransport) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) sent() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
	f.batches = 0
}

// docs decodes every text frame as a JSON object.
func (f *fakeTransport) docs(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, fr := range f.sent() {
		if fr.Kind != FrameText {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(fr.Data, &doc); err != nil {
			t.Fatalf("outbound frame is not json: %v", err)
		}
		out = append(out, doc)
	}
	return out
}

// raw returns the text frames that are not roster announcements.
func (f *fakeTransport) raw() []string {
	var out []string
	for _, fr := range f.sent() {
		var list proto.UserList
		if fr.Kind == FrameText && json.Unmarshal(fr.Data, &list) == nil && list.Command == proto.CommandUpdateUserList {
			continue
		}
		out = append(out, string(fr.Data))
	}
	return out
}

// lastRoster returns the users of the most recent roster announcement.
func (f *fakeTransport) lastRoster(t *testing.T) ([]string, bool) {
	t.Helper()
	frames := f.sent()
	for i := len(frames) - 1; i >= 0; i-- {
		var list proto.UserList
		if json.Unmarshal(frames[i].Data, &list) == nil && list.Command == proto.CommandUpdateUserList {
			return list.Users, true
		}
	}
	return nil, false
}

// chunks returns received chunk documents in arrival order.
func (f *fakeTransport) chunks(t *testing.T) []proto.Chunk {
	t.Helper()
	var out []proto.Chunk
	for _, fr := range f.sent() {
		var c proto.Chunk
		if json.Unmarshal(fr.Data, &c) == nil && c.Type == proto.TypeScreenshotChunk {
			out = append(out, c)
		}
	}
	return out
}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	logger := zerolog.Nop()
	hub := NewHub(opts, &logger)
	t.Cleanup(hub.Shutdown)
	return hub
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

const (
	waitFor = 2 * time.Second
	tickFor = 5 * time.Millisecond
)
