package store

import (
	"context"
	"time"
)

// EventKind names a presence transition of a relay connection.
type EventKind string

const (
	EventConnect    EventKind = "connect"
	EventRole       EventKind = "role"
	EventJoin       EventKind = "join"
	EventDisconnect EventKind = "disconnect"
	EventEvict      EventKind = "evict"
)

// SessionEvent is one entry of the session journal.
// Message bodies are never stored, only who connected, in which role and when.
type SessionEvent struct {
	ID          int64
	ConnID      string
	Kind        EventKind
	Role        string
	DisplayName string
	Detail      string
	CreatedAt   time.Time
}

// Store persists the session journal.
type Store interface {
	// Record appends an event to the journal.
	Record(ctx context.Context, ev SessionEvent) error

	// RecentEvents returns the newest events first, at most limit of them.
	RecentEvents(ctx context.Context, limit int) ([]SessionEvent, error)

	// ConnectionEvents returns every event of one connection in the order they were recorded.
	ConnectionEvents(ctx context.Context, connID string) ([]SessionEvent, error)

	// Close releases the underlying database.
	Close() error
}
