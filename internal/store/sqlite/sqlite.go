package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirerelay-server/internal/store"
)

// Schema creates the session journal table.
const Schema = `
CREATE TABLE IF NOT EXISTS session_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	conn_id      TEXT NOT NULL,
	kind         TEXT NOT NULL,
	role         TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	detail       TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_events_conn ON session_events(conn_id, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the journal schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends a session event.
func (s *SQLiteStore) Record(ctx context.Context, ev store.SessionEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO session_events (conn_id, kind, role, display_name, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		ev.ConnID, string(ev.Kind), ev.Role, ev.DisplayName, ev.Detail, ev.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events first.
func (s *SQLiteStore) RecentEvents(ctx context.Context, limit int) ([]store.SessionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, conn_id, kind, role, display_name, detail, created_at
		FROM session_events
		ORDER BY id DESC
		LIMIT ?
	`
	return s.queryEvents(ctx, query, limit)
}

// ConnectionEvents returns the journal of one connection, oldest first.
func (s *SQLiteStore) ConnectionEvents(ctx context.Context, connID string) ([]store.SessionEvent, error) {
	query := `
		SELECT id, conn_id, kind, role, display_name, detail, created_at
		FROM session_events
		WHERE conn_id = ?
		ORDER BY id ASC
	`
	return s.queryEvents(ctx, query, connID)
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]store.SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var events []store.SessionEvent
	for rows.Next() {
		var ev store.SessionEvent
		var kind string
		if err := rows.Scan(&ev.ID, &ev.ConnID, &kind, &ev.Role, &ev.DisplayName, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		ev.Kind = store.EventKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return events, nil
}
