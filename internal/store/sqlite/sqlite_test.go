package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirerelay-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndConnectionEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	events := []store.SessionEvent{
		{ConnID: "a", Kind: store.EventConnect, Role: "unassigned"},
		{ConnID: "b", Kind: store.EventConnect, Role: "unassigned"},
		{ConnID: "a", Kind: store.EventJoin, Role: "chat_participant", DisplayName: "alice"},
		{ConnID: "a", Kind: store.EventDisconnect, Role: "chat_participant", DisplayName: "alice"},
	}
	for _, ev := range events {
		require.NoError(t, s.Record(ctx, ev))
	}

	got, err := s.ConnectionEvents(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, store.EventConnect, got[0].Kind)
	assert.Equal(t, store.EventJoin, got[1].Kind)
	assert.Equal(t, "alice", got[1].DisplayName)
	assert.Equal(t, store.EventDisconnect, got[2].Kind)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestRecentEventsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Record(ctx, store.SessionEvent{ConnID: id, Kind: store.EventConnect}))
	}

	got, err := s.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ConnID)
	assert.Equal(t, "b", got[1].ConnID)

	none, err := s.ConnectionEvents(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
