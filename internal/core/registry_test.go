package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIDsAreUnique(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		conn := r.Register(newFakeTransport())
		require.NotEmpty(t, conn.ID)
		_, dup := seen[conn.ID]
		require.False(t, dup, "duplicate id %s", conn.ID)
		seen[conn.ID] = struct{}{}
	}
	assert.Equal(t, 1000, r.Len())
}

func TestRegistryRetriesOnIDCollision(t *testing.T) {
	ids := []string{"dup", "dup", "", "dup", "fresh"}
	next := 0
	r := NewRegistry(WithIDFunc(func() string {
		id := ids[next]
		next++
		return id
	}))

	first := r.Register(newFakeTransport())
	second := r.Register(newFakeTransport())

	assert.Equal(t, "dup", first.ID)
	assert.Equal(t, "fresh", second.ID)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryNewConnectionDefaults(t *testing.T) {
	r := NewRegistry()
	conn := r.Register(newFakeTransport())

	assert.Equal(t, RoleUnassigned, conn.Role)
	assert.Empty(t, conn.DisplayName)
	assert.True(t, conn.Alive())
	assert.False(t, conn.ConnectedAt.IsZero())
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	keep := r.Register(newFakeTransport())
	gone := r.Register(newFakeTransport())

	removed, ok := r.Remove(gone.ID)
	require.True(t, ok)
	assert.Equal(t, gone.ID, removed.ID)

	before := r.Snapshot(nil)
	_, ok = r.Remove(gone.ID)
	assert.False(t, ok)
	_, ok = r.Remove("never-registered")
	assert.False(t, ok)

	assert.Equal(t, before, r.Snapshot(nil))
	assert.Equal(t, 1, r.Len())
	_, ok = r.Get(keep.ID)
	assert.True(t, ok)
}

func TestRegistryUpdatesOnMissingIDAreNoOps(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.AssignRole("ghost", RoleRestrictedSubscriber))
	assert.False(t, r.SetDisplayName("ghost", "casper"))
	assert.False(t, r.MarkAlive("ghost"))
	_, ok := r.ArmProbe("ghost")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySnapshotIsOrderedCopy(t *testing.T) {
	r := NewRegistry()
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, r.Register(newFakeTransport()).ID)
	}
	require.True(t, r.AssignRole(ids[1], RoleRestrictedSubscriber))
	require.True(t, r.AssignRole(ids[3], RoleRestrictedSubscriber))

	all := r.Snapshot(nil)
	require.Len(t, all, 5)
	for i, c := range all {
		assert.Equal(t, ids[i], c.ID)
	}

	restricted := r.Snapshot(HasRole(RoleRestrictedSubscriber))
	require.Len(t, restricted, 2)
	assert.Equal(t, ids[1], restricted[0].ID)
	assert.Equal(t, ids[3], restricted[1].ID)
	assert.Len(t, r.Snapshot(NotRole(RoleRestrictedSubscriber)), 3)

	// Mutating a snapshot never leaks into the registry.
	all[0].Role = RoleChatParticipant
	got, _ := r.Get(ids[0])
	assert.Equal(t, RoleUnassigned, got.Role)
}

func TestRegistryArmProbe(t *testing.T) {
	r := NewRegistry()
	conn := r.Register(newFakeTransport())

	responded, ok := r.ArmProbe(conn.ID)
	assert.True(t, ok)
	assert.True(t, responded)

	responded, _ = r.ArmProbe(conn.ID)
	assert.False(t, responded, "no ack since the previous probe")

	require.True(t, r.MarkAlive(conn.ID))
	responded, _ = r.ArmProbe(conn.ID)
	assert.True(t, responded)
}

func TestRegistryConcurrentMutationAndSnapshot(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				conn := r.Register(newFakeTransport())
				r.SetDisplayName(conn.ID, fmt.Sprintf("w%d-%d", w, i))
				r.AssignRole(conn.ID, RoleChatParticipant)
				_ = r.Snapshot(HasRole(RoleChatParticipant))
				r.Remove(conn.ID)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
