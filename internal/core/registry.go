package core

import (
	"cmp"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/vovakirdan/wirerelay-server/internal/utils"
)

// Registry is the authoritative record of who is connected and in what role.
type Registry interface {
	// Register inserts a new unassigned, alive connection and returns a copy of it.
	Register(t Transport) Connection
	// AssignRole updates a connection's role. It reports false if id is not registered.
	AssignRole(id string, role Role) bool
	// SetDisplayName updates a connection's label. It reports false if id is not registered.
	SetDisplayName(id, name string) bool
	// Remove deletes a connection. Removing an absent id is a no-op.
	Remove(id string) (Connection, bool)
	// Get returns a copy of one connection.
	Get(id string) (Connection, bool)
	// Snapshot returns copies of matching connections in registration order.
	// A nil match selects every connection.
	Snapshot(match func(Connection) bool) []Connection
	// Len returns the number of registered connections.
	Len() int
	// MarkAlive records a heartbeat acknowledgment.
	MarkAlive(id string) bool
	// ArmProbe clears the alive flag before a probe and reports whether the
	// connection had acknowledged the previous one.
	ArmProbe(id string) (responded, ok bool)
}

// MemoryRegistry is the in-process Registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	seq   uint64

	newID func() string
	clock clockwork.Clock
}

// RegistryOption customizes a MemoryRegistry.
type RegistryOption func(*MemoryRegistry)

// WithIDFunc replaces the id generator.
func WithIDFunc(fn func() string) RegistryOption {
	return func(r *MemoryRegistry) {
		r.newID = fn
	}
}

// WithRegistryClock sets the clock used for ConnectedAt.
func WithRegistryClock(clock clockwork.Clock) RegistryOption {
	return func(r *MemoryRegistry) {
		r.clock = clock
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *MemoryRegistry {
	r := &MemoryRegistry{
		conns: make(map[string]*Connection),
		newID: utils.NewID,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MemoryRegistry) Register(t Transport) Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for {
		if _, taken := r.conns[id]; !taken && id != "" {
			break
		}
		id = r.newID()
	}

	r.seq++
	conn := &Connection{
		ID:          id,
		Role:        RoleUnassigned,
		Seq:         r.seq,
		ConnectedAt: r.clock.Now(),
		alive:       true,
		transport:   t,
	}
	r.conns[id] = conn
	return *conn
}

func (r *MemoryRegistry) AssignRole(id string, role Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	conn.Role = role
	return true
}

func (r *MemoryRegistry) SetDisplayName(id, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	conn.DisplayName = name
	return true
}

func (r *MemoryRegistry) Remove(id string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, id)
	return *conn, true
}

func (r *MemoryRegistry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

func (r *MemoryRegistry) Snapshot(match func(Connection) bool) []Connection {
	r.mu.RLock()
	out := make([]Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if match == nil || match(*conn) {
			out = append(out, *conn)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Connection) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *MemoryRegistry) MarkAlive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	conn.alive = true
	return true
}

func (r *MemoryRegistry) ArmProbe(id string) (responded, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false, false
	}
	responded = conn.alive
	conn.alive = false
	return responded, true
}

// HasRole selects connections with the given role.
func HasRole(role Role) func(Connection) bool {
	return func(c Connection) bool {
		return c.Role == role
	}
}

// NotRole selects connections without the given role.
func NotRole(role Role) func(Connection) bool {
	return func(c Connection) bool {
		return c.Role != role
	}
}
