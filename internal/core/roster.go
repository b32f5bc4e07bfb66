package core

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay-server/internal/metrics"
	"github.com/vovakirdan/wirerelay-server/internal/proto"
)

// RosterPublisher announces the full participant list whenever membership changes.
type RosterPublisher struct {
	registry Registry
	router   *Router
	log      zerolog.Logger

	// mu keeps compute+enqueue atomic so every connection sees rosters in the
	// order they were computed and the last one it receives is the newest.
	mu sync.Mutex
}

// NewRosterPublisher builds a publisher over registry and router.
func NewRosterPublisher(registry Registry, router *Router, logger *zerolog.Logger) *RosterPublisher {
	return &RosterPublisher{
		registry: registry,
		router:   router,
		log:      logger.With().Str("component", "roster").Logger(),
	}
}

// Roster returns the display names of named chat participants in registration order.
func (p *RosterPublisher) Roster() []string {
	conns := p.registry.Snapshot(func(c Connection) bool {
		return c.Role == RoleChatParticipant && c.DisplayName != ""
	})
	names := make([]string, 0, len(conns))
	for _, c := range conns {
		names = append(names, c.DisplayName)
	}
	return names
}

// Publish sends the current roster to every connection.
func (p *RosterPublisher) Publish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := p.Roster()
	payload, err := json.Marshal(proto.NewUserList(names))
	if err != nil {
		p.log.Error().Err(err).Msg("marshal roster")
		return
	}
	delivered := p.router.Announce(TextFrame(payload))
	metrics.RosterPublishes.Inc()
	p.log.Debug().Int("users", len(names)).Int("delivered", delivered).Msg("roster published")
}
