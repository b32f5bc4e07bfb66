package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay-server/internal/metrics"
	"github.com/vovakirdan/wirerelay-server/internal/proto"
	"github.com/vovakirdan/wirerelay-server/internal/store"
)

const journalTimeout = 2 * time.Second

// Journal receives presence events. The sqlite store implements it.
type Journal interface {
	Record(ctx context.Context, ev store.SessionEvent) error
}

// Options configures a Hub. Zero values select the defaults.
type Options struct {
	HeartbeatInterval time.Duration
	IncludeSender     bool
	BinaryPreamble    bool
	Chunks            ChunkPolicy
	Rules             Rules

	Clock    clockwork.Clock
	Registry Registry
	Journal  Journal
}

// Stats counts registered connections by role.
type Stats struct {
	Total            int  `json:"total"`
	Unassigned       int  `json:"unassigned"`
	Chat             int  `json:"chat_participants"`
	Restricted       int  `json:"restricted_subscribers"`
	HeartbeatRunning bool `json:"heartbeat_running"`
}

// Hub is the entry point used by transports: it registers sessions, classifies
// their inbound frames and routes them.
type Hub struct {
	registry   Registry
	monitor    *Monitor
	classifier *Classifier
	router     *Router
	roster     *RosterPublisher
	journal    Journal
	clock      clockwork.Clock
	opts       Options
	log        zerolog.Logger
}

// NewHub creates a hub with an idle heartbeat.
func NewHub(opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry(WithRegistryClock(opts.Clock))
	}
	if opts.Chunks.Threshold == 0 && opts.Chunks.Size == 0 {
		opts.Chunks = DefaultChunkPolicy()
	}

	h := &Hub{
		registry:   opts.Registry,
		classifier: NewClassifier(opts.Rules),
		journal:    opts.Journal,
		clock:      opts.Clock,
		opts:       opts,
		log:        logger.With().Str("component", "hub").Logger(),
	}
	h.router = NewRouter(h.registry, opts.Chunks, logger)
	h.roster = NewRosterPublisher(h.registry, h.router, logger)
	h.monitor = NewMonitor(h.registry, opts.HeartbeatInterval, opts.Clock, h.evict, logger)
	return h
}

// Run blocks until ctx is done, then shuts the hub down.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Shutdown()
}

// Connect registers a new session and announces the updated roster.
func (h *Hub) Connect(t Transport) Connection {
	conn := h.registry.Register(t)
	metrics.ConnectionsTotal.Inc()
	h.refreshGauges()
	h.monitor.Track()

	h.log.Info().Str("conn_id", conn.ID).Int("clients", h.registry.Len()).Msg("client connected")
	h.record(conn, store.EventConnect, "")
	h.roster.Publish()
	return conn
}

// Disconnect removes a session. Calling it for an unknown id is a no-op.
func (h *Hub) Disconnect(id string) {
	if _, ok := h.remove(id, store.EventDisconnect, ""); ok {
		h.log.Info().Str("conn_id", id).Int("clients", h.registry.Len()).Msg("client disconnected")
	}
}

// Ack marks id alive. Transports call it for every inbound frame.
func (h *Hub) Ack(id string) {
	h.registry.MarkAlive(id)
}

// HandleText classifies and routes one text frame from connection id.
func (h *Hub) HandleText(id string, data []byte) {
	defer h.recoverPanic(id)

	cl := h.classifier.Classify(data)
	h.dispatch(id, cl, TextFrame(data))
}

// HandleBinary classifies and routes one binary frame from connection id.
func (h *Hub) HandleBinary(id string, data []byte) {
	defer h.recoverPanic(id)

	cl := h.classifier.ClassifyBinary(data, h.opts.BinaryPreamble)
	frame := TextFrame(data)
	if cl.Raw {
		frame = BinaryFrame(cl.Body)
	}
	h.dispatch(id, cl, frame)
}

// SendError acknowledges a problem to connection id.
func (h *Hub) SendError(id, message string) {
	payload, err := json.Marshal(proto.NewError(message))
	if err != nil {
		h.log.Error().Err(err).Msg("marshal error acknowledgment")
		return
	}
	if err := h.router.Reply(id, TextFrame(payload)); err != nil {
		h.logReplyFailure(id, err)
	}
}

// Roster returns the current participant names.
func (h *Hub) Roster() []string {
	return h.roster.Roster()
}

// Stats counts registered connections by role.
func (h *Hub) Stats() Stats {
	stats := Stats{HeartbeatRunning: h.monitor.Running()}
	for _, c := range h.registry.Snapshot(nil) {
		stats.Total++
		switch c.Role {
		case RoleChatParticipant:
			stats.Chat++
		case RoleRestrictedSubscriber:
			stats.Restricted++
		default:
			stats.Unassigned++
		}
	}
	return stats
}

// HeartbeatRunning reports whether the liveness monitor is active.
func (h *Hub) HeartbeatRunning() bool {
	return h.monitor.Running()
}

// Shutdown stops the heartbeat and closes every session.
func (h *Hub) Shutdown() {
	h.monitor.Stop()
	for _, conn := range h.registry.Snapshot(nil) {
		conn.Close(CloseShutdown)
	}
	h.log.Info().Msg("hub stopped")
}

func (h *Hub) dispatch(id string, cl Classification, frame Frame) {
	metrics.MessagesTotal.WithLabelValues(cl.Class.String()).Inc()

	switch cl.Class {
	case ClassReject:
		h.log.Debug().Err(cl.Err).Str("conn_id", id).Str("kind", KindDecode).Msg("rejecting frame")
		h.SendError(id, rejectMessage(cl.Err))
	case ClassAssignRole:
		if !h.registry.AssignRole(id, cl.Role) {
			h.logMiss(id, "assign role")
			return
		}
		h.roleChanged(id, store.EventRole)
	case ClassJoin:
		if !h.registry.AssignRole(id, cl.Role) || !h.registry.SetDisplayName(id, cl.DisplayName) {
			h.logMiss(id, "join")
			return
		}
		h.roleChanged(id, store.EventJoin)
	case ClassRestrictedBroadcast:
		h.router.RestrictedBroadcast(frame)
	case ClassEcho:
		h.echo(id, cl.Envelope)
	case ClassGeneralBroadcast:
		h.router.GeneralBroadcast(id, frame, h.opts.IncludeSender)
	case ClassDrop:
		h.log.Debug().Err(cl.Err).Str("conn_id", id).Msg("dropping raw frame")
	}
}

func (h *Hub) roleChanged(id string, kind store.EventKind) {
	conn, ok := h.registry.Get(id)
	if !ok {
		h.logMiss(id, string(kind))
		return
	}
	h.refreshGauges()
	h.log.Info().Str("conn_id", id).Str("role", conn.Role.String()).Str("name", conn.DisplayName).Msg("role assigned")
	h.record(conn, kind, "")
	h.roster.Publish()
}

func (h *Hub) echo(id string, env proto.Envelope) {
	payload, err := json.Marshal(proto.Pong{
		Type:       proto.TypePong,
		Timestamp:  env.Timestamp,
		ServerTime: h.clock.Now().UnixMilli(),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal pong")
		return
	}
	if err := h.router.Reply(id, TextFrame(payload)); err != nil {
		h.logReplyFailure(id, err)
	}
}

func (h *Hub) evict(conn Connection) {
	if _, ok := h.remove(conn.ID, store.EventEvict, KindLivenessTimeout); !ok {
		return
	}
	metrics.Evictions.Inc()
	conn.Close(CloseHeartbeatTimeout)
	h.log.Warn().Err(relayError(KindLivenessTimeout, conn.ID, nil)).Str("conn_id", conn.ID).Msg("client evicted")
}

func (h *Hub) remove(id string, kind store.EventKind, detail string) (Connection, bool) {
	conn, ok := h.registry.Remove(id)
	if !ok {
		return conn, false
	}
	h.refreshGauges()
	h.monitor.Release()
	h.record(conn, kind, detail)
	h.roster.Publish()
	return conn, true
}

func (h *Hub) record(conn Connection, kind store.EventKind, detail string) {
	if h.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	err := h.journal.Record(ctx, store.SessionEvent{
		ConnID:      conn.ID,
		Kind:        kind,
		Role:        conn.Role.String(),
		DisplayName: conn.DisplayName,
		Detail:      detail,
		CreatedAt:   h.clock.Now().UTC(),
	})
	if err != nil {
		h.log.Warn().Err(err).Str("conn_id", conn.ID).Str("event", string(kind)).Msg("failed to journal session event")
	}
}

func (h *Hub) refreshGauges() {
	stats := h.Stats()
	metrics.ConnectionsCurrent.WithLabelValues(RoleUnassigned.String()).Set(float64(stats.Unassigned))
	metrics.ConnectionsCurrent.WithLabelValues(RoleChatParticipant.String()).Set(float64(stats.Chat))
	metrics.ConnectionsCurrent.WithLabelValues(RoleRestrictedSubscriber.String()).Set(float64(stats.Restricted))
}

func (h *Hub) logMiss(id, op string) {
	h.log.Debug().Str("conn_id", id).Str("kind", KindRegistryMiss).Str("op", op).Msg("connection already gone")
}

func (h *Hub) logReplyFailure(id string, err error) {
	if errors.Is(err, ErrRegistryMiss) {
		h.logMiss(id, "reply")
		return
	}
	h.log.Debug().Err(err).Str("conn_id", id).Msg("reply not delivered")
}

func (h *Hub) recoverPanic(id string) {
	if r := recover(); r != nil {
		metrics.PanicsTotal.WithLabelValues("hub").Inc()
		h.log.Error().Interface("panic", r).Str("conn_id", id).Msg("recovered panic while routing")
	}
}

func rejectMessage(err error) string {
	if err == nil {
		return "invalid message"
	}
	return "invalid message format"
}
