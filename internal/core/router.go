package core

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay-server/internal/metrics"
	"github.com/vovakirdan/wirerelay-server/internal/proto"
)

// Chunking defaults.
const (
	DefaultChunkThreshold = 16 * 1024
	DefaultChunkSize      = 16 * 1024
)

// ChunkPolicy decides when and how a restricted payload is split.
type ChunkPolicy struct {
	// Threshold is the serialized size above which a payload is chunked.
	Threshold int
	// Size is the maximum number of data bytes per chunk.
	Size int
	// Prefixes, when set, limits chunking to data starting with one of them.
	Prefixes []string
}

// DefaultChunkPolicy splits payloads above 16 KiB into 16 KiB slices.
func DefaultChunkPolicy() ChunkPolicy {
	return ChunkPolicy{Threshold: DefaultChunkThreshold, Size: DefaultChunkSize}
}

// Split returns the ordered chunk frames for payload, or false when the payload
// is small enough or its data is not a string eligible for chunking.
func (p ChunkPolicy) Split(payload []byte) ([]Frame, bool) {
	if p.Threshold <= 0 || len(payload) <= p.Threshold {
		return nil, false
	}
	env, err := proto.DecodeEnvelope(payload)
	if err != nil {
		return nil, false
	}
	data, ok := env.DataString()
	if !ok || !p.eligible(data) {
		return nil, false
	}

	size := p.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	parts := proto.SplitData(data, size)
	frames := make([]Frame, 0, len(parts))
	for i, part := range parts {
		b, err := json.Marshal(proto.Chunk{
			Type:        proto.TypeScreenshotChunk,
			Chunk:       i,
			TotalChunks: len(parts),
			Screen:      env.Screen,
			Data:        part,
		})
		if err != nil {
			return nil, false
		}
		frames = append(frames, TextFrame(b))
	}
	return frames, true
}

func (p ChunkPolicy) eligible(data string) bool {
	if len(p.Prefixes) == 0 {
		return true
	}
	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(data, prefix) {
			return true
		}
	}
	return false
}

// Router delivers frames to destination sets taken from registry snapshots.
// Sends are non-blocking enqueues, so a slow destination never delays the others.
type Router struct {
	registry Registry
	chunks   ChunkPolicy
	log      zerolog.Logger
}

// NewRouter builds a router over registry.
func NewRouter(registry Registry, chunks ChunkPolicy, logger *zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		chunks:   chunks,
		log:      logger.With().Str("component", "router").Logger(),
	}
}

// GeneralBroadcast delivers frame to every connection except restricted subscribers.
// The sender is included only when includeSelf is set. It returns the number of
// destinations that accepted the frame.
func (r *Router) GeneralBroadcast(senderID string, frame Frame, includeSelf bool) int {
	eligible := NotRole(RoleRestrictedSubscriber)
	dests := r.registry.Snapshot(func(c Connection) bool {
		return eligible(c) && (includeSelf || c.ID != senderID)
	})
	return r.deliver("general", dests, frame)
}

// RestrictedBroadcast delivers frame only to restricted subscribers. Large text
// payloads are replaced by their chunk sequence, enqueued as one batch per
// destination so the chunks stay in order.
func (r *Router) RestrictedBroadcast(frame Frame) int {
	dests := r.registry.Snapshot(HasRole(RoleRestrictedSubscriber))
	if len(dests) == 0 {
		return 0
	}

	if frame.Kind == FrameText {
		if chunks, ok := r.chunks.Split(frame.Data); ok {
			metrics.ChunksTotal.Add(float64(len(chunks) * len(dests)))
			r.log.Debug().Int("bytes", len(frame.Data)).Int("chunks", len(chunks)).Int("destinations", len(dests)).Msg("chunking restricted payload")
			return r.deliver("restricted", dests, chunks...)
		}
	}
	return r.deliver("restricted", dests, frame)
}

// Announce delivers frame to every connection regardless of role.
func (r *Router) Announce(frame Frame) int {
	return r.deliver("announce", r.registry.Snapshot(nil), frame)
}

// Reply delivers frame to a single connection.
func (r *Router) Reply(id string, frame Frame) error {
	conn, ok := r.registry.Get(id)
	if !ok {
		return relayError(KindRegistryMiss, id, nil)
	}
	if err := conn.Send(frame); err != nil {
		r.deliveryFailed(conn, err)
		return relayError(KindDelivery, id, err)
	}
	metrics.DeliveriesTotal.WithLabelValues("reply").Inc()
	return nil
}

func (r *Router) deliver(route string, dests []Connection, frames ...Frame) int {
	delivered := 0
	for _, conn := range dests {
		if err := conn.Send(frames...); err != nil {
			r.deliveryFailed(conn, err)
			continue
		}
		delivered++
	}
	metrics.DeliveriesTotal.WithLabelValues(route).Add(float64(delivered))
	return delivered
}

func (r *Router) deliveryFailed(conn Connection, err error) {
	reason := "error"
	switch {
	case errors.Is(err, ErrQueueFull):
		reason = "queue_full"
	case errors.Is(err, ErrClosed):
		reason = "closed"
	}
	metrics.DeliveryFailures.WithLabelValues(reason).Inc()
	r.log.Warn().Err(err).Str("conn_id", conn.ID).Str("kind", KindDelivery).Msg("skipping destination")
}
