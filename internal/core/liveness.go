package core

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay-server/internal/metrics"
)

// DefaultHeartbeatInterval is the probe period.
const DefaultHeartbeatInterval = 30 * time.Second

// Monitor probes every registered connection once per interval and evicts the
// ones that did not acknowledge the previous probe. It only runs while the
// registry holds at least one connection.
type Monitor struct {
	registry Registry
	interval time.Duration
	clock    clockwork.Clock
	evict    func(Connection)
	log      zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewMonitor builds an idle monitor. evict is called for every connection that
// missed a probe; it is responsible for removing and closing it.
func NewMonitor(registry Registry, interval time.Duration, clock clockwork.Clock, evict func(Connection), logger *zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{
		registry: registry,
		interval: interval,
		clock:    clock,
		evict:    evict,
		log:      logger.With().Str("component", "liveness").Logger(),
	}
}

// Track starts the probe cycle if it is not running yet. It does nothing once
// Stop has been called.
func (m *Monitor) Track() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil || m.stopped {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := m.clock.NewTicker(m.interval)
	m.cancel = cancel
	m.done = done
	metrics.MonitorRunning.Set(1)
	m.log.Debug().Dur("interval", m.interval).Msg("heartbeat started")

	go m.run(ctx, ticker, done)
}

// Release stops the probe cycle once the registry is empty.
func (m *Monitor) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil || m.registry.Len() > 0 {
		return
	}
	m.stopLocked()
	m.log.Debug().Msg("heartbeat stopped, no connections left")
}

// Stop halts the probe cycle for good and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	done := m.done
	if m.cancel != nil {
		m.stopLocked()
	}
	m.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Running reports whether the probe cycle is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) stopLocked() {
	m.cancel()
	m.cancel = nil
	m.done = nil
	metrics.MonitorRunning.Set(0)
}

func (m *Monitor) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	defer m.recoverPanic("tick")

	for _, conn := range m.registry.Snapshot(nil) {
		if ctx.Err() != nil {
			return
		}
		responded, ok := m.registry.ArmProbe(conn.ID)
		if !ok {
			continue
		}
		if !responded {
			m.log.Info().Str("conn_id", conn.ID).Str("kind", KindLivenessTimeout).Msg("evicting unresponsive connection")
			m.evict(conn)
			continue
		}
		m.probe(ctx, conn)
	}
}

func (m *Monitor) probe(ctx context.Context, conn Connection) {
	metrics.ProbesTotal.WithLabelValues("sent").Inc()
	go func() {
		defer m.recoverPanic("probe")

		pctx, cancel := context.WithTimeout(ctx, m.interval)
		defer cancel()

		if err := conn.Ping(pctx); err != nil {
			metrics.ProbesTotal.WithLabelValues("failed").Inc()
			m.log.Debug().Err(err).Str("conn_id", conn.ID).Msg("probe not acknowledged")
			return
		}
		metrics.ProbesTotal.WithLabelValues("acked").Inc()
		m.registry.MarkAlive(conn.ID)
	}()
}

func (m *Monitor) recoverPanic(where string) {
	if r := recover(); r != nil {
		metrics.PanicsTotal.WithLabelValues("liveness").Inc()
		m.log.Error().Interface("panic", r).Str("where", where).Msg("recovered panic in heartbeat")
	}
}
