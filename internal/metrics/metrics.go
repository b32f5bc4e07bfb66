package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry metrics
var (
	// ConnectionsCurrent tracks live connections by role.
	ConnectionsCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_connections_current",
			Help: "Current number of registered connections by role",
		},
		[]string{"role"},
	)

	// ConnectionsTotal counts every accepted connection.
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total connections registered since start",
		},
	)
)

// Routing metrics
var (
	// MessagesTotal counts inbound frames by routing class.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Inbound frames by routing class",
		},
		[]string{"class"},
	)

	// DeliveriesTotal counts frames enqueued to destinations by route.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Frames enqueued to destinations by route",
		},
		[]string{"route"},
	)

	// DeliveryFailures counts per-destination send failures by reason.
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Per-destination delivery failures by reason",
		},
		[]string{"reason"},
	)

	// ChunksTotal counts chunk frames produced by the chunking policy.
	ChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_chunks_total",
			Help: "Chunk frames produced for large restricted payloads",
		},
	)

	// RosterPublishes counts roster announcements.
	RosterPublishes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_roster_publishes_total",
			Help: "Roster update announcements",
		},
	)
)

// Liveness metrics
var (
	// ProbesTotal counts heartbeat probes by outcome (sent, acked, failed).
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_probes_total",
			Help: "Heartbeat probes by outcome",
		},
		[]string{"outcome"},
	)

	// Evictions counts connections evicted for missing heartbeats.
	Evictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_evictions_total",
			Help: "Connections evicted after an unanswered probe",
		},
	)

	// MonitorRunning is 1 while the heartbeat cycle is active.
	MonitorRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_monitor_running",
			Help: "Whether the heartbeat cycle is running (1) or idle (0)",
		},
	)

	// PanicsTotal counts recovered panics by component.
	PanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_panics_total",
			Help: "Recovered panics by component",
		},
		[]string{"component"},
	)
)
