// Package metrics implements the engine's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TopologyEdges tracks the current number of symmetric edges known to
	// the topology map.
	TopologyEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_topology_edges",
			Help: "Current number of edges in the topology adjacency matrix",
		},
	)

	// TopologyResetsTotal counts topology resets (discovery restarts).
	TopologyResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_topology_resets_total",
			Help: "Total number of topology resets triggered",
		},
	)

	// TopologyDropRate observes the Laplace-smoothed drop rate of a node
	// each time it is consulted by the routing algorithm.
	TopologyDropRate = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_topology_drop_rate",
			Help:    "Observed drop rate of a neighbor at routing time",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"node"},
	)

	// RoutingFailuresTotal counts Route() calls that returned NoPathFound
	// or SourceIsDest, by reason.
	RoutingFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_routing_failures_total",
			Help: "Total number of routing failures by reason",
		},
		[]string{"reason"},
	)

	// FragmentsSentTotal counts fragments handed to a neighbor send channel.
	FragmentsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_fragments_sent_total",
			Help: "Total number of fragments sent to a neighbor",
		},
	)

	// FragmentsAckedTotal counts Acks applied to the retransmit cache.
	FragmentsAckedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_fragments_acked_total",
			Help: "Total number of fragments removed from the cache on Ack",
		},
	)

	// FragmentsRequeuedTotal counts re-enqueues, by reason: a NackKind, or
	// a routing failure such as no_path_found (both under the "nack_kind"
	// label).
	FragmentsRequeuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_fragments_requeued_total",
			Help: "Total number of fragments re-enqueued after a Nack or a routing failure",
		},
		[]string{"nack_kind"},
	)

	// FragmenterCacheSize tracks the current retransmit cache size.
	FragmenterCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_fragmenter_cache_size",
			Help: "Current number of fragments awaiting acknowledgement",
		},
	)

	// ReassemblySessionsActive tracks the number of sessions with an
	// in-progress reassembly.
	ReassemblySessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_reassembly_sessions_active",
			Help: "Current number of sessions awaiting reassembly completion",
		},
	)

	// FloodProbesEmittedTotal counts FloodRequest frames emitted.
	FloodProbesEmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_flood_probes_emitted_total",
			Help: "Total number of FloodRequest frames emitted",
		},
	)

	// LoopIterationsTotal counts event-loop iterations by the source that
	// was serviced (command, packet, or retransmit-default).
	LoopIterationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_loop_iterations_total",
			Help: "Total number of event loop iterations by serviced source",
		},
		[]string{"source"},
	)

	// ControlConnectionsActive tracks the number of open UDS control-plane
	// connections for the local node, labeled by self node id so a single
	// Prometheus scrape target shared across co-located test engines can
	// still attribute load to the right one.
	ControlConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_control_connections_active",
			Help: "Current number of open UDS control-plane connections",
		},
		[]string{"self"},
	)

	// ControlRequestsTotal counts JSON-RPC requests handled over the UDS
	// control socket, by method and self node id.
	ControlRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_control_requests_total",
			Help: "Total number of control-plane requests handled, by method",
		},
		[]string{"self", "method"},
	)
)
