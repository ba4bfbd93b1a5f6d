package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rebuild_runs_total",
		Help: "Total engine runs by outcome.",
	}, []string{"outcome"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rebuild_run_seconds",
		Help:    "Wall time of a full engine run.",
		Buckets: prometheus.DefBuckets,
	})

	ImpactedUnits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rebuild_impacted_units",
		Help:    "Size of the impacted set per run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rebuild_graph_nodes_total",
		Help: "Units in the dependency graph after the last run.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rebuild_graph_edges_total",
		Help: "Dependency edges in the graph after the last run.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rebuild_watcher_events_total",
		Help: "Filesystem events received in watch mode.",
	})
)

// Run outcomes used as the RunsTotal label.
const (
	OutcomeNoop        = "noop"
	OutcomeBuilt       = "built"
	OutcomeBuildFailed = "build_failed"
	OutcomeError       = "error"
)
