package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter, gauge, and histogram the engine records.
type Metrics struct {
	VectorInserts prometheus.Counter
	InsertErrors  prometheus.Counter
	SearchQueries prometheus.Counter
	SearchErrors  prometheus.Counter
	SearchLatency prometheus.Histogram
	TrainDuration prometheus.Histogram
	TrainRuns     prometheus.Counter
	AgentEpsilon  prometheus.Gauge
	AgentArmPulls *prometheus.CounterVec
	StorePoisoned prometheus.Gauge
}

// NewMetrics registers and returns a fresh Metrics set against the default
// registry.
func NewMetrics() *Metrics {
	return &Metrics{
		VectorInserts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nanoindex_vector_inserts_total",
			Help: "Total vectors accepted by add()",
		}),
		InsertErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nanoindex_insert_errors_total",
			Help: "Total add() calls that returned an error",
		}),
		SearchQueries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nanoindex_search_queries_total",
			Help: "Total search() calls",
		}),
		SearchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nanoindex_search_errors_total",
			Help: "Total search() calls that returned an error",
		}),
		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nanoindex_search_latency_seconds",
			Help:    "search() latency",
			Buckets: prometheus.DefBuckets,
		}),
		TrainDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nanoindex_train_duration_seconds",
			Help:    "train() wall-clock duration",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		TrainRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nanoindex_train_runs_total",
			Help: "Total train() invocations",
		}),
		AgentEpsilon: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "nanoindex_agent_epsilon",
			Help: "Current epsilon-greedy exploration rate",
		}),
		AgentArmPulls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nanoindex_agent_arm_pulls_total",
			Help: "Total pulls recorded per dispatch arm",
		}, []string{"arm"}),
		StorePoisoned: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "nanoindex_store_poisoned",
			Help: "1 if the data store has been poisoned by an I/O failure, else 0",
		}),
	}
}
