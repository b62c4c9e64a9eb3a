// Package metrics registers the Prometheus gauges/counters/histograms
// this engine exposes, one struct per process the way the node's own
// Metrics interface pattern organizes its sequencer/driver metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "starksync"

// Metrics is the full set of instruments the engine registers.
type Metrics struct {
	SyncStatus       prometheus.Gauge
	ProviderRotation prometheus.Counter
	BackoffDuration  prometheus.Histogram
	DAPublishTotal   *prometheus.CounterVec
	HighestL1Block   prometheus.Gauge
	HighestL2Block   prometheus.Gauge
}

// New registers every instrument against reg and returns the handle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sync_status",
			Help: "1 if the sync oracle reports SYNCING, 0 if SYNCED.",
		}),
		ProviderRotation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "provider_rotations_total",
			Help: "Number of times the L1 provider pool rotated to the next endpoint.",
		}),
		BackoffDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "provider_backoff_seconds",
			Help:    "Observed backoff sleep durations before a retried L1 call.",
			Buckets: []float64{0.5, 1, 2, 4, 8, 10},
		}),
		DAPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "da_publish_total",
			Help: "DA publication attempts by outcome.",
		}, []string{"outcome"}),
		HighestL1Block: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "highest_l1_block",
			Help: "Highest L1 block number reflected in the persisted cursor.",
		}),
		HighestL2Block: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "highest_l2_block",
			Help: "Highest L2 block number reflected in the persisted cursor.",
		}),
	}
	reg.MustRegister(m.SyncStatus, m.ProviderRotation, m.BackoffDuration, m.DAPublishTotal, m.HighestL1Block, m.HighestL2Block)
	return m
}
