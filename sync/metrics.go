package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "chainsync"

// Metrics holds the engine's prometheus collectors
type Metrics struct {
	BlocksSynced    prometheus.Counter
	StepErrors      *prometheus.CounterVec
	RecordErrors    *prometheus.CounterVec
	PendingResolved *prometheus.CounterVec
	AmountConflicts prometheus.Counter
	SyncHeight      prometheus.Gauge
	SyncPercent     prometheus.Gauge
	PassDuration    prometheus.Histogram
}

// NewMetrics registers the engine's collectors on the default registry,
// the one the API server's /metrics endpoint serves.
func NewMetrics() *Metrics {
	return newMetricsWith(prometheus.DefaultRegisterer)
}

// newUnregisteredMetrics backs syncers that never export, tests included
func newUnregisteredMetrics() *Metrics {
	return newMetricsWith(prometheus.NewRegistry())
}

func newMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BlocksSynced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_synced_total",
			Help:      "Number of blocks recorded in the local store",
		}),
		StepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sync_step_errors_total",
			Help:      "Number of sync steps skipped due to errors, by step",
		}, []string{"step"}),
		RecordErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "record_errors_total",
			Help:      "Number of single event records dropped, by event",
		}, []string{"event"}),
		PendingResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pending_resolved_total",
			Help:      "Number of pending transactions resolved, by terminal status",
		}, []string{"status"}),
		AmountConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "amount_conflicts_total",
			Help:      "Number of trades rejected for exceeding an order's remaining amount",
		}),
		SyncHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sync_height",
			Help:      "Latest block height recorded in the local store",
		}),
		SyncPercent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sync_percent",
			Help:      "Estimated sync progress percentage",
		}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of full sync passes",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}
