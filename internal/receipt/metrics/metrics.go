// Package metrics registers Prometheus metrics for the receipt domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all receipt-import metrics.
type Metrics struct {
	ImportsStarted   prometheus.Counter
	ImportsCompleted prometheus.Counter
	ImportsCancelled prometheus.Counter
	ImportsFailed    *prometheus.CounterVec
	ImportDuration   prometheus.Histogram
	ProviderLatency  prometheus.Histogram
	ReceiptsDeleted  prometheus.Counter
}

// New creates and registers all receipt metrics.
func New() *Metrics {
	return &Metrics{
		ImportsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listou_imports_started_total",
			Help: "Total import pipeline runs started",
		}),
		ImportsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listou_imports_completed_total",
			Help: "Total imports persisted successfully",
		}),
		ImportsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listou_imports_cancelled_total",
			Help: "Total imports discarded at confirmation",
		}),
		ImportsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "listou_imports_failed_total",
			Help: "Total failed imports by pipeline stage",
		}, []string{"stage"}),
		ImportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "listou_import_duration_seconds",
			Help:    "Wall time from pipeline start to persisted receipt",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
		ProviderLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "listou_provider_latency_seconds",
			Help:    "Aggregator call latency",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		ReceiptsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listou_receipts_deleted_total",
			Help: "Total receipts deleted by their owner",
		}),
	}
}

func (m *Metrics) RecordImportStarted() {
	if m == nil {
		return
	}
	m.ImportsStarted.Inc()
}

func (m *Metrics) RecordImportCompleted(seconds float64) {
	if m == nil {
		return
	}
	m.ImportsCompleted.Inc()
	m.ImportDuration.Observe(seconds)
}

func (m *Metrics) RecordImportCancelled() {
	if m == nil {
		return
	}
	m.ImportsCancelled.Inc()
}

func (m *Metrics) RecordImportFailed(stage string) {
	if m == nil {
		return
	}
	m.ImportsFailed.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveProviderLatency(seconds float64) {
	if m == nil {
		return
	}
	m.ProviderLatency.Observe(seconds)
}

func (m *Metrics) RecordReceiptDeleted() {
	if m == nil {
		return
	}
	m.ReceiptsDeleted.Inc()
}
