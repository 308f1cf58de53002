package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reasons an order attempt can end without a commit.
const (
	RejectValidation = "validation"
	RejectNotFound   = "not_found"
	RejectConflict   = "conflict_exhausted"
	RejectInternal   = "internal"
)

// OrderMetrics tracks the order commit pipeline.
type OrderMetrics struct {
	committed prometheus.Counter
	rejected  *prometheus.CounterVec
	attempts  prometheus.Histogram
	duration  prometheus.Histogram
}

// NewOrderMetrics registers the order metrics. A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_committed_total",
			Help: "Orders committed successfully.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Order submissions that ended without a commit.",
		}, []string{"reason"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_tx_attempts",
			Help:    "Transaction attempts needed per order submission.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_commit_duration_seconds",
			Help:    "Wall time spent committing an order, retries included.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.committed, m.rejected, m.attempts, m.duration)
	return m
}

func (m *OrderMetrics) IncCommitted() {
	if m == nil || m.committed == nil {
		return
	}
	m.committed.Inc()
}

func (m *OrderMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OrderMetrics) ObserveAttempts(n int) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.Observe(float64(n))
}

func (m *OrderMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
