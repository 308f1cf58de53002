package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Side effect outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// SideEffectMetrics tracks post-commit effects run by the order worker.
type SideEffectMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewSideEffectMetrics(reg prometheus.Registerer) *SideEffectMetrics {
	if reg == nil {
		return &SideEffectMetrics{}
	}
	m := &SideEffectMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "side_effect_runs_total",
			Help: "Post-commit side effect executions by outcome.",
		}, []string{"effect", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "side_effect_duration_seconds",
			Help:    "Duration of post-commit side effects.",
			Buckets: prometheus.DefBuckets,
		}, []string{"effect"}),
	}
	reg.MustRegister(m.runs, m.duration)
	return m
}

func (m *SideEffectMetrics) Observe(effect, outcome string, d time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	effect = normalizeLabel(effect)
	m.runs.WithLabelValues(effect, normalizeLabel(outcome)).Inc()
	if outcome != OutcomeSkipped {
		m.duration.WithLabelValues(effect).Observe(d.Seconds())
	}
}
