package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks maintenance jobs run by the scheduler.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	affected *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	m := &JobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_job_runs_total",
			Help: "Maintenance job executions by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maintenance_job_duration_seconds",
			Help:    "Duration of maintenance jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		affected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_job_rows_total",
			Help: "Rows changed by maintenance jobs.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.affected)
	return m
}

func (m *JobMetrics) Observe(job, outcome string, d time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.runs.WithLabelValues(job, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *JobMetrics) AddRows(job string, n int64) {
	if m == nil || m.affected == nil || n <= 0 {
		return
	}
	m.affected.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}
