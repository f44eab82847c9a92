package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron job results.
const (
	CronResultSuccess = "success"
	CronResultFailure = "failure"
)

// CronMetrics tracks the cron worker: how each job ended, how long it took, and how
// many cycles were left to another replica holding the lock.
type CronMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	skipped  prometheus.Counter
}

func NewCronMetrics(reg prometheus.Registerer) *CronMetrics {
	if reg == nil {
		return nil
	}
	m := &CronMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_runs_total",
			Help: "Cron job executions by job and result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Duration of cron jobs in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"job"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cron_cycles_skipped_total",
			Help: "Cycles skipped because another replica held the cron lock.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.skipped)
	return m
}

// ObserveRun records one job execution. A nil err counts as success.
func (m *CronMetrics) ObserveRun(job string, err error, d time.Duration) {
	if m == nil {
		return
	}
	job = normalizeLabel(job)
	result := CronResultSuccess
	if err != nil {
		result = CronResultFailure
	}
	m.runs.WithLabelValues(job, result).Inc()
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *CronMetrics) CycleSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}
