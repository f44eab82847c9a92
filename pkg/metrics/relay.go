package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks the outbox relay and the backlog it drains.
type RelayMetrics struct {
	published     *prometheus.CounterVec
	failed        *prometheus.CounterVec
	deadLettered  *prometheus.CounterVec
	batchDuration prometheus.Histogram
	backlog       prometheus.Gauge
	oldestAge     prometheus.Gauge
}

// NewRelayMetrics registers the relay metrics on the provided registerer.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	m := &RelayMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Outbox events acknowledged by the broker.",
		}, []string{"event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_publish_failures_total",
			Help: "Outbox publish attempts that failed and will be retried.",
		}, []string{"event_type"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_dead_lettered_total",
			Help: "Outbox events moved to the dead-letter table.",
		}, []string{"event_type", "reason"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_batch_duration_seconds",
			Help:    "Time spent relaying one batch.",
			Buckets: prometheus.DefBuckets,
		}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_backlog",
			Help: "Unpublished outbox events still eligible for delivery.",
		}),
		oldestAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest pending outbox event.",
		}),
	}
	reg.MustRegister(m.published, m.failed, m.deadLettered, m.batchDuration, m.backlog, m.oldestAge)
	return m
}

func (m *RelayMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *RelayMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *RelayMetrics) IncDeadLettered(eventType, reason string) {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

func (m *RelayMetrics) ObserveBatch(d time.Duration) {
	if m == nil || m.batchDuration == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}

// SetBacklog publishes the pending count and the age of the oldest pending row.
func (m *RelayMetrics) SetBacklog(pending int64, oldestAge time.Duration) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(pending))
	m.oldestAge.Set(oldestAge.Seconds())
}
