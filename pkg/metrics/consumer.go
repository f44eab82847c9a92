package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Consumer outcomes.
const (
	ResultHandled      = "handled"
	ResultDuplicate    = "duplicate"
	ResultRetried      = "retried"
	ResultDeadLettered = "dead_lettered"
	ResultIgnored      = "ignored"
)

// ConsumerMetrics counts how inbound messages were settled.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewConsumerMetrics registers the consumer metrics on the provided registerer.
func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	m := &ConsumerMetrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consumer_messages_total",
			Help: "Inbound messages by consumer, event type and result.",
		}, []string{"consumer", "event_type", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consumer_handle_duration_seconds",
			Help:    "Time spent handling one delivery.",
			Buckets: prometheus.DefBuckets,
		}, []string{"consumer"}),
	}
	reg.MustRegister(m.messages, m.duration)
	return m
}

func (m *ConsumerMetrics) Observe(consumer, eventType, result string, d time.Duration) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(normalizeLabel(consumer), normalizeLabel(eventType), normalizeLabel(result)).Inc()
	m.duration.WithLabelValues(normalizeLabel(consumer)).Observe(d.Seconds())
}
