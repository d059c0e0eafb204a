package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DispositionPublished  = "published"
	DispositionRetry      = "retry"
	DispositionDeadLetter = "dead_letter"
)

// OutboxMetrics tracks the outbox publisher.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	latency prometheus.Histogram
	batches *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retailflow_outbox_events_total",
			Help: "Outbox events handled by event type and disposition.",
		}, []string{"event_type", "disposition"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retailflow_outbox_publish_seconds",
			Help:    "Time from publish call to server ack.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retailflow_outbox_batches_total",
			Help: "Publisher poll cycles by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.events, m.latency, m.batches)
	return m
}

// ObserveEvent counts one event leaving the batch with the given disposition.
func (m *OutboxMetrics) ObserveEvent(eventType, disposition string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), disposition).Inc()
}

func (m *OutboxMetrics) ObservePublish(elapsed time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.Observe(elapsed.Seconds())
}

// ObserveBatch records whether a poll found work, found none or failed.
func (m *OutboxMetrics) ObserveBatch(processed bool, err error) {
	if m == nil || m.batches == nil {
		return
	}
	result := "empty"
	switch {
	case err != nil:
		result = "error"
	case processed:
		result = "processed"
	}
	m.batches.WithLabelValues(result).Inc()
}
