package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type WebhookMetrics struct {
	deliveries *prometheus.CounterVec
	events     prometheus.Counter
	journal    prometheus.Counter
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	factory := promauto.With(reg)
	return &WebhookMetrics{
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries received, by signature outcome.",
		}, []string{"signature"}),
		events: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "CloudEvents decoded from webhook deliveries.",
		}),
		journal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "journal_errors_total",
			Help:      "Deliveries that could not be written to the journal.",
		}),
	}
}

func (m *WebhookMetrics) ObserveDelivery(valid bool, events int) {
	if m == nil {
		return
	}
	label := "invalid"
	if valid {
		label = "valid"
	}
	m.deliveries.WithLabelValues(label).Inc()
	if events > 0 {
		m.events.Add(float64(events))
	}
}

func (m *WebhookMetrics) ObserveJournalError() {
	if m == nil {
		return
	}
	m.journal.Inc()
}
