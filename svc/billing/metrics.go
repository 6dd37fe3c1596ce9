package billing

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts webhook deliveries by event kind and outcome.
type Metrics struct {
	WebhookEventsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicely_webhook_events_total",
				Help: "Total number of payment webhook events by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.WebhookEventsTotal)
	}
	return m
}

func (m *Metrics) observe(kind string, outcome Outcome) {
	m.WebhookEventsTotal.WithLabelValues(kind, string(outcome)).Inc()
}
