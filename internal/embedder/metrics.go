package embedder

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values.
const (
	OutcomeEmbedded = "embedded"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Metrics counts embed requests by outcome.
type Metrics struct {
	outcomes *prometheus.CounterVec
}

// NewMetrics creates unregistered embedder metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "post_embed_requests_total",
				Help: "Post embed requests by outcome (embedded, skipped, failed)",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers the metrics with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.outcomes)
}

// IncOutcome increments the counter for outcome.
func (m *Metrics) IncOutcome(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.outcomes}
}
