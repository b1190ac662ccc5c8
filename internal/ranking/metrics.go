package ranking

import "github.com/prometheus/client_golang/prometheus"

// Request result label values.
const (
	ResultOK    = "ok"
	ResultEmpty = "empty"
	ResultError = "error"
)

// Metrics contains Prometheus metrics for feed ranking.
type Metrics struct {
	requests   *prometheus.CounterVec
	candidates prometheus.Histogram
	degraded   prometheus.Counter
}

// NewMetrics creates unregistered ranking metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_rank_requests_total",
				Help: "Feed ranking requests by result (ok, empty, error)",
			},
			[]string{"result"},
		),
		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "feed_rank_candidates",
				Help:    "Number of candidates scored per feed request after filtering",
				Buckets: []float64{0, 5, 10, 25, 50, 100, 200, 400},
			},
		),
		degraded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feed_rank_degraded_total",
				Help: "Feed requests ranked without similarity because the interest vector could not be read",
			},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.candidates, m.degraded}
}

// IncRequests increments the request counter for result.
func (m *Metrics) IncRequests(result string) {
	m.requests.WithLabelValues(result).Inc()
}

// ObserveCandidates records the candidate count of a request.
func (m *Metrics) ObserveCandidates(n int) {
	m.candidates.Observe(float64(n))
}

// IncDegraded counts a request ranked without similarity.
func (m *Metrics) IncDegraded() {
	m.degraded.Inc()
}
