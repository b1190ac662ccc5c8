// Package jobs records metrics for work that runs outside the request path:
// the periodic interest recompute and post-embed tag extraction.
package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRunsTotal        = "background_jobs_total"
	MetricRunDuration      = "background_jobs_duration_seconds"
	MetricErrorsTotal      = "background_job_errors_total"
	MetricItemsTotal       = "background_job_items_total"
	MetricLastSuccessStamp = "background_job_last_success_timestamp_seconds"
)

// Job types.
const (
	JobTypeInterestRecompute = "interest_recompute"
	JobTypeTagExtraction     = "tag_extraction"
)

// Run outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Error types.
const (
	ErrorTypeTimeout   = "timeout"
	ErrorTypeRecompute = "recompute_error"
	ErrorTypeDispatch  = "dispatch_error"
)

// Item outcomes for jobs that process a batch.
const (
	ItemUpdated = "updated"
	ItemSkipped = "skipped"
	ItemFailed  = "failed"
)

// Metrics holds the background job collectors. Safe for concurrent use.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	items       *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance. Call Register to expose it.
func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRunsTotal,
			Help: "Background job runs by job type and status",
		}, []string{"job_type", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRunDuration,
			Help:    "Background job run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 15, 30, 60},
		}, []string{"job_type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricErrorsTotal,
			Help: "Background job errors by job type and error type",
		}, []string{"job_type", "error_type"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricItemsTotal,
			Help: "Items processed by batch jobs by outcome",
		}, []string{"job_type", "outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricLastSuccessStamp,
			Help: "Unix time of the last successful run",
		}, []string{"job_type"}),
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

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.duration, m.errors, m.items, m.lastSuccess}
}

// ObserveRun records one finished run. A successful run also moves the
// last-success timestamp forward.
func (m *Metrics) ObserveRun(jobType, status string, elapsed time.Duration) {
	m.runs.WithLabelValues(jobType, status).Inc()
	m.duration.WithLabelValues(jobType).Observe(elapsed.Seconds())
	if status == StatusSuccess {
		m.lastSuccess.WithLabelValues(jobType).Set(float64(time.Now().Unix()))
	}
}

// IncErrors counts one error of errorType.
func (m *Metrics) IncErrors(jobType, errorType string) {
	m.errors.WithLabelValues(jobType, errorType).Inc()
}

// AddItems counts n processed items with the given outcome. Zero is ignored.
func (m *Metrics) AddItems(jobType, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.items.WithLabelValues(jobType, outcome).Add(float64(n))
}
