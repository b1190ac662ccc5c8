package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the provider circuit breaker.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state count reset period
	Timeout      time.Duration // open duration before probing
	MinRequests  uint32        // requests observed before the breaker may trip
	FailureRatio float64
	Logger       *slog.Logger
	Metrics      *BreakerMetrics
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "embedding-provider",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// BreakerProvider wraps a Provider with a circuit breaker. While the circuit
// is open, Embed fails fast without calling the provider.
type BreakerProvider struct {
	next    Provider
	cb      *gobreaker.CircuitBreaker[[]float32]
	name    string
	logger  *slog.Logger
	metrics *BreakerMetrics
}

// NewBreakerProvider wraps next.
func NewBreakerProvider(next Provider, cfg BreakerConfig) *BreakerProvider {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "embedding-provider"
	}

	p := &BreakerProvider{
		next:    next,
		name:    cfg.Name,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	p.cb = gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("embedding circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if p.metrics != nil {
				p.metrics.state.WithLabelValues(name).Set(stateValue(to))
			}
		},
	})

	if p.metrics != nil {
		p.metrics.state.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))
	}
	return p
}

// Model returns the wrapped provider's model.
func (p *BreakerProvider) Model() string {
	return p.next.Model()
}

// Embed calls the wrapped provider through the circuit breaker.
func (p *BreakerProvider) Embed(ctx context.Context, input string) ([]float32, error) {
	vec, err := p.cb.Execute(func() ([]float32, error) {
		return p.next.Embed(ctx, input)
	})
	switch {
	case err == nil:
		p.observe("success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.observe("rejected")
	default:
		p.observe("failure")
	}
	return vec, err
}

// State returns the current breaker state.
func (p *BreakerProvider) State() gobreaker.State {
	return p.cb.State()
}

func (p *BreakerProvider) observe(result string) {
	if p.metrics != nil {
		p.metrics.requests.WithLabelValues(p.name, result).Inc()
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerMetrics exposes circuit breaker state and outcomes.
type BreakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
}

// NewBreakerMetrics creates unregistered breaker metrics.
func NewBreakerMetrics() *BreakerMetrics {
	return &BreakerMetrics{
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "embedding_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedding_requests_total",
				Help: "Embedding provider calls by result (success, failure, rejected)",
			},
			[]string{"breaker", "result"},
		),
	}
}

// Register registers the metrics with reg.
func (m *BreakerMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *BreakerMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.state, m.requests}
}
