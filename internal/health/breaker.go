package health

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while a guarded dependency's circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerState is implemented by components guarded by a circuit breaker.
type BreakerState interface {
	State() gobreaker.State
}

// BreakerChecker reports a dependency as unhealthy while its circuit is open.
type BreakerChecker struct {
	breaker BreakerState
}

// NewBreakerChecker creates a new circuit breaker health checker.
func NewBreakerChecker(b BreakerState) *BreakerChecker {
	return &BreakerChecker{breaker: b}
}

// HealthCheck returns ErrCircuitOpen when the circuit is open.
func (c *BreakerChecker) HealthCheck(ctx context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return ErrCircuitOpen
	}
	return nil
}
