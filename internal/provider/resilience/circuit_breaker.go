// Package resilience provides the HTTP client used for upstream forecast calls:
// fixed-delay retries for rate limits and transport failures, timeouts, and a
// circuit breaker, plus a registry that reports provider health.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Circuit breaker defaults. One breaker outcome is one fetch including its
// retries. Fetches are spaced about a minute apart, so the breaker counts
// consecutive failed fetches rather than a failure ratio. Four is two whole
// stations. The open timeout stays below the 61s station cooldown so every
// station gets at least a probe request.
const (
	DefaultTripAfter   = 4
	DefaultOpenTimeout = 30 * time.Second
)

// CircuitBreakerConfig configures the breaker in front of one provider.
type CircuitBreakerConfig struct {
	Name string

	// ProbeRequests is how many requests a half-open circuit lets through.
	// Default: 1
	ProbeRequests uint32

	// OpenTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// ReadyToTrip decides when a closed circuit opens.
	// Default: DefaultReadyToTrip
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// DefaultCircuitBreakerConfig returns the defaults for name.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:          name,
		ProbeRequests: 1,
		OpenTimeout:   DefaultOpenTimeout,
		ReadyToTrip:   DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the circuit after DefaultTripAfter consecutive
// failed fetches. Counts are never cleared while closed, so a success in between
// resets the streak.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return counts.ConsecutiveFailures >= DefaultTripAfter
}

// countsAsSuccess keeps caller cancellations out of the failure streak: a run
// hitting its deadline says nothing about upstream health. Attempts that ran
// out, timeouts included, are failures.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrMaxRetriesExceeded) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// NewCircuitBreaker creates a breaker that logs its state transitions.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[T] {
	if cfg.ProbeRequests == 0 {
		cfg.ProbeRequests = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = DefaultReadyToTrip
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.ProbeRequests,
		Timeout:      cfg.OpenTimeout,
		ReadyToTrip:  cfg.ReadyToTrip,
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.
				Str("circuit", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("circuit breaker state changed")
		},
	})
}
