// Package resilience guards outbound dependencies with circuit breakers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StateObserver is notified of breaker state changes (0=closed, 1=half-open, 2=open)
type StateObserver interface {
	SetCircuitBreakerState(name string, state int)
	RecordCircuitBreakerTrip(name string)
}

// BreakerSettings tunes when a dependency is considered down
type BreakerSettings struct {
	Name string
	// HalfOpenProbes is the number of calls let through while half-open
	HalfOpenProbes uint32
	// Window clears the counters while closed; zero keeps them forever
	Window time.Duration
	// Cooldown is how long the breaker stays open
	Cooldown time.Duration
	// ConsecutiveFailures trips the breaker on its own
	ConsecutiveFailures uint32
	// FailureRatio trips the breaker once MinRequests calls were seen
	FailureRatio float64
	MinRequests  uint32
}

// DependencySettings are the settings for a synchronous lookup dependency
func DependencySettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:                name,
		HalfOpenProbes:      3,
		Window:              time.Minute,
		Cooldown:            30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

func (s BreakerSettings) readyToTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= s.ConsecutiveFailures {
		return true
	}
	if s.MinRequests == 0 || counts.Requests < s.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
}

// Breaker is a named circuit breaker that logs and reports its state
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewBreaker creates a Breaker. logger and observer may be nil.
func NewBreaker(settings BreakerSettings, logger *slog.Logger, observer StateObserver) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.HalfOpenProbes,
		Interval:    settings.Window,
		Timeout:     settings.Cooldown,
		ReadyToTrip: settings.readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if observer == nil {
				return
			}
			observer.SetCircuitBreakerState(name, int(to))
			if to == gobreaker.StateOpen {
				observer.RecordCircuitBreakerTrip(name)
			}
		},
	})
	return &Breaker{cb: cb, logger: logger}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.cb.Name()
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Call runs fn through b. A cancelled context is reported without touching
// the breaker; rejected calls wrap ErrCircuitOpen.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		b.logger.Warn("Circuit breaker rejected call", "name", b.Name(), "state", b.State().String())
		return zero, fmt.Errorf("%s: %w", b.Name(), ErrCircuitOpen)
	case err != nil:
		return zero, err
	}
	return result.(T), nil
}
