package review

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// errScorerUnavailable marks an Unavailable outcome as a breaker failure
var errScorerUnavailable = errors.New("relevance scorer unavailable")

// BreakerScorer stops calling a failing scorer for a cool-down period.
// While the circuit is open every request is Unavailable without an
// upstream round-trip.
type BreakerScorer struct {
	next   Scorer
	cb     *gobreaker.CircuitBreaker[Outcome]
	logger *zap.Logger
}

// BreakerSettings configures the circuit breaker
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// NewBreakerScorer wraps next with a circuit breaker
func NewBreakerScorer(next Scorer, settings BreakerSettings, logger *zap.Logger) *BreakerScorer {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	b := &BreakerScorer{
		next:   next,
		logger: logger,
	}

	b.cb = gobreaker.NewCircuitBreaker[Outcome](gobreaker.Settings{
		Name:        "relevance-scorer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Info("[CIRCUIT BREAKER] State transition",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return b
}

// Score implements Scorer
func (b *BreakerScorer) Score(ctx context.Context, req Request) Outcome {
	outcome, err := b.cb.Execute(func() (Outcome, error) {
		out := b.next.Score(ctx, req)
		if _, ok := out.(Unavailable); ok {
			return out, errScorerUnavailable
		}
		return out, nil
	})
	if err == nil {
		return outcome
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Unavailable{Reason: "relevance scorer circuit open"}
	}
	if u, ok := outcome.(Unavailable); ok {
		return u
	}
	return Unavailable{Reason: err.Error()}
}

// State returns the current breaker state name
func (b *BreakerScorer) State() string {
	return b.cb.State().String()
}
