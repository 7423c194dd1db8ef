package review

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBreakerScorer_OpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	inner := ScorerFunc(func(ctx context.Context, req Request) Outcome {
		calls++
		return Unavailable{Reason: "upstream timeout"}
	})

	b := NewBreakerScorer(inner, BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: time.Hour}, zap.NewNop())

	for i := 0; i < 3; i++ {
		out := b.Score(context.Background(), Request{})
		u, ok := out.(Unavailable)
		if !ok || u.Reason != "upstream timeout" {
			t.Fatalf("call %d: expected inner Unavailable, got %#v", i, out)
		}
	}

	out := b.Score(context.Background(), Request{})
	if u, ok := out.(Unavailable); !ok || u.Reason != "relevance scorer circuit open" {
		t.Fatalf("expected open circuit, got %#v", out)
	}
	if calls != 3 {
		t.Errorf("expected inner scorer to be called 3 times, got %d", calls)
	}
	if b.State() != "open" {
		t.Errorf("State() = %q, want open", b.State())
	}
}

func TestBreakerScorer_PassesScores(t *testing.T) {
	inner := ScorerFunc(func(ctx context.Context, req Request) Outcome {
		return Scored{Score: 0, Rationale: "unrelated"}
	})
	b := NewBreakerScorer(inner, BreakerSettings{ConsecutiveFailures: 1}, zap.NewNop())

	// A zero score is a result, not a failure, so the circuit stays closed
	for i := 0; i < 5; i++ {
		if out := b.Score(context.Background(), Request{}); out != (Scored{Score: 0, Rationale: "unrelated"}) {
			t.Fatalf("unexpected outcome %#v", out)
		}
	}
	if b.State() != "closed" {
		t.Errorf("State() = %q, want closed", b.State())
	}
}
