// Package review scores how well a thread's content matches its declared
// SDG categories. Scorers never fail: every problem collapses into an
// Unavailable outcome so the moderation layer can choose between failing
// open and failing closed.
package review

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// MaxScore is the upper bound of a relevance score
const MaxScore = 100

// Request is the content submitted for scoring. Categories are names, not ids.
type Request struct {
	Title      string
	Body       string
	Tags       []string
	Categories []string
	MediaRef   string
}

// Outcome is either Scored or Unavailable
type Outcome interface {
	isOutcome()
}

// Scored is a computed relevance score in [0, 100]
type Scored struct {
	Score     int
	Rationale string
}

// Unavailable means no score could be obtained. It is distinct from a score of 0.
type Unavailable struct {
	Reason string
}

func (Scored) isOutcome()      {}
func (Unavailable) isOutcome() {}

// Scorer evaluates category fit for thread content
type Scorer interface {
	Score(ctx context.Context, req Request) Outcome
}

// ScorerFunc adapts a function to the Scorer interface
type ScorerFunc func(ctx context.Context, req Request) Outcome

// Score calls f(ctx, req)
func (f ScorerFunc) Score(ctx context.Context, req Request) Outcome {
	return f(ctx, req)
}

// Disabled is a scorer that is never available, used when no upstream is configured
type Disabled struct {
	Reason string
}

// Score always reports unavailability
func (d Disabled) Score(ctx context.Context, req Request) Outcome {
	reason := d.Reason
	if reason == "" {
		reason = "relevance scorer is not configured"
	}
	return Unavailable{Reason: reason}
}

// ClampScore rounds v into [0, MaxScore]; NaN and infinities become 0
func ClampScore(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return int(math.Round(v))
}

// CoerceScore converts a loosely-typed upstream value into a clamped score.
// Anything that is not a finite number, or a string holding one, becomes 0.
func CoerceScore(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return ClampScore(n)
	case float32:
		return ClampScore(float64(n))
	case int:
		return ClampScore(float64(n))
	case int64:
		return ClampScore(float64(n))
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return ClampScore(f)
	default:
		return 0
	}
}
