package moderation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/steemit/sdgforum/pkg/telemetry"
)

// DefaultReportThreshold is the report count that triggers a re-review
const DefaultReportThreshold = 10

// Action is what a threshold check did
type Action int

const (
	ActionBelowThreshold Action = iota
	ActionAccepted
	ActionRemoved
	ActionSkipped
)

// String returns the action name
func (a Action) String() string {
	switch a {
	case ActionBelowThreshold:
		return "below_threshold"
	case ActionAccepted:
		return "accepted"
	case ActionRemoved:
		return "removed"
	default:
		return "skipped"
	}
}

// Outcome is the named result of a threshold check. Failures are reported
// as ActionSkipped with a Reason instead of an error: the check is a
// best-effort background safeguard and never fails the report that fired it.
type Outcome struct {
	Action  Action
	Reports int64
	Score   int
	Reason  string
}

// Reviewed reports whether the scorer produced a verdict that was applied
func (o Outcome) Reviewed() bool {
	return o.Action == ActionAccepted || o.Action == ActionRemoved
}

// Aggregator triggers post-hoc review once a thread collects enough reports
type Aggregator struct {
	engine    *Engine
	store     Store
	threshold int64
	logger    *zap.Logger
}

// NewAggregator creates a report aggregator
func NewAggregator(engine *Engine, store Store, threshold int, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		engine:    engine,
		store:     store,
		threshold: int64(threshold),
		logger:    logger,
	}
}

// Threshold returns the report count that triggers a re-review
func (a *Aggregator) Threshold() int64 {
	return a.threshold
}

// CheckThreshold re-reviews the thread when its cumulative report count is
// at or past the threshold. Running it again after the threshold was
// crossed re-evaluates and re-applies the same state.
func (a *Aggregator) CheckThreshold(ctx context.Context, threadID string) Outcome {
	ctx, span := telemetry.StartSpan(ctx, "moderation.check_report_threshold")
	defer span.End()

	outcome := a.check(ctx, threadID)
	span.SetAttributes(
		attribute.String("moderation.action", outcome.Action.String()),
		attribute.Int64("moderation.reports", outcome.Reports),
	)

	if outcome.Action != ActionBelowThreshold {
		telemetry.Metrics().Rereviews.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.Action.String())))
	}

	if outcome.Action == ActionSkipped {
		a.logger.Warn("Re-review skipped",
			zap.String("thread_id", threadID),
			zap.Int64("reports", outcome.Reports),
			zap.String("reason", outcome.Reason))
	} else if outcome.Reviewed() {
		a.logger.Info("Re-review applied",
			zap.String("thread_id", threadID),
			zap.String("action", outcome.Action.String()),
			zap.Int64("reports", outcome.Reports),
			zap.Int("score", outcome.Score))
	}

	return outcome
}

func (a *Aggregator) check(ctx context.Context, threadID string) Outcome {
	count, err := a.store.CountReports(ctx, threadID)
	if err != nil {
		return Outcome{Action: ActionSkipped, Reason: fmt.Sprintf("count reports: %v", err)}
	}
	if count < a.threshold {
		return Outcome{Action: ActionBelowThreshold, Reports: count}
	}

	thread, err := a.store.GetThreadForReview(ctx, threadID)
	if err != nil {
		return Outcome{Action: ActionSkipped, Reports: count, Reason: fmt.Sprintf("load thread: %v", err)}
	}
	if thread == nil {
		return Outcome{Action: ActionSkipped, Reports: count, Reason: "thread not found"}
	}
	if !thread.IsActive() {
		return Outcome{Action: ActionSkipped, Reports: count, Reason: "thread is not active"}
	}

	decision, err := a.engine.ReviewLive(ctx, thread)
	if err != nil {
		return Outcome{Action: ActionSkipped, Reports: count, Score: decision.Score, Reason: fmt.Sprintf("apply review: %v", err)}
	}

	switch decision.Verdict {
	case VerdictAccept:
		return Outcome{Action: ActionAccepted, Reports: count, Score: decision.Score}
	case VerdictReject:
		return Outcome{Action: ActionRemoved, Reports: count, Score: decision.Score}
	default:
		return Outcome{Action: ActionSkipped, Reports: count, Reason: "scorer unavailable: " + decision.Reason}
	}
}
