// Package moderation decides whether thread content is admitted, rejected
// or retroactively removed based on its relevance score.
package moderation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/internal/review"
	"github.com/steemit/sdgforum/pkg/telemetry"
)

// DefaultMatchThreshold is the minimum accepted relevance score
const DefaultMatchThreshold = 70

// Mode is the moment a review happens
type Mode int

const (
	// PreCreate runs before first persistence and fails closed
	PreCreate Mode = iota
	// PostHoc runs on live content after enough reports and fails open
	PostHoc
)

// String returns the mode name
func (m Mode) String() string {
	if m == PostHoc {
		return "post_hoc"
	}
	return "pre_create"
}

// Verdict is the policy outcome for one review
type Verdict int

const (
	VerdictAccept Verdict = iota
	VerdictReject
	VerdictUnavailable
)

// String returns the verdict name
func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictReject:
		return "reject"
	default:
		return "unavailable"
	}
}

// Decision is the result of applying the threshold to a review outcome
type Decision struct {
	Verdict   Verdict
	Mode      Mode
	Score     int
	Rationale string
	// Reason explains an unavailable verdict
	Reason string
}

// Err converts a pre-create decision into the error surfaced to the requester
func (d Decision) Err() error {
	switch d.Verdict {
	case VerdictAccept:
		return nil
	case VerdictReject:
		return apperr.Rejected(d.Score, d.Rationale)
	default:
		return apperr.Unavailable("thread relevance review is temporarily unavailable, please retry")
	}
}

// Store is the persistence the engine and the report aggregator need
type Store interface {
	// GetThreadForReview loads a thread with its categories, or nil if it does not exist
	GetThreadForReview(ctx context.Context, id string) (*models.Thread, error)
	// ApplyReview writes the score and, when remove is set, removes the
	// thread and its direct replies in one transaction
	ApplyReview(ctx context.Context, id string, score int, remove bool, reviewedAt time.Time) error
	// CountReports counts every report ever filed against the thread
	CountReports(ctx context.Context, threadID string) (int64, error)
}

// Engine applies the match threshold to relevance scores
type Engine struct {
	scorer    review.Scorer
	store     Store
	threshold int
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a moderation engine
func NewEngine(scorer review.Scorer, store Store, threshold int, logger *zap.Logger) *Engine {
	return &Engine{
		scorer:    scorer,
		store:     store,
		threshold: threshold,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Threshold returns the configured match threshold
func (e *Engine) Threshold() int {
	return e.threshold
}

// Evaluate applies the threshold: score < threshold rejects, otherwise accepts
func (e *Engine) Evaluate(outcome review.Outcome, mode Mode) Decision {
	switch o := outcome.(type) {
	case review.Scored:
		d := Decision{Mode: mode, Score: o.Score, Rationale: o.Rationale}
		if o.Score < e.threshold {
			d.Verdict = VerdictReject
		} else {
			d.Verdict = VerdictAccept
		}
		return d
	case review.Unavailable:
		return Decision{Verdict: VerdictUnavailable, Mode: mode, Reason: o.Reason}
	default:
		return Decision{Verdict: VerdictUnavailable, Mode: mode, Reason: "no review outcome"}
	}
}

// ReviewForCreate scores content that has not been persisted yet. The
// returned error is nil only for an accept; rejections and outages are
// distinct error kinds and the caller must not write anything.
func (e *Engine) ReviewForCreate(ctx context.Context, req review.Request) (Decision, error) {
	ctx, span := telemetry.StartSpan(ctx, "moderation.review_for_create")
	defer span.End()

	decision := e.Evaluate(e.scorer.Score(ctx, req), PreCreate)
	e.record(ctx, decision)

	if decision.Verdict != VerdictAccept {
		e.logger.Info("Thread blocked before creation",
			zap.String("verdict", decision.Verdict.String()),
			zap.Int("score", decision.Score),
			zap.Int("threshold", e.threshold),
			zap.String("reason", decision.Reason))
	}

	return decision, decision.Err()
}

// ReviewLive re-scores a live thread and applies the decision: accept
// updates the score, reject removes the thread, unavailable changes nothing.
// The error reports store failures only.
func (e *Engine) ReviewLive(ctx context.Context, thread *models.Thread) (Decision, error) {
	ctx, span := telemetry.StartSpan(ctx, "moderation.review_live")
	defer span.End()

	decision := e.Evaluate(e.scorer.Score(ctx, RequestFor(thread)), PostHoc)
	e.record(ctx, decision)

	switch decision.Verdict {
	case VerdictUnavailable:
		return decision, nil
	case VerdictReject:
		if err := e.store.ApplyReview(ctx, thread.ID, decision.Score, true, e.now()); err != nil {
			return decision, err
		}
		e.logger.Info("Thread removed after re-review",
			zap.String("thread_id", thread.ID),
			zap.Int("score", decision.Score),
			zap.Int("threshold", e.threshold))
	default:
		if err := e.store.ApplyReview(ctx, thread.ID, decision.Score, false, e.now()); err != nil {
			return decision, err
		}
	}

	return decision, nil
}

func (e *Engine) record(ctx context.Context, d Decision) {
	telemetry.Metrics().ModerationDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", d.Mode.String()),
		attribute.String("verdict", d.Verdict.String()),
	))
}

// RequestFor builds a scorer request from a thread's current content
func RequestFor(thread *models.Thread) review.Request {
	req := review.Request{
		Title:      thread.Title,
		Body:       thread.Body,
		Tags:       thread.Tags,
		Categories: models.CategoryNames(thread.Categories),
	}
	if thread.Image.Valid {
		req.MediaRef = thread.Image.String
	}
	return req
}
