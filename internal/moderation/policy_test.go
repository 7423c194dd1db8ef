package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/internal/review"
)

func TestEvaluate(t *testing.T) {
	engine := NewEngine(review.Disabled{}, newMemStore(), 70, zap.NewNop())

	tests := []struct {
		name     string
		outcome  review.Outcome
		expected Verdict
	}{
		{"below threshold", review.Scored{Score: 69}, VerdictReject},
		{"at threshold", review.Scored{Score: 70}, VerdictAccept},
		{"above threshold", review.Scored{Score: 100}, VerdictAccept},
		{"zero", review.Scored{Score: 0}, VerdictReject},
		{"unavailable", review.Unavailable{Reason: "timeout"}, VerdictUnavailable},
		{"nil outcome", nil, VerdictUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Evaluate(tt.outcome, PreCreate)
			if d.Verdict != tt.expected {
				t.Errorf("Evaluate() verdict = %v, want %v", d.Verdict, tt.expected)
			}
		})
	}
}

func TestReviewForCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("rejection carries score", func(t *testing.T) {
		scorer := &countingScorer{outcome: review.Scored{Score: 60, Rationale: "mostly sports"}}
		engine := NewEngine(scorer, newMemStore(), 70, zap.NewNop())

		d, err := engine.ReviewForCreate(ctx, review.Request{Title: "Match report"})
		require.Error(t, err)
		assert.Equal(t, VerdictReject, d.Verdict)
		assert.True(t, apperr.Is(err, apperr.KindRejected))

		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, 60, appErr.Score)
		assert.Equal(t, "mostly sports", appErr.Rationale)
		assert.Equal(t, 1, scorer.Calls())
	})

	t.Run("accept", func(t *testing.T) {
		engine := NewEngine(&countingScorer{outcome: review.Scored{Score: 75}}, newMemStore(), 70, zap.NewNop())
		d, err := engine.ReviewForCreate(ctx, review.Request{Title: "Solar"})
		require.NoError(t, err)
		assert.Equal(t, 75, d.Score)
	})

	t.Run("unavailable fails closed", func(t *testing.T) {
		engine := NewEngine(&countingScorer{outcome: review.Unavailable{Reason: "timeout"}}, newMemStore(), 70, zap.NewNop())
		_, err := engine.ReviewForCreate(ctx, review.Request{Title: "Solar"})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindUnavailable))
		assert.False(t, apperr.Is(err, apperr.KindRejected))
	})
}

func TestReviewLive(t *testing.T) {
	ctx := context.Background()

	t.Run("reject removes thread and replies", func(t *testing.T) {
		store := newMemStore()
		store.add(activeThread("t1"))
		store.add(replyTo("r1", "t1"))
		store.add(replyTo("r2", "t1"))
		store.add(activeThread("other"))

		engine := NewEngine(&countingScorer{outcome: review.Scored{Score: 20}}, store, 70, zap.NewNop())
		d, err := engine.ReviewLive(ctx, store.threads["t1"])
		require.NoError(t, err)
		assert.Equal(t, VerdictReject, d.Verdict)

		assert.Equal(t, models.ThreadStatusRemoved, store.threads["t1"].Status)
		assert.Equal(t, 20, store.threads["t1"].ReviewScore)
		assert.Equal(t, models.ThreadStatusRemoved, store.threads["r1"].Status)
		assert.Equal(t, models.ThreadStatusRemoved, store.threads["r2"].Status)
		assert.Equal(t, models.ThreadStatusActive, store.threads["other"].Status)
	})

	t.Run("accept updates score only", func(t *testing.T) {
		store := newMemStore()
		store.add(activeThread("t1"))

		engine := NewEngine(&countingScorer{outcome: review.Scored{Score: 88}}, store, 70, zap.NewNop())
		_, err := engine.ReviewLive(ctx, store.threads["t1"])
		require.NoError(t, err)
		assert.Equal(t, models.ThreadStatusActive, store.threads["t1"].Status)
		assert.Equal(t, 88, store.threads["t1"].ReviewScore)
		assert.True(t, store.threads["t1"].ReviewedAt.Valid)
	})

	t.Run("unavailable leaves thread untouched", func(t *testing.T) {
		store := newMemStore()
		store.add(activeThread("t1"))
		store.threads["t1"].ReviewScore = 80

		engine := NewEngine(&countingScorer{outcome: review.Unavailable{Reason: "down"}}, store, 70, zap.NewNop())
		d, err := engine.ReviewLive(ctx, store.threads["t1"])
		require.NoError(t, err)
		assert.Equal(t, VerdictUnavailable, d.Verdict)
		assert.Equal(t, 0, store.applied)
		assert.Equal(t, 80, store.threads["t1"].ReviewScore)
		assert.Equal(t, models.ThreadStatusActive, store.threads["t1"].Status)
	})
}

func TestRequestFor(t *testing.T) {
	thread := activeThread("t1")
	thread.Image.String = "uploads/a.png"
	thread.Image.Valid = true

	req := RequestFor(thread)
	assert.Equal(t, "Community solar", req.Title)
	assert.Equal(t, []string{"Affordable and Clean Energy"}, req.Categories)
	assert.Equal(t, "uploads/a.png", req.MediaRef)
}
