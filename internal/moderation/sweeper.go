package moderation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PendingStore lists threads whose re-review is due
type PendingStore interface {
	// ListPendingReReviews returns ACTIVE threads with at least minReports
	// reports whose newest report is newer than their last review
	ListPendingReReviews(ctx context.Context, minReports int64, limit int) ([]string, error)
}

// Sweeper periodically re-runs threshold checks that have not been applied,
// which retries re-reviews skipped while the scorer was unavailable
type Sweeper struct {
	aggregator *Aggregator
	store      PendingStore
	interval   time.Duration
	batch      int
	logger     *zap.Logger
}

// NewSweeper creates a re-review sweeper
func NewSweeper(aggregator *Aggregator, store PendingStore, interval time.Duration, batch int, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	return &Sweeper{
		aggregator: aggregator,
		store:      store,
		interval:   interval,
		batch:      batch,
		logger:     logger,
	}
}

// Run sweeps until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("Starting re-review sweeper",
		zap.Duration("interval", s.interval),
		zap.Int("batch", s.batch),
		zap.Int64("report_threshold", s.aggregator.Threshold()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			counts, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("Failed to list pending re-reviews", zap.Error(err))
			} else if len(counts) > 0 {
				s.logger.Info("Re-review sweep finished",
					zap.Int("accepted", counts[ActionAccepted]),
					zap.Int("removed", counts[ActionRemoved]),
					zap.Int("skipped", counts[ActionSkipped]))
			}

			// Wait before next sweep
			s.wait(ctx, s.interval)
		}
	}
}

// SweepOnce checks one batch of pending threads and tallies the actions
func (s *Sweeper) SweepOnce(ctx context.Context) (map[Action]int, error) {
	ids, err := s.store.ListPendingReReviews(ctx, s.aggregator.Threshold(), s.batch)
	if err != nil {
		return nil, err
	}

	counts := make(map[Action]int)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		outcome := s.aggregator.CheckThreshold(ctx, id)
		counts[outcome.Action]++
	}
	return counts, nil
}

// wait waits for the specified duration or until context is cancelled
func (s *Sweeper) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
