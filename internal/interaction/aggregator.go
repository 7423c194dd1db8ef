// Package interaction derives per-thread engagement counts from raw
// interaction and reply rows.
package interaction

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/steemit/sdgforum/internal/models"
)

// Counts is the derived engagement of one thread
type Counts struct {
	Likes   int64 `json:"likes"`
	Reposts int64 `json:"reposts"`
	Replies int64 `json:"replies"`
}

// Source runs the grouped count queries
type Source interface {
	// CountInteractions groups interactions of the given threads by thread and type
	CountInteractions(ctx context.Context, threadIDs []string) ([]models.InteractionCount, error)
	// CountReplies counts active direct replies per parent thread
	CountReplies(ctx context.Context, threadIDs []string) (map[string]int64, error)
}

// Aggregator computes counts on every read; nothing is cached or persisted
type Aggregator struct {
	source Source
}

// NewAggregator creates a new interaction aggregator
func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source}
}

// Summarize returns counts for every requested thread, zeros included.
// An empty id list returns an empty map without touching the source.
func (a *Aggregator) Summarize(ctx context.Context, threadIDs []string) (map[string]Counts, error) {
	result := make(map[string]Counts, len(threadIDs))
	if len(threadIDs) == 0 {
		return result, nil
	}

	ids := dedupe(threadIDs)
	for _, id := range ids {
		result[id] = Counts{}
	}

	var (
		rows    []models.InteractionCount
		replies map[string]int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = a.source.CountInteractions(gctx, ids)
		if err != nil {
			return fmt.Errorf("failed to count interactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		replies, err = a.source.CountReplies(gctx, ids)
		if err != nil {
			return fmt.Errorf("failed to count replies: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, row := range rows {
		c, ok := result[row.ThreadID]
		if !ok {
			continue
		}
		switch row.Type {
		case models.InteractionLike:
			c.Likes += row.Total
		case models.InteractionRepost:
			c.Reposts += row.Total
		}
		result[row.ThreadID] = c
	}

	for id, n := range replies {
		if c, ok := result[id]; ok {
			c.Replies = n
			result[id] = c
		}
	}

	return result, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
