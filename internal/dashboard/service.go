// Package dashboard computes the weekly activity summary.
package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/interaction"
	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/internal/thread"
)

const (
	window   = 7 * 24 * time.Hour
	topLimit = 10
)

// ThreadTotal is the number of interactions a thread received
type ThreadTotal struct {
	ThreadID string `gorm:"column:thread_id"`
	Total    int64  `gorm:"column:total"`
}

// Store runs the windowed aggregate queries
type Store interface {
	// CountThreadsSince counts active threads created since; replies selects replies instead of top-level threads
	CountThreadsSince(ctx context.Context, since time.Time, replies bool) (int64, error)
	// CountInteractionsSince counts interactions on active threads
	CountInteractionsSince(ctx context.Context, since time.Time) (int64, error)
	// TopInteracted ranks active threads by interactions since, most first
	TopInteracted(ctx context.Context, since time.Time, limit int) ([]ThreadTotal, error)
	// WindowCounts groups interactions since by thread and type
	WindowCounts(ctx context.Context, since time.Time, threadIDs []string) ([]models.InteractionCount, error)
	// LoadThreads loads threads with author and categories
	LoadThreads(ctx context.Context, ids []string) ([]models.Thread, error)
}

// Counter derives all-time engagement counts
type Counter interface {
	Summarize(ctx context.Context, threadIDs []string) (map[string]interaction.Counts, error)
}

// WeeklyStats is the activity of the last seven days
type WeeklyStats struct {
	Since             time.Time `json:"since"`
	TotalThreads      int64     `json:"totalThreads"`
	TotalReplies      int64     `json:"totalReplies"`
	TotalInteractions int64     `json:"totalInteractions"`
}

// TopThread is a ranked thread with its in-window interaction split
type TopThread struct {
	InteractionCount int64       `json:"interactionCount"`
	Likes            int64       `json:"likes"`
	Reposts          int64       `json:"reposts"`
	Thread           thread.View `json:"thread"`
}

// TopThreads is the weekly ranking
type TopThreads struct {
	Since   time.Time   `json:"since"`
	Threads []TopThread `json:"threads"`
}

// Service serves dashboard aggregates
type Service struct {
	store   Store
	counter Counter
	now     func() time.Time
}

// NewService creates a dashboard service
func NewService(store Store, counter Counter) *Service {
	return &Service{
		store:   store,
		counter: counter,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WeeklyStats counts threads, replies and interactions of the last week
func (s *Service) WeeklyStats(ctx context.Context) (*WeeklyStats, error) {
	stats := &WeeklyStats{Since: s.now().Add(-window)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.TotalThreads, err = s.store.CountThreadsSince(gctx, stats.Since, false)
		return err
	})
	g.Go(func() error {
		var err error
		stats.TotalReplies, err = s.store.CountThreadsSince(gctx, stats.Since, true)
		return err
	})
	g.Go(func() error {
		var err error
		stats.TotalInteractions, err = s.store.CountInteractionsSince(gctx, stats.Since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("failed to compute weekly stats", err)
	}

	return stats, nil
}

// TopThreads ranks the ten most interacted active threads of the last week
func (s *Service) TopThreads(ctx context.Context) (*TopThreads, error) {
	since := s.now().Add(-window)
	result := &TopThreads{Since: since, Threads: []TopThread{}}

	totals, err := s.store.TopInteracted(ctx, since, topLimit)
	if err != nil {
		return nil, apperr.Internal("failed to rank threads", err)
	}
	if len(totals) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.ThreadID)
	}

	var (
		split   []models.InteractionCount
		threads []models.Thread
		counts  map[string]interaction.Counts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		split, err = s.store.WindowCounts(gctx, since, ids)
		return err
	})
	g.Go(func() error {
		var err error
		threads, err = s.store.LoadThreads(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.counter.Summarize(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("failed to load top threads", err)
	}

	byID := make(map[string]*models.Thread, len(threads))
	for i := range threads {
		byID[threads[i].ID] = &threads[i]
	}

	for _, t := range totals {
		loaded, ok := byID[t.ThreadID]
		if !ok {
			continue
		}
		result.Threads = append(result.Threads, TopThread{
			InteractionCount: t.Total,
			Thread:           thread.NewView(loaded, counts[t.ThreadID]),
		})
	}

	ranked := make(map[string]*TopThread, len(result.Threads))
	for i := range result.Threads {
		ranked[result.Threads[i].Thread.ID] = &result.Threads[i]
	}
	for _, row := range split {
		top, ok := ranked[row.ThreadID]
		if !ok {
			continue
		}
		switch row.Type {
		case models.InteractionLike:
			top.Likes = row.Total
		case models.InteractionRepost:
			top.Reposts = row.Total
		}
	}

	return result, nil
}
