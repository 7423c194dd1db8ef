package moderation

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/internal/review"
)

// countingScorer returns a fixed outcome and counts invocations
type countingScorer struct {
	mu      sync.Mutex
	outcome review.Outcome
	calls   int
}

func (s *countingScorer) Score(_ context.Context, _ review.Request) review.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.outcome
}

func (s *countingScorer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memStore struct {
	threads  map[string]*models.Thread
	reports  map[string]int64
	reportAt map[string]time.Time
	applyErr error
	applied  int
}

func newMemStore() *memStore {
	return &memStore{
		threads:  make(map[string]*models.Thread),
		reports:  make(map[string]int64),
		reportAt: make(map[string]time.Time),
	}
}

func (m *memStore) add(t *models.Thread) {
	m.threads[t.ID] = t
}

func (m *memStore) report(threadID string, at time.Time) {
	m.reports[threadID]++
	m.reportAt[threadID] = at
}

func (m *memStore) GetThreadForReview(_ context.Context, id string) (*models.Thread, error) {
	t, ok := m.threads[id]
	if !ok {
		return nil, nil
	}
	return t, nil
}

func (m *memStore) ApplyReview(_ context.Context, id string, score int, remove bool, reviewedAt time.Time) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	t, ok := m.threads[id]
	if !ok {
		return errors.New("no such thread")
	}
	m.applied++
	t.ReviewScore = score
	t.ReviewedAt = sql.NullTime{Time: reviewedAt, Valid: true}
	if remove {
		t.Status = models.ThreadStatusRemoved
		for _, reply := range m.threads {
			if reply.ParentThreadID.Valid && reply.ParentThreadID.String == id {
				reply.Status = models.ThreadStatusRemoved
			}
		}
	}
	return nil
}

func (m *memStore) CountReports(_ context.Context, threadID string) (int64, error) {
	return m.reports[threadID], nil
}

func (m *memStore) ListPendingReReviews(_ context.Context, minReports int64, limit int) ([]string, error) {
	var ids []string
	for id, t := range m.threads {
		if !t.IsActive() || m.reports[id] < minReports {
			continue
		}
		if t.ReviewedAt.Valid && !m.reportAt[id].After(t.ReviewedAt.Time) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func activeThread(id string) *models.Thread {
	return &models.Thread{
		ID:         id,
		Title:      "Community solar",
		Body:       "Rooftop panels for the school",
		Tags:       []string{"energy"},
		Status:     models.ThreadStatusActive,
		Categories: []models.Category{{ID: "7", Name: "Affordable and Clean Energy", SDGNumber: 7}},
	}
}

func replyTo(id, parent string) *models.Thread {
	t := activeThread(id)
	t.ParentThreadID = sql.NullString{String: parent, Valid: true}
	return t
}
