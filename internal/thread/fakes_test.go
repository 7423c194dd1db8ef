package thread

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/internal/review"
)

// memStore backs the thread, moderation, category and interaction
// components with maps
type memStore struct {
	mu           sync.Mutex
	threads      map[string]*models.Thread
	interactions map[string]models.Interaction
	reports      []models.Report
	users        map[string]*models.User
	categories   []models.Category
	creates      int
}

func newMemStore() *memStore {
	return &memStore{
		threads:      make(map[string]*models.Thread),
		interactions: make(map[string]models.Interaction),
		users:        make(map[string]*models.User),
		categories: []models.Category{
			{ID: "c11", Name: "Sustainable Cities and Communities", SDGNumber: 11},
			{ID: "c13", Name: "Climate Action", SDGNumber: 13},
			{ID: "c14", Name: "Life Below Water", SDGNumber: 14},
			{ID: "c15", Name: "Life on Land", SDGNumber: 15},
		},
	}
}

func interactionKey(threadID, userID string, kind models.InteractionType) string {
	return threadID + "/" + userID + "/" + string(kind)
}

func clone(t *models.Thread) *models.Thread {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.Categories = append([]models.Category(nil), t.Categories...)
	return &c
}

func (m *memStore) CreateThread(_ context.Context, t *models.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.threads[t.ID] = clone(t)
	return nil
}

func (m *memStore) GetThread(_ context.Context, id string) (*models.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		return nil, nil
	}
	return clone(t), nil
}

func (m *memStore) UpdateThread(_ context.Context, t *models.Thread, replaceCategories bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.threads[t.ID]
	categories := stored.Categories
	*stored = *clone(t)
	if !replaceCategories {
		stored.Categories = categories
	}
	return nil
}

func (m *memStore) RemoveWithReplies(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
	return nil
}

func (m *memStore) removeLocked(id string) {
	m.threads[id].Status = models.ThreadStatusRemoved
	for _, t := range m.threads {
		if t.ParentThreadID.Valid && t.ParentThreadID.String == id {
			t.Status = models.ThreadStatusRemoved
		}
	}
}

func (m *memStore) UpdateStatus(_ context.Context, id string, status models.ThreadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[id].Status = status
	return nil
}

func (m *memStore) ListThreads(_ context.Context, filter ListFilter) ([]models.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filterLocked(filter)
	if filter.Offset >= len(all) {
		return nil, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

func (m *memStore) CountThreads(_ context.Context, filter ListFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.filterLocked(filter))), nil
}

func (m *memStore) filterLocked(filter ListFilter) []models.Thread {
	var out []models.Thread
	for _, t := range m.threads {
		if !t.IsActive() || t.IsReply() {
			continue
		}
		if len(filter.Tags) > 0 && !overlaps(t.Tags, filter.Tags) {
			continue
		}
		if len(filter.CategoryIDs) > 0 {
			var ids []string
			for _, c := range t.Categories {
				ids = append(ids, c.ID)
			}
			if !overlaps(ids, filter.CategoryIDs) {
				continue
			}
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(t.Title), needle) && !strings.Contains(strings.ToLower(t.Body), needle) {
				continue
			}
		}
		out = append(out, *clone(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func overlaps(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func (m *memStore) ListReplies(_ context.Context, parentID string, offset, limit int) ([]models.Thread, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Thread
	for _, t := range m.threads {
		if t.IsActive() && t.ParentThreadID.Valid && t.ParentThreadID.String == parentID {
			out = append(out, *clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *memStore) AddInteraction(_ context.Context, in *models.Interaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := interactionKey(in.ThreadID, in.UserID, in.Type)
	if _, ok := m.interactions[key]; ok {
		return false, nil
	}
	m.interactions[key] = *in
	return true, nil
}

func (m *memStore) RemoveInteraction(_ context.Context, threadID, userID string, kind models.InteractionType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := interactionKey(threadID, userID, kind)
	if _, ok := m.interactions[key]; !ok {
		return false, nil
	}
	delete(m.interactions, key)
	return true, nil
}

func (m *memStore) CreateReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, *r)
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

// moderation.Store

func (m *memStore) GetThreadForReview(ctx context.Context, id string) (*models.Thread, error) {
	return m.GetThread(ctx, id)
}

func (m *memStore) ApplyReview(_ context.Context, id string, score int, remove bool, reviewedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.threads[id]
	t.ReviewScore = score
	t.ReviewedAt.Time = reviewedAt
	t.ReviewedAt.Valid = true
	if remove {
		m.removeLocked(id)
	}
	return nil
}

func (m *memStore) CountReports(_ context.Context, threadID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.reports {
		if r.ThreadID == threadID {
			n++
		}
	}
	return n, nil
}

// category.Store

func (m *memStore) ListCategories(_ context.Context) ([]models.Category, error) {
	return m.categories, nil
}

func (m *memStore) FindCategories(_ context.Context, ids []string) ([]models.Category, error) {
	var out []models.Category
	for _, c := range m.categories {
		for _, id := range ids {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// interaction.Source

func (m *memStore) CountInteractions(_ context.Context, threadIDs []string) ([]models.InteractionCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[[2]string]int64)
	for _, in := range m.interactions {
		totals[[2]string{in.ThreadID, string(in.Type)}]++
	}
	var out []models.InteractionCount
	for k, n := range totals {
		if contains(threadIDs, k[0]) {
			out = append(out, models.InteractionCount{ThreadID: k[0], Type: models.InteractionType(k[1]), Total: n})
		}
	}
	return out, nil
}

func (m *memStore) CountReplies(_ context.Context, threadIDs []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for _, t := range m.threads {
		if t.IsActive() && t.ParentThreadID.Valid && contains(threadIDs, t.ParentThreadID.String) {
			out[t.ParentThreadID.String]++
		}
	}
	return out, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// countingScorer returns a fixed outcome and counts invocations
type countingScorer struct {
	mu      sync.Mutex
	outcome review.Outcome
	calls   int
	last    review.Request
}

func (s *countingScorer) Score(_ context.Context, req review.Request) review.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = req
	return s.outcome
}

func (s *countingScorer) set(outcome review.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = outcome
}

func (s *countingScorer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
