// Package category resolves SDG category selections and serves the
// category list.
package category

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/models"
)

// Selection bounds for threads and chat groups
const (
	MinSelected = 1
	MaxSelected = 3
)

const listCacheKey = "categories:list"

// Store reads categories
type Store interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	FindCategories(ctx context.Context, ids []string) ([]models.Category, error)
}

// ListCache is the cache-aside backend for the category list
type ListCache interface {
	Enabled() bool
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Service serves categories
type Service struct {
	store  Store
	cache  ListCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewService creates a category service; cache may be nil
func NewService(store Store, cache ListCache, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		ttl:    time.Hour,
		logger: logger,
	}
}

// List returns all categories ordered by SDG number
func (s *Service) List(ctx context.Context) ([]models.Category, error) {
	if s.cache != nil && s.cache.Enabled() {
		var cached []models.Category
		hit, err := s.cache.GetJSON(ctx, listCacheKey, &cached)
		if err != nil {
			s.logger.Warn("Category cache read failed", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list categories", err)
	}

	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.SetJSON(ctx, listCacheKey, categories, s.ttl); err != nil {
			s.logger.Warn("Category cache write failed", zap.Error(err))
		}
	}

	return categories, nil
}

// Resolve validates a selection of 1-3 unique ids and loads them in the
// order given. Unknown ids are a NotFound error.
func (s *Service) Resolve(ctx context.Context, ids []string) ([]models.Category, error) {
	normalized, err := NormalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	found, err := s.store.FindCategories(ctx, normalized)
	if err != nil {
		return nil, apperr.Internal("failed to load categories", err)
	}
	if len(found) != len(normalized) {
		return nil, apperr.NotFound("one or more categories were not found")
	}

	byID := make(map[string]models.Category, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	ordered := make([]models.Category, 0, len(normalized))
	for _, id := range normalized {
		c, ok := byID[id]
		if !ok {
			return nil, apperr.NotFound("category %s was not found", id)
		}
		ordered = append(ordered, c)
	}
	return ordered, nil
}

// NormalizeIDs trims ids, drops blanks and duplicates, and enforces the
// selection bounds
func NormalizeIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	if len(out) < MinSelected || len(out) > MaxSelected {
		return nil, apperr.Validation("select between %d and %d categories", MinSelected, MaxSelected)
	}
	return out, nil
}
