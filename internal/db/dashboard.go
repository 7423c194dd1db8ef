package db

import (
	"context"
	"time"

	"github.com/steemit/sdgforum/internal/dashboard"
	"github.com/steemit/sdgforum/internal/models"
)

// DashboardRepository runs the windowed activity aggregates
type DashboardRepository struct {
	*Repository
}

// NewDashboardRepository creates a new dashboard repository
func NewDashboardRepository(repo *Repository) *DashboardRepository {
	return &DashboardRepository{Repository: repo}
}

// CountThreadsSince counts active threads or replies created since
func (r *DashboardRepository) CountThreadsSince(ctx context.Context, since time.Time, replies bool) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Thread{}).
		Where("status = ? AND created_at >= ?", models.ThreadStatusActive, since)
	if replies {
		query = query.Where("parent_thread_id IS NOT NULL")
	} else {
		query = query.Where("parent_thread_id IS NULL")
	}

	var total int64
	err := query.Count(&total).Error
	return total, err
}

// CountInteractionsSince counts interactions on active threads since
func (r *DashboardRepository) CountInteractionsSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Table("interactions").
		Joins("JOIN threads ON threads.id = interactions.thread_id").
		Where("interactions.created_at >= ? AND threads.status = ?", since, models.ThreadStatusActive).
		Count(&total).Error
	return total, err
}

// TopInteracted ranks active threads by interactions since, most first
func (r *DashboardRepository) TopInteracted(ctx context.Context, since time.Time, limit int) ([]dashboard.ThreadTotal, error) {
	var rows []dashboard.ThreadTotal
	err := r.db.WithContext(ctx).
		Table("interactions").
		Select("interactions.thread_id AS thread_id, COUNT(*) AS total").
		Joins("JOIN threads ON threads.id = interactions.thread_id").
		Where("interactions.created_at >= ? AND threads.status = ?", since, models.ThreadStatusActive).
		Group("interactions.thread_id").
		Order("total DESC, interactions.thread_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// WindowCounts groups interactions since by thread and type
func (r *DashboardRepository) WindowCounts(ctx context.Context, since time.Time, threadIDs []string) ([]models.InteractionCount, error) {
	var rows []models.InteractionCount
	err := r.db.WithContext(ctx).
		Model(&models.Interaction{}).
		Select("thread_id, type, COUNT(*) AS total").
		Where("thread_id IN ? AND created_at >= ?", threadIDs, since).
		Group("thread_id, type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadThreads loads threads with author and categories
func (r *DashboardRepository) LoadThreads(ctx context.Context, ids []string) ([]models.Thread, error) {
	var threads []models.Thread
	if err := withThreadRelations(r.db.WithContext(ctx)).Where("id IN ?", ids).Find(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}
