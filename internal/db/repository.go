package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/steemit/sdgforum/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CategoryRepository provides category lookups
type CategoryRepository struct {
	*Repository
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(repo *Repository) *CategoryRepository {
	return &CategoryRepository{Repository: repo}
}

// ListCategories returns every category ordered by goal number
func (r *CategoryRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("sdg_number ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// FindCategories returns the categories with the given ids that exist
func (r *CategoryRepository) FindCategories(ctx context.Context, ids []string) ([]models.Category, error) {
	var categories []models.Category
	if len(ids) == 0 {
		return categories, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// InteractionRepository provides grouped engagement counts
type InteractionRepository struct {
	*Repository
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(repo *Repository) *InteractionRepository {
	return &InteractionRepository{Repository: repo}
}

// CountInteractions groups interactions of the given threads by thread and type
func (r *InteractionRepository) CountInteractions(ctx context.Context, threadIDs []string) ([]models.InteractionCount, error) {
	var rows []models.InteractionCount
	err := r.db.WithContext(ctx).
		Model(&models.Interaction{}).
		Select("thread_id, type, COUNT(*) AS total").
		Where("thread_id IN ?", threadIDs).
		Group("thread_id, type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountReplies counts active direct replies per parent thread
func (r *InteractionRepository) CountReplies(ctx context.Context, threadIDs []string) (map[string]int64, error) {
	var rows []struct {
		ParentID string `gorm:"column:parent_id"`
		Total    int64  `gorm:"column:total"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.Thread{}).
		Select("parent_thread_id AS parent_id, COUNT(*) AS total").
		Where("parent_thread_id IN ? AND status = ?", threadIDs, models.ThreadStatusActive).
		Group("parent_thread_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ParentID] = row.Total
	}
	return counts, nil
}
