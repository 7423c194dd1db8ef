package db

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/internal/thread"
)

// ThreadRepository provides thread, interaction and report persistence
type ThreadRepository struct {
	*Repository
}

// NewThreadRepository creates a new thread repository
func NewThreadRepository(repo *Repository) *ThreadRepository {
	return &ThreadRepository{Repository: repo}
}

func withThreadRelations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Author").
		Preload("Categories", func(db *gorm.DB) *gorm.DB {
			return db.Order("categories.sdg_number ASC")
		})
}

// CreateThread inserts the thread and its category links in one transaction
func (r *ThreadRepository) CreateThread(ctx context.Context, t *models.Thread) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
			return err
		}
		return linkCategories(tx, t.ID, t.Categories)
	})
}

func linkCategories(tx *gorm.DB, threadID string, categories []models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	links := make([]models.ThreadCategory, 0, len(categories))
	for _, c := range categories {
		links = append(links, models.ThreadCategory{ThreadID: threadID, CategoryID: c.ID})
	}
	return tx.Create(&links).Error
}

// GetThread loads a thread in any status with author and categories, or nil
func (r *ThreadRepository) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	var t models.Thread
	found, err := first(withThreadRelations(r.db.WithContext(ctx)).Where("id = ?", id), &t)
	if err != nil || !found {
		return nil, err
	}
	return &t, nil
}

// UpdateThread saves edited fields and optionally replaces category links
func (r *ThreadRepository) UpdateThread(ctx context.Context, t *models.Thread, replaceCategories bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Thread{ID: t.ID}).
			Select("title", "body", "tags", "image", "updated_at").
			Updates(t).Error
		if err != nil {
			return err
		}
		if !replaceCategories {
			return nil
		}
		if err := tx.Where("thread_id = ?", t.ID).Delete(&models.ThreadCategory{}).Error; err != nil {
			return err
		}
		return linkCategories(tx, t.ID, t.Categories)
	})
}

// RemoveWithReplies marks the thread and its active direct replies REMOVED atomically
func (r *ThreadRepository) RemoveWithReplies(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return removeCascade(tx, id, time.Now().UTC())
	})
}

func removeCascade(tx *gorm.DB, id string, at time.Time) error {
	removed := map[string]interface{}{"status": models.ThreadStatusRemoved, "updated_at": at}

	if err := tx.Model(&models.Thread{}).Where("id = ?", id).Updates(removed).Error; err != nil {
		return err
	}
	return tx.Model(&models.Thread{}).
		Where("parent_thread_id = ? AND status = ?", id, models.ThreadStatusActive).
		Updates(removed).Error
}

// UpdateStatus sets the status of a single thread
func (r *ThreadRepository) UpdateStatus(ctx context.Context, id string, status models.ThreadStatus) error {
	return r.db.WithContext(ctx).Model(&models.Thread{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
}

// filtered applies a listing filter to active top-level threads
func filtered(query *gorm.DB, filter thread.ListFilter) *gorm.DB {
	query = query.Where("threads.status = ? AND threads.parent_thread_id IS NULL", models.ThreadStatusActive)

	if len(filter.Tags) > 0 {
		query = query.Where("EXISTS (SELECT 1 FROM jsonb_array_elements_text(threads.tags) AS tag(value) WHERE tag.value IN ?)", filter.Tags)
	}
	if len(filter.CategoryIDs) > 0 {
		query = query.Where("EXISTS (SELECT 1 FROM thread_categories tc WHERE tc.thread_id = threads.id AND tc.category_id IN ?)", filter.CategoryIDs)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		query = query.Where("(threads.title ILIKE ? OR threads.body ILIKE ?)", pattern, pattern)
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ListThreads returns a page of active top-level threads, newest first
func (r *ThreadRepository) ListThreads(ctx context.Context, filter thread.ListFilter) ([]models.Thread, error) {
	var threads []models.Thread
	err := filtered(withThreadRelations(r.db.WithContext(ctx)).Model(&models.Thread{}), filter).
		Order("threads.created_at DESC, threads.id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return threads, nil
}

// CountThreads counts the threads matching filter
func (r *ThreadRepository) CountThreads(ctx context.Context, filter thread.ListFilter) (int64, error) {
	var total int64
	err := filtered(r.db.WithContext(ctx).Model(&models.Thread{}), filter).Count(&total).Error
	return total, err
}

// ListReplies returns a page of active replies, oldest first, and their total
func (r *ThreadRepository) ListReplies(ctx context.Context, parentID string, offset, limit int) ([]models.Thread, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		return db.Model(&models.Thread{}).
			Where("parent_thread_id = ? AND status = ?", parentID, models.ThreadStatusActive)
	}

	var total int64
	if err := scope(r.db.WithContext(ctx)).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var replies []models.Thread
	err := scope(withThreadRelations(r.db.WithContext(ctx))).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&replies).Error
	if err != nil {
		return nil, 0, err
	}
	return replies, total, nil
}

// AddInteraction inserts unless the (thread, user, type) key exists
func (r *ThreadRepository) AddInteraction(ctx context.Context, in *models.Interaction) (bool, error) {
	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thread_id"}, {Name: "user_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(in)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RemoveInteraction deletes by key and reports whether a row existed
func (r *ThreadRepository) RemoveInteraction(ctx context.Context, threadID, userID string, kind models.InteractionType) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ? AND type = ?", threadID, userID, kind).
		Delete(&models.Interaction{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateReport appends a report
func (r *ThreadRepository) CreateReport(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(report).Error
}

// GetUser loads a user, or nil
func (r *ThreadRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	found, err := first(r.db.WithContext(ctx).Where("id = ?", id), &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// GetThreadForReview loads a thread with its categories, or nil
func (r *ThreadRepository) GetThreadForReview(ctx context.Context, id string) (*models.Thread, error) {
	return r.GetThread(ctx, id)
}

// ApplyReview writes the review result; remove cascades to direct replies
func (r *ThreadRepository) ApplyReview(ctx context.Context, id string, score int, remove bool, reviewedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Thread{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"review_score": score, "reviewed_at": reviewedAt}).Error
		if err != nil {
			return err
		}
		if !remove {
			return nil
		}
		return removeCascade(tx, id, reviewedAt)
	})
}

// CountReports counts every report ever filed against the thread
func (r *ThreadRepository) CountReports(ctx context.Context, threadID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Report{}).Where("thread_id = ?", threadID).Count(&total).Error
	return total, err
}

// ListPendingReReviews returns active threads at or over the report
// threshold that were reported again after their last review
func (r *ThreadRepository) ListPendingReReviews(ctx context.Context, minReports int64, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table("threads").
		Select("threads.id").
		Joins("JOIN reports ON reports.thread_id = threads.id").
		Where("threads.status = ?", models.ThreadStatusActive).
		Group("threads.id, threads.reviewed_at").
		Having("COUNT(reports.id) >= ? AND (threads.reviewed_at IS NULL OR MAX(reports.created_at) > threads.reviewed_at)", minReports).
		Order("MAX(reports.created_at) ASC").
		Limit(limit).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
