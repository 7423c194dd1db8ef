package db

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steemit/sdgforum/internal/chat"
	"github.com/steemit/sdgforum/internal/models"
)

// ChatRepository provides chat group, membership and message persistence
type ChatRepository struct {
	*Repository
}

// NewChatRepository creates a new chat repository
func NewChatRepository(repo *Repository) *ChatRepository {
	return &ChatRepository{Repository: repo}
}

func withGroupRelations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Owner").
		Preload("Categories", func(db *gorm.DB) *gorm.DB {
			return db.Order("categories.sdg_number ASC")
		})
}

// CreateGroup inserts the group, its category links and the owner membership
func (r *ChatRepository) CreateGroup(ctx context.Context, group *models.ChatGroup, owner *models.ChatGroupMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			return err
		}

		if len(group.Categories) > 0 {
			links := make([]models.ChatGroupCategory, 0, len(group.Categories))
			for _, c := range group.Categories {
				links = append(links, models.ChatGroupCategory{GroupID: group.ID, CategoryID: c.ID})
			}
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}

		if owner == nil {
			return nil
		}
		return tx.Omit(clause.Associations).Create(owner).Error
	})
}

// FindGroup loads a group with owner and categories, or nil
func (r *ChatRepository) FindGroup(ctx context.Context, id string) (*models.ChatGroup, error) {
	var group models.ChatGroup
	found, err := first(withGroupRelations(r.db.WithContext(ctx)).Where("id = ?", id), &group)
	if err != nil || !found {
		return nil, err
	}
	return &group, nil
}

// FindGroupByName loads a group by exact name, or nil
func (r *ChatRepository) FindGroupByName(ctx context.Context, name string) (*models.ChatGroup, error) {
	var group models.ChatGroup
	found, err := first(withGroupRelations(r.db.WithContext(ctx)).Where("name = ?", name), &group)
	if err != nil || !found {
		return nil, err
	}
	return &group, nil
}

type groupTotal struct {
	GroupID string `gorm:"column:group_id"`
	Total   int64  `gorm:"column:total"`
}

// ListGroups returns a page of groups, newest first, with their counts
func (r *ChatRepository) ListGroups(ctx context.Context, offset, limit int) ([]chat.GroupSummary, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ChatGroup{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var groups []models.ChatGroup
	err := withGroupRelations(r.db.WithContext(ctx)).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, 0, err
	}
	if len(groups) == 0 {
		return []chat.GroupSummary{}, total, nil
	}

	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}

	var members, messages []groupTotal
	err = r.db.WithContext(ctx).Model(&models.ChatGroupMember{}).
		Select("group_id, COUNT(*) AS total").
		Where("group_id IN ? AND left_at IS NULL", ids).
		Group("group_id").
		Scan(&members).Error
	if err != nil {
		return nil, 0, err
	}
	err = r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Select("group_id, COUNT(*) AS total").
		Where("group_id IN ?", ids).
		Group("group_id").
		Scan(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	memberCounts := totalsByGroup(members)
	messageCounts := totalsByGroup(messages)

	summaries := make([]chat.GroupSummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, chat.GroupSummary{
			Group:        g,
			MemberCount:  memberCounts[g.ID],
			MessageCount: messageCounts[g.ID],
		})
	}
	return summaries, total, nil
}

func totalsByGroup(rows []groupTotal) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.GroupID] = row.Total
	}
	return out
}

// GroupCounts returns the active member and message counts of a group
func (r *ChatRepository) GroupCounts(ctx context.Context, groupID string) (int64, int64, error) {
	var members, messages int64
	err := r.db.WithContext(ctx).Model(&models.ChatGroupMember{}).
		Where("group_id = ? AND left_at IS NULL", groupID).
		Count(&members).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("group_id = ?", groupID).
		Count(&messages).Error
	if err != nil {
		return 0, 0, err
	}
	return members, messages, nil
}

// ListMembers returns the active members of a group in join order
func (r *ChatRepository) ListMembers(ctx context.Context, groupID string) ([]models.ChatGroupMember, error) {
	var members []models.ChatGroupMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ? AND left_at IS NULL", groupID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// GetMembership loads a membership row whether or not it was left, or nil
func (r *ChatRepository) GetMembership(ctx context.Context, groupID, userID string) (*models.ChatGroupMember, error) {
	var member models.ChatGroupMember
	found, err := first(r.db.WithContext(ctx).Preload("User").Where("group_id = ? AND user_id = ?", groupID, userID), &member)
	if err != nil || !found {
		return nil, err
	}
	return &member, nil
}

// UpsertMembership creates the membership or clears left_at on an existing
// one. An existing role is kept so an owner who rejoins stays owner.
func (r *ChatRepository) UpsertMembership(ctx context.Context, member *models.ChatGroupMember) (*models.ChatGroupMember, error) {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"left_at": nil}),
		}).
		Create(member).Error
	if err != nil {
		return nil, err
	}
	return r.GetMembership(ctx, member.GroupID, member.UserID)
}

// MarkLeft soft-deletes a membership
func (r *ChatRepository) MarkLeft(ctx context.Context, groupID, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ChatGroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("left_at", at).Error
}

// CreateMessage inserts a message
func (r *ChatRepository) CreateMessage(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error
}

func withMessageRelations(query *gorm.DB) *gorm.DB {
	return query.Preload("User").Preload("ReplyTo").Preload("ReplyTo.User")
}

// GetMessage loads a message with its author and reply target, or nil
func (r *ChatRepository) GetMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	var message models.ChatMessage
	found, err := first(withMessageRelations(r.db.WithContext(ctx)).Where("id = ?", id), &message)
	if err != nil || !found {
		return nil, err
	}
	return &message, nil
}

// ListMessages returns up to limit messages of a group with ids after the cursor
func (r *ChatRepository) ListMessages(ctx context.Context, groupID, after string, limit int) ([]models.ChatMessage, error) {
	query := withMessageRelations(r.db.WithContext(ctx)).Where("group_id = ?", groupID)
	if after != "" {
		query = query.Where("id > ?", after)
	}

	var messages []models.ChatMessage
	if err := query.Order("id ASC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
