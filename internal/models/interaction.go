package models

import (
	"time"
)

// InteractionType is the kind of a user interaction with a thread
type InteractionType string

// Interaction types
const (
	InteractionLike   InteractionType = "LIKE"
	InteractionRepost InteractionType = "REPOST"
)

// Interaction is a like or repost, unique per (thread, user, type)
type Interaction struct {
	ID        string          `gorm:"primaryKey;type:uuid;column:id"`
	ThreadID  string          `gorm:"type:uuid;not null;uniqueIndex:interactions_thread_user_type_ux,priority:1;column:thread_id"`
	UserID    string          `gorm:"type:uuid;not null;uniqueIndex:interactions_thread_user_type_ux,priority:2;column:user_id"`
	Type      InteractionType `gorm:"type:varchar(16);not null;uniqueIndex:interactions_thread_user_type_ux,priority:3;column:type"`
	CreatedAt time.Time       `gorm:"not null;index:interactions_created_idx;column:created_at"`

	// Relationships
	Thread *Thread `gorm:"foreignKey:ThreadID;references:ID"`
}

// TableName specifies the table name for Interaction
func (Interaction) TableName() string {
	return "interactions"
}

// InteractionCount is one grouped row of interactions per thread and type
type InteractionCount struct {
	ThreadID string          `gorm:"column:thread_id"`
	Type     InteractionType `gorm:"column:type"`
	Total    int64           `gorm:"column:total"`
}
