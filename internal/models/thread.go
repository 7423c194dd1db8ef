package models

import (
	"database/sql"
	"time"
)

// ThreadStatus is the visibility state of a thread
type ThreadStatus string

// Thread statuses. ACTIVE -> REMOVED is one-way for cascades.
const (
	ThreadStatusActive  ThreadStatus = "ACTIVE"
	ThreadStatusRemoved ThreadStatus = "REMOVED"
)

// Thread represents a top-level thread or a reply
type Thread struct {
	ID             string         `gorm:"primaryKey;type:uuid;column:id"`
	AuthorID       string         `gorm:"type:uuid;not null;index:threads_author_idx;column:author_id"`
	ParentThreadID sql.NullString `gorm:"type:uuid;index:threads_parent_idx;column:parent_thread_id"`
	Title          string         `gorm:"type:varchar(255);not null;default:'';column:title"`
	Body           string         `gorm:"type:text;not null;column:body"`
	Image          sql.NullString `gorm:"type:varchar(1024);column:image"`
	Tags           []string       `gorm:"serializer:json;type:jsonb;not null;default:'[]';column:tags"`
	Status         ThreadStatus   `gorm:"type:varchar(16);not null;default:'ACTIVE';index:threads_status_idx;column:status"`
	ReviewScore    int            `gorm:"not null;default:0;column:review_score"`
	ReviewedAt     sql.NullTime   `gorm:"column:reviewed_at"`
	CreatedAt      time.Time      `gorm:"not null;index:threads_created_idx;column:created_at"`
	UpdatedAt      time.Time      `gorm:"not null;column:updated_at"`

	// Relationships
	Author     *User      `gorm:"foreignKey:AuthorID;references:ID"`
	Categories []Category `gorm:"many2many:thread_categories;joinForeignKey:ThreadID;joinReferences:CategoryID"`
}

// TableName specifies the table name for Thread
func (Thread) TableName() string {
	return "threads"
}

// IsReply reports whether the thread has a parent
func (t *Thread) IsReply() bool {
	return t.ParentThreadID.Valid && t.ParentThreadID.String != ""
}

// IsActive reports whether the thread is visible
func (t *Thread) IsActive() bool {
	return t.Status == ThreadStatusActive
}

// ThreadCategory is the thread-to-category join row
type ThreadCategory struct {
	ThreadID   string `gorm:"primaryKey;type:uuid;column:thread_id"`
	CategoryID string `gorm:"primaryKey;type:uuid;column:category_id"`
}

// TableName specifies the table name for ThreadCategory
func (ThreadCategory) TableName() string {
	return "thread_categories"
}
