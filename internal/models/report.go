package models

import (
	"database/sql"
	"time"
)

// Report is an append-only moderation report against a thread
type Report struct {
	ID         string         `gorm:"primaryKey;type:uuid;column:id"`
	ThreadID   string         `gorm:"type:uuid;not null;index:reports_thread_idx;column:thread_id"`
	ReporterID string         `gorm:"type:uuid;not null;column:reporter_id"`
	ReasonCode string         `gorm:"type:varchar(64);not null;column:reason_code"`
	Message    sql.NullString `gorm:"type:text;column:message"`
	CreatedAt  time.Time      `gorm:"not null;column:created_at"`

	// Relationships
	Thread *Thread `gorm:"foreignKey:ThreadID;references:ID"`
}

// TableName specifies the table name for Report
func (Report) TableName() string {
	return "reports"
}
