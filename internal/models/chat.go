package models

import (
	"database/sql"
	"time"
)

// MemberRole is the role of a user inside a chat group
type MemberRole string

// Chat member roles
const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleMember MemberRole = "MEMBER"
)

// ChatGroup is a per-category chat room
type ChatGroup struct {
	ID        string         `gorm:"primaryKey;type:uuid;column:id"`
	Name      string         `gorm:"type:varchar(100);not null;column:name"`
	OwnerID   sql.NullString `gorm:"type:uuid;column:owner_id"`
	CreatedAt time.Time      `gorm:"not null;column:created_at"`

	// Relationships
	Owner      *User      `gorm:"foreignKey:OwnerID;references:ID"`
	Categories []Category `gorm:"many2many:chat_group_categories;joinForeignKey:GroupID;joinReferences:CategoryID"`
}

// TableName specifies the table name for ChatGroup
func (ChatGroup) TableName() string {
	return "chat_groups"
}

// ChatGroupMember is a membership row; LeftAt marks a soft leave
type ChatGroupMember struct {
	GroupID  string       `gorm:"primaryKey;type:uuid;column:group_id"`
	UserID   string       `gorm:"primaryKey;type:uuid;column:user_id"`
	Role     MemberRole   `gorm:"type:varchar(16);not null;default:'MEMBER';column:role"`
	JoinedAt time.Time    `gorm:"not null;column:joined_at"`
	LeftAt   sql.NullTime `gorm:"column:left_at"`

	// Relationships
	User *User `gorm:"foreignKey:UserID;references:ID"`
}

// TableName specifies the table name for ChatGroupMember
func (ChatGroupMember) TableName() string {
	return "chat_group_members"
}

// IsActive reports whether the membership has not been left
func (m *ChatGroupMember) IsActive() bool {
	return !m.LeftAt.Valid
}

// ChatMessage is a chat message; IDs come from the chat ordering generator
// so that "id > cursor" is a complete pagination predicate.
type ChatMessage struct {
	ID        string         `gorm:"primaryKey;type:varchar(13);column:id"`
	GroupID   string         `gorm:"type:uuid;not null;index:chat_messages_group_idx;column:group_id"`
	UserID    string         `gorm:"type:uuid;not null;column:user_id"`
	Body      string         `gorm:"type:text;not null;column:body"`
	ReplyToID sql.NullString `gorm:"type:varchar(13);column:reply_to_id"`
	CreatedAt time.Time      `gorm:"not null;column:created_at"`

	// Relationships
	User    *User        `gorm:"foreignKey:UserID;references:ID"`
	ReplyTo *ChatMessage `gorm:"foreignKey:ReplyToID;references:ID"`
}

// TableName specifies the table name for ChatMessage
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// ChatGroupCategory is the group-to-category join row
type ChatGroupCategory struct {
	GroupID    string `gorm:"primaryKey;type:uuid;column:group_id"`
	CategoryID string `gorm:"primaryKey;type:uuid;column:category_id"`
}

// TableName specifies the table name for ChatGroupCategory
func (ChatGroupCategory) TableName() string {
	return "chat_group_categories"
}
