package models

import (
	"time"
)

// UserRole is the platform-wide role of a user
type UserRole string

// User roles
const (
	RoleUser      UserRole = "USER"
	RoleModerator UserRole = "MODERATOR"
	RoleAdmin     UserRole = "ADMIN"
)

// CanModerate reports whether the role may change other users' thread status
func (r UserRole) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User represents a platform account. Credentials live with the auth service.
type User struct {
	ID        string    `gorm:"primaryKey;type:uuid;column:id"`
	Username  string    `gorm:"type:varchar(32);not null;uniqueIndex:users_username_ux;column:username"`
	Name      string    `gorm:"type:varchar(100);not null;default:'';column:name"`
	Role      UserRole  `gorm:"type:varchar(16);not null;default:'USER';column:role"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// UserRef is the public projection of a user
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// NewUserRef maps a user; nil stays nil
func NewUserRef(u *User) *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Username: u.Username, Name: u.Name}
}
