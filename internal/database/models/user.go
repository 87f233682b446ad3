package models

import (
	"time"
)

// User represents a user in the system
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Nickname     string `gorm:"size:100" json:"nickname"`
	Role         string `gorm:"size:20;default:'user'" json:"role"` // user, admin

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	MailAccounts []MailAccount    `gorm:"foreignKey:UserID" json:"mail_accounts,omitempty"`
	Rules        []ProcessingRule `gorm:"foreignKey:UserID" json:"rules,omitempty"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
