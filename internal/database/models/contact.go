package models

import (
	"time"
)

// Contact represents a person owned by a user.
type Contact struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index;not null" json:"user_id"`

	FirstName string `gorm:"size:100" json:"first_name,omitempty"`
	LastName  string `gorm:"size:100" json:"last_name,omitempty"`
	Email     string `gorm:"size:255;index" json:"email,omitempty"`
	Phone     string `gorm:"size:20" json:"phone,omitempty"`
	Position  string `gorm:"size:100" json:"position,omitempty"`

	CompanyID *uint `gorm:"index" json:"company_id,omitempty"`

	Tags  string         `gorm:"type:text" json:"tags,omitempty"` // JSON array
	State LifecycleState `gorm:"size:20;index;default:'active'" json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Company *Company `gorm:"foreignKey:CompanyID;constraint:OnDelete:SET NULL" json:"company,omitempty"`
}
