package models

import (
	"time"
)

// LifecycleState is the explicit lifecycle of a business entity. Multiple
// subsystems read it, so it is a named state rather than a bare boolean.
type LifecycleState string

const (
	LifecycleActive   LifecycleState = "active"
	LifecycleArchived LifecycleState = "archived"
)

// IsValid checks if the lifecycle state is valid.
func (s LifecycleState) IsValid() bool {
	switch s {
	case LifecycleActive, LifecycleArchived:
		return true
	}
	return false
}

// Company represents a company owned by a user, identified within the
// user's scope by its tax ID.
type Company struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex:idx_companies_user_tax_id;index;not null" json:"user_id"`

	Name  string `gorm:"size:255;not null" json:"name"`
	TaxID string `gorm:"uniqueIndex:idx_companies_user_tax_id;size:12" json:"tax_id"`

	Phone   string `gorm:"size:20" json:"phone,omitempty"`
	Email   string `gorm:"size:255" json:"email,omitempty"`
	Website string `gorm:"size:255" json:"website,omitempty"`
	Address string `gorm:"type:text" json:"address,omitempty"`

	Tags  string         `gorm:"type:text" json:"tags,omitempty"` // JSON array
	State LifecycleState `gorm:"size:20;index;default:'active'" json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Projects []Project `gorm:"foreignKey:CompanyID" json:"projects,omitempty"`
}
