package models

import (
	"time"
)

// Project represents a project owned by a user. Projects auto-created by
// the ingestion pipeline carry the source message identifier, which makes
// auto-creation idempotent per message.
type Project struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index;not null" json:"user_id"`

	Title       string `gorm:"size:500;not null" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Identifiers carried over from the source message.
	TaxID         string `gorm:"size:12;index" json:"tax_id,omitempty"`
	ProjectNumber string `gorm:"size:50;index" json:"project_number,omitempty"`

	CompanyID *uint `gorm:"index" json:"company_id,omitempty"`

	Tags  string         `gorm:"type:text" json:"tags,omitempty"` // JSON array
	State LifecycleState `gorm:"size:20;index;default:'active'" json:"state"`

	// Provenance: the message identifier this project was created from,
	// empty for manually created projects.
	SourceMessageID string `gorm:"size:255;index" json:"source_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Company *Company `gorm:"foreignKey:CompanyID;constraint:OnDelete:SET NULL" json:"company,omitempty"`
}
