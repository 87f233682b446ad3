package models

import (
	"strings"
	"time"
)

// ProcessingRule is a user-defined condition/action pair applied to
// incoming messages. Rules are evaluated in ascending Priority order and
// the first matching rule short-circuits evaluation: at most one rule's
// actions ever apply to a message.
type ProcessingRule struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index;not null" json:"user_id"`

	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Conditions: case-insensitive substring tests. An empty condition is
	// not evaluated; a rule with no conditions set matches everything.
	SenderContains  string `gorm:"size:255" json:"sender_contains,omitempty"`
	SubjectContains string `gorm:"size:255" json:"subject_contains,omitempty"`
	BodyContains    string `gorm:"size:255" json:"body_contains,omitempty"`

	// Actions
	AutoCreateProject bool `gorm:"default:false" json:"auto_create_project"`
	AutoCreateContact bool `gorm:"default:false" json:"auto_create_contact"`
	MarkImportant     bool `gorm:"default:false" json:"mark_important"`

	// Lower number = evaluated first.
	Priority int  `gorm:"default:100;index" json:"priority"`
	Active   bool `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches reports whether every set condition holds for the message.
func (r *ProcessingRule) Matches(msg *Message) bool {
	if r.SenderContains != "" &&
		!strings.Contains(strings.ToLower(msg.Sender), strings.ToLower(r.SenderContains)) {
		return false
	}
	if r.SubjectContains != "" &&
		!strings.Contains(strings.ToLower(msg.Subject), strings.ToLower(r.SubjectContains)) {
		return false
	}
	if r.BodyContains != "" {
		body := strings.ToLower(msg.BodyText + msg.BodyHTML)
		if !strings.Contains(body, strings.ToLower(r.BodyContains)) {
			return false
		}
	}
	return true
}
