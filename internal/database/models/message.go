package models

import (
	"encoding/json"
	"time"
)

// ParsedContact is one contact tuple extracted from a message body.
// All fields are optional; an entry has at least an email or a phone.
type ParsedContact struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Message represents an ingested mail message. The natural key is
// (user_id, message_id); the orchestrator never creates a second row for a
// message identifier it has already seen for the same user.
type Message struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	UserID    uint `gorm:"uniqueIndex:idx_messages_user_message_id;index;not null" json:"user_id"`
	AccountID uint `gorm:"index;not null" json:"account_id"`

	MessageID string `gorm:"uniqueIndex:idx_messages_user_message_id;size:255;not null" json:"message_id"`
	UID       string `gorm:"size:50" json:"uid,omitempty"`

	Subject      string    `gorm:"size:500" json:"subject"`
	Sender       string    `gorm:"size:255;index" json:"sender"`
	RecipientsTo string    `gorm:"type:text" json:"recipients_to"` // JSON array
	RecipientsCc string    `gorm:"type:text" json:"recipients_cc"` // JSON array
	BodyText     string    `gorm:"type:text" json:"body_text"`
	BodyHTML     string    `gorm:"type:text" json:"body_html"`
	ReceivedAt   time.Time `gorm:"index" json:"received_at"`
	Size         uint      `gorm:"default:0" json:"size"`

	IsRead         bool `gorm:"default:false" json:"is_read"`
	IsImportant    bool `gorm:"default:false" json:"is_important"`
	HasAttachments bool `gorm:"default:false" json:"has_attachments"`

	// Derived fields, filled by the processing step. Never authoritative.
	ParsedTaxID         string `gorm:"size:12;index" json:"parsed_tax_id,omitempty"`
	ParsedProjectNumber string `gorm:"size:50;index" json:"parsed_project_number,omitempty"`
	ParsedContacts      string `gorm:"type:text" json:"parsed_contacts,omitempty"` // JSON array of ParsedContact

	// Weak links: nulled when the target is deleted, never cascaded.
	CompanyID *uint `gorm:"index" json:"company_id,omitempty"`
	ProjectID *uint `gorm:"index" json:"project_id,omitempty"`

	Processed        bool   `gorm:"default:false;index" json:"processed"`
	ProcessingErrors string `gorm:"type:text" json:"processing_errors,omitempty"` // JSON array of strings

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
	Company     *Company     `gorm:"foreignKey:CompanyID;constraint:OnDelete:SET NULL" json:"company,omitempty"`
	Project     *Project     `gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL" json:"project,omitempty"`
}

// Contacts decodes the parsed contact list. A missing or malformed value
// decodes to an empty list, never an error.
func (m *Message) Contacts() []ParsedContact {
	if m.ParsedContacts == "" {
		return nil
	}
	var contacts []ParsedContact
	if err := json.Unmarshal([]byte(m.ParsedContacts), &contacts); err != nil {
		return nil
	}
	return contacts
}

// SetContacts encodes the parsed contact list.
func (m *Message) SetContacts(contacts []ParsedContact) {
	if len(contacts) == 0 {
		m.ParsedContacts = ""
		return
	}
	data, err := json.Marshal(contacts)
	if err != nil {
		return
	}
	m.ParsedContacts = string(data)
}

// Errors decodes the processing error list.
func (m *Message) Errors() []string {
	if m.ProcessingErrors == "" {
		return nil
	}
	var errs []string
	if err := json.Unmarshal([]byte(m.ProcessingErrors), &errs); err != nil {
		return nil
	}
	return errs
}

// AppendError appends one error string to the processing error list.
func (m *Message) AppendError(msg string) {
	errs := append(m.Errors(), msg)
	data, err := json.Marshal(errs)
	if err != nil {
		return
	}
	m.ProcessingErrors = string(data)
}
