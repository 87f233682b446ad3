package models

import (
	"encoding/json"
	"time"
)

// SyncStatus is the final status of one sync attempt.
type SyncStatus string

const (
	// SyncStatusSuccess means messages were processed with no errors.
	SyncStatusSuccess SyncStatus = "success"
	// SyncStatusPartial means the run completed but some messages were
	// skipped or errored, or nothing new was processed.
	SyncStatusPartial SyncStatus = "partial"
	// SyncStatusFailed means the mailbox connection itself failed and the
	// per-message loop never ran.
	SyncStatusFailed SyncStatus = "failed"
)

// SyncRun is one audit-log record of a single ingestion attempt for one
// mail account. Rows are append-only: created at the start of an attempt,
// finalized exactly once, never mutated afterwards.
type SyncRun struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	PublicID  string `gorm:"uniqueIndex;size:36" json:"public_id"`
	AccountID uint   `gorm:"index;not null" json:"account_id"`

	Fetched               int `gorm:"default:0" json:"fetched"`
	Processed             int `gorm:"default:0" json:"processed"`
	Skipped               int `gorm:"default:0" json:"skipped"`
	AttachmentsDownloaded int `gorm:"default:0" json:"attachments_downloaded"`

	StartedAt       time.Time `gorm:"index" json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds int       `gorm:"default:0" json:"duration_seconds"`

	Status SyncStatus `gorm:"size:20;index;default:'success'" json:"status"`
	Errors string     `gorm:"type:text" json:"errors,omitempty"` // JSON array of strings

	CreatedAt time.Time `json:"created_at"`
}

// ErrorList decodes the run's error list.
func (r *SyncRun) ErrorList() []string {
	if r.Errors == "" {
		return nil
	}
	var errs []string
	if err := json.Unmarshal([]byte(r.Errors), &errs); err != nil {
		return nil
	}
	return errs
}

// AppendError appends one error string to the run's error list.
func (r *SyncRun) AppendError(msg string) {
	errs := append(r.ErrorList(), msg)
	data, err := json.Marshal(errs)
	if err != nil {
		return
	}
	r.Errors = string(data)
}
