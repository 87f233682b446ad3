package models

import (
	"time"
)

// Attachment represents one attachment reference of a Message. A row is
// written for every reference seen during ingestion, whether or not the
// download succeeded; failures keep the row with Downloaded=false and the
// error captured as text.
type Attachment struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	MessageID uint `gorm:"index;not null" json:"message_id"`

	Filename    string `gorm:"size:255" json:"filename"`
	ContentType string `gorm:"size:100" json:"content_type"`
	Size        uint   `gorm:"default:0" json:"size"`
	StoragePath string `gorm:"size:500" json:"storage_path,omitempty"`

	ContentID string `gorm:"size:255" json:"content_id,omitempty"`
	IsInline  bool   `gorm:"default:false" json:"is_inline"`

	Downloaded    bool   `gorm:"default:false;index" json:"downloaded"`
	DownloadError string `gorm:"type:text" json:"download_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
