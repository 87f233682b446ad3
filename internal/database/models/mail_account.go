package models

import (
	"time"
)

// AuthType represents the mailbox authentication method
type AuthType string

const (
	AuthTypePassword AuthType = "password"
	AuthTypeOAuth2   AuthType = "oauth2"
)

// MailAccount represents a mailbox configured by a user for ingestion
type MailAccount struct {
	ID                uint     `gorm:"primaryKey" json:"id"`
	UserID            uint     `gorm:"index;not null" json:"user_id"`
	Email             string   `gorm:"size:255;not null" json:"email"`
	DisplayName       string   `gorm:"size:100" json:"display_name"`
	Server            string   `gorm:"size:255;not null" json:"server"`
	Port              int      `gorm:"default:993" json:"port"`
	Username          string   `gorm:"size:255;not null" json:"username"`
	PasswordEncrypted string   `gorm:"size:500" json:"-"`
	UseSSL            bool     `gorm:"default:true" json:"use_ssl"`
	TimeoutSeconds    int      `gorm:"default:30" json:"timeout_seconds"`
	AuthType          AuthType `gorm:"size:20;default:'password'" json:"auth_type"`

	// OAuth2 state (XOAUTH2 accounts only)
	OAuthProvider     string    `gorm:"size:50" json:"oauth_provider,omitempty"`
	OAuthAccessToken  string    `gorm:"size:2000" json:"-"`
	OAuthRefreshToken string    `gorm:"size:2000" json:"-"`
	OAuthTokenExpiry  time.Time `json:"-"`

	// Sync state. LastSync is the watermark: it only advances after a run
	// that reached the mailbox, so a failed run never loses messages.
	Active              bool      `gorm:"default:true" json:"active"`
	SyncIntervalMinutes int       `gorm:"default:15" json:"sync_interval_minutes"`
	LastSync            time.Time `json:"last_sync"`
	TotalProcessed      uint      `gorm:"default:0" json:"total_processed"`
	LastError           string    `gorm:"type:text" json:"last_error,omitempty"`
	LastErrorTime       time.Time `json:"last_error_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Messages []Message `gorm:"foreignKey:AccountID" json:"messages,omitempty"`
	SyncRuns []SyncRun `gorm:"foreignKey:AccountID" json:"sync_runs,omitempty"`
}

// Timeout returns the configured network timeout as a duration.
func (a *MailAccount) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// SyncDue reports whether enough time has passed since the last successful
// sync for the scheduler to dispatch another run.
func (a *MailAccount) SyncDue(now time.Time) bool {
	if a.LastSync.IsZero() {
		return true
	}
	interval := time.Duration(a.SyncIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return now.Sub(a.LastSync) >= interval
}
