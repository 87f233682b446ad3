// Package mailclient abstracts the mailbox protocol behind a small client
// interface so the ingestion pipeline can be driven by IMAP in production
// and by fakes in tests.
package mailclient

import (
	"errors"
	"time"

	"github.com/relay-crm/core/internal/database/models"
)

var (
	// ErrConnectionFailed indicates the mailbox server could not be reached
	ErrConnectionFailed = errors.New("mailbox connection failed")
	// ErrMailboxSelect indicates the inbox could not be opened
	ErrMailboxSelect = errors.New("failed to select mailbox")
)

// AuthError marks an authentication failure. The scheduler treats it as
// non-retryable: backing off does not fix bad credentials.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "mailbox authentication failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is (or wraps) an authentication failure.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// RawAttachment is one attachment part of a fetched message.
type RawAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// RawMessage is a fetched message before persistence. MessageID may be
// empty when the server returns no Message-Id header; the orchestrator
// decides how to handle that.
type RawMessage struct {
	MessageID   string
	UID         uint32
	Subject     string
	Sender      string
	To          []string
	Cc          []string
	ReceivedAt  time.Time
	BodyText    string
	BodyHTML    string
	Size        uint
	Attachments []RawAttachment
}

// Session is an open, authenticated mailbox connection.
type Session interface {
	// Fetch returns messages received at or after since, newest first,
	// capped at limit. A zero since means no lower bound.
	Fetch(since time.Time, limit int) ([]RawMessage, error)
	Close() error
}

// Client opens mailbox sessions for configured accounts.
type Client interface {
	Connect(account *models.MailAccount) (Session, error)
}

// CredentialSource supplies decrypted credentials at connection time.
// AccessToken must return a currently valid token, refreshing if needed.
type CredentialSource interface {
	Password(account *models.MailAccount) (string, error)
	AccessToken(account *models.MailAccount) (string, error)
}
