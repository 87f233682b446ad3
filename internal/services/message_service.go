package services

import (
	"errors"

	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/storage"
	"gorm.io/gorm"
)

// ErrAttachmentNotFound indicates the attachment was not found
var ErrAttachmentNotFound = errors.New("attachment not found")

// MessageService answers queries over ingested messages and their
// attachments. Writing is the sync pipeline's job.
type MessageService struct {
	db    *gorm.DB
	store *storage.Store
}

// NewMessageService creates a new MessageService instance
func NewMessageService(db *gorm.DB, store *storage.Store) *MessageService {
	return &MessageService{db: db, store: store}
}

// MessageListOptions filters a message listing.
type MessageListOptions struct {
	AccountID   uint
	CompanyID   uint
	ProjectID   uint
	Processed   *bool
	IsImportant *bool
	Search      string // matched against subject and sender
	Page        int
	Limit       int
}

// MessageListResult is one page of messages plus the unfiltered total.
type MessageListResult struct {
	Total    int64
	Messages []models.Message
}

// ListMessages returns the user's messages, newest first.
func (s *MessageService) ListMessages(userID uint, opts MessageListOptions) (*MessageListResult, error) {
	db := s.db.Model(&models.Message{}).Where("user_id = ?", userID)

	if opts.AccountID > 0 {
		db = db.Where("account_id = ?", opts.AccountID)
	}
	if opts.CompanyID > 0 {
		db = db.Where("company_id = ?", opts.CompanyID)
	}
	if opts.ProjectID > 0 {
		db = db.Where("project_id = ?", opts.ProjectID)
	}
	if opts.Processed != nil {
		db = db.Where("processed = ?", *opts.Processed)
	}
	if opts.IsImportant != nil {
		db = db.Where("is_important = ?", *opts.IsImportant)
	}
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		db = db.Where("subject LIKE ? OR sender LIKE ?", pattern, pattern)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	offset := (opts.Page - 1) * opts.Limit

	var messages []models.Message
	if err := db.Order("received_at DESC").Offset(offset).Limit(opts.Limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	return &MessageListResult{Total: total, Messages: messages}, nil
}

// GetMessageByIDAndUserID retrieves one message scoped to its owner.
func (s *MessageService) GetMessageByIDAndUserID(id, userID uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// MarkRead marks a message as read.
func (s *MessageService) MarkRead(id, userID uint) error {
	result := s.db.Model(&models.Message{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ListAttachments returns the attachment rows of one message.
func (s *MessageService) ListAttachments(messageID, userID uint) ([]models.Attachment, error) {
	if _, err := s.GetMessageByIDAndUserID(messageID, userID); err != nil {
		return nil, err
	}
	var attachments []models.Attachment
	if err := s.db.Where("message_id = ?", messageID).Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}

// GetAttachmentContent reads one downloaded attachment payload from disk.
func (s *MessageService) GetAttachmentContent(attachmentID, userID uint) (*models.Attachment, []byte, error) {
	var att models.Attachment
	if err := s.db.First(&att, attachmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}

	// Ownership travels through the message row.
	if _, err := s.GetMessageByIDAndUserID(att.MessageID, userID); err != nil {
		return nil, nil, err
	}

	if !att.Downloaded {
		return &att, nil, ErrAttachmentNotFound
	}

	content, err := s.store.ReadAttachment(userID, att.MessageID, att.Filename)
	if err != nil {
		return &att, nil, err
	}
	return &att, content, nil
}
