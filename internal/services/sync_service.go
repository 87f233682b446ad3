package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/mailclient"
	"github.com/relay-crm/core/internal/notify"
	"github.com/relay-crm/core/internal/storage"
	"gorm.io/gorm"
)

const (
	// defaultLookbackDays bounds the first sync of an account: without a
	// watermark only the last 30 days are fetched.
	defaultLookbackDays = 30
	// maxMessagesPerRun caps one run; older messages wait for the next run.
	maxMessagesPerRun = 100
)

// ErrAccountInactive indicates a sync was requested for a disabled account
var ErrAccountInactive = errors.New("mail account is inactive")

// SyncService orchestrates one ingestion run: fetch, dedup, persist,
// process, finalize the audit record, advance the watermark.
type SyncService struct {
	db             *gorm.DB
	client         mailclient.Client
	accountService *AccountService
	processService *ProcessService
	store          *storage.Store
	notifier       notify.Notifier
	logService     *LogService
}

// NewSyncService creates a new SyncService instance
func NewSyncService(
	db *gorm.DB,
	client mailclient.Client,
	accountService *AccountService,
	processService *ProcessService,
	store *storage.Store,
	notifier notify.Notifier,
) *SyncService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &SyncService{
		db:             db,
		client:         client,
		accountService: accountService,
		processService: processService,
		store:          store,
		notifier:       notifier,
		logService:     NewLogService(db),
	}
}

// SyncAccount runs one full ingestion attempt for the account and returns
// its audit record. The record exists even when the run fails; only the
// connection error itself is also returned as an error.
func (s *SyncService) SyncAccount(userID, accountID uint) (*models.SyncRun, error) {
	account, err := s.accountService.GetAccountByIDAndUserID(accountID, userID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, ErrAccountInactive
	}

	run := &models.SyncRun{
		PublicID:  uuid.NewString(),
		AccountID: account.ID,
		StartedAt: time.Now(),
		Status:    models.SyncStatusSuccess,
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, err
	}
	s.logService.LogSyncStarted(userID, account.ID, run.PublicID)

	since := account.LastSync
	if since.IsZero() {
		since = run.StartedAt.AddDate(0, 0, -defaultLookbackDays)
	}

	session, err := s.client.Connect(account)
	if err != nil {
		run.AppendError(err.Error())
		s.finalizeRun(run, models.SyncStatusFailed)
		s.accountService.RecordSyncFailure(account.ID, err)
		s.logService.LogConnectionFailure(userID, account.ID, err)
		s.logService.LogSyncCompleted(userID, run)
		return run, err
	}
	defer session.Close()

	rawMessages, fetchErr := session.Fetch(since, maxMessagesPerRun)
	if fetchErr != nil {
		run.AppendError(fetchErr.Error())
		if len(rawMessages) == 0 {
			s.finalizeRun(run, models.SyncStatusFailed)
			s.accountService.RecordSyncFailure(account.ID, fetchErr)
			s.logService.LogSyncCompleted(userID, run)
			return run, fetchErr
		}
		// Partial fetch: keep what arrived, record the error.
	}

	run.Fetched = len(rawMessages)

	for i := range rawMessages {
		s.ingestMessage(account, run, &rawMessages[i])
	}

	status := models.SyncStatusPartial
	if len(run.ErrorList()) == 0 && run.Processed > 0 {
		status = models.SyncStatusSuccess
	}
	s.finalizeRun(run, status)

	// The mailbox was reached, so the watermark advances even when single
	// messages failed; the run record keeps the evidence.
	s.accountService.RecordSyncSuccess(account.ID, run.StartedAt, run.Processed)

	s.logService.LogSyncCompleted(userID, run)
	s.notifier.Notify(notify.Event{
		UserID: userID,
		Type:   notify.EventSyncCompleted,
		Payload: map[string]interface{}{
			"account_id": account.ID,
			"sync_run":   run.PublicID,
			"status":     string(run.Status),
			"processed":  run.Processed,
			"skipped":    run.Skipped,
		},
	})

	return run, nil
}

// ingestMessage handles one fetched message: dedup, persist, attachments,
// processing. Failures are recorded on the run and never abort the loop.
func (s *SyncService) ingestMessage(account *models.MailAccount, run *models.SyncRun, raw *mailclient.RawMessage) {
	// Without a message identifier there is no dedup key; storing the
	// message could duplicate it on every later run.
	if raw.MessageID == "" {
		run.AppendError(fmt.Sprintf("message uid=%d has no message identifier", raw.UID))
		return
	}

	var existing models.Message
	err := s.db.Where("user_id = ? AND message_id = ?", account.UserID, raw.MessageID).
		First(&existing).Error
	if err == nil {
		run.Skipped++
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		run.AppendError(fmt.Sprintf("dedup lookup %s: %v", raw.MessageID, err))
		return
	}

	msg := models.Message{
		UserID:         account.UserID,
		AccountID:      account.ID,
		MessageID:      raw.MessageID,
		UID:            fmt.Sprintf("%d", raw.UID),
		Subject:        raw.Subject,
		Sender:         raw.Sender,
		RecipientsTo:   encodeStringList(raw.To),
		RecipientsCc:   encodeStringList(raw.Cc),
		BodyText:       raw.BodyText,
		BodyHTML:       raw.BodyHTML,
		ReceivedAt:     raw.ReceivedAt,
		Size:           raw.Size,
		HasAttachments: len(raw.Attachments) > 0,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		run.AppendError(fmt.Sprintf("persist %s: %v", raw.MessageID, err))
		return
	}

	s.saveAttachments(account.UserID, run, &msg, raw.Attachments)

	s.logService.LogMessageIngested(account.UserID, msg.ID, msg.MessageID, msg.Subject)
	s.notifier.Notify(notify.Event{
		UserID: account.UserID,
		Type:   notify.EventMessageReceived,
		Payload: map[string]interface{}{
			"message_id": msg.ID,
			"subject":    msg.Subject,
			"sender":     msg.Sender,
		},
	})

	if err := s.processService.ProcessMessage(&msg); err != nil {
		run.AppendError(fmt.Sprintf("process %s: %v", raw.MessageID, err))
	}

	run.Processed++
}

// saveAttachments writes one Attachment row per reference. The row exists
// whether or not the payload download worked; a failed download keeps the
// row with the error captured.
func (s *SyncService) saveAttachments(userID uint, run *models.SyncRun, msg *models.Message, attachments []mailclient.RawAttachment) {
	for _, ra := range attachments {
		att := models.Attachment{
			MessageID:   msg.ID,
			Filename:    ra.Filename,
			ContentType: ra.ContentType,
			Size:        uint(len(ra.Content)),
		}

		path, err := s.store.SaveAttachment(userID, msg.ID, ra.Filename, ra.Content)
		if err != nil {
			att.DownloadError = err.Error()
			run.AppendError(fmt.Sprintf("attachment %s: %v", ra.Filename, err))
		} else {
			att.Downloaded = true
			att.StoragePath = path
			run.AttachmentsDownloaded++
		}

		if err := s.db.Create(&att).Error; err != nil {
			run.AppendError(fmt.Sprintf("attachment row %s: %v", ra.Filename, err))
		}
	}
}

// finalizeRun stamps the run exactly once with its final status and timing.
func (s *SyncService) finalizeRun(run *models.SyncRun, status models.SyncStatus) {
	run.Status = status
	run.CompletedAt = time.Now()
	run.DurationSeconds = int(run.CompletedAt.Sub(run.StartedAt).Seconds())
	s.db.Save(run)
}

// GetSyncRuns returns the most recent runs of one account, newest first.
func (s *SyncService) GetSyncRuns(userID, accountID uint, limit int) ([]models.SyncRun, error) {
	if _, err := s.accountService.GetAccountByIDAndUserID(accountID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	var runs []models.SyncRun
	err := s.db.Where("account_id = ?", accountID).
		Order("started_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// VerifyConnection checks that the account's server and credentials work
// without fetching anything.
func (s *SyncService) VerifyConnection(userID, accountID uint) error {
	account, err := s.accountService.GetAccountByIDAndUserID(accountID, userID)
	if err != nil {
		return err
	}
	session, err := s.client.Connect(account)
	if err != nil {
		return err
	}
	return session.Close()
}

func encodeStringList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}
