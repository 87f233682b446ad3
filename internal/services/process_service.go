package services

import (
	"errors"

	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/notify"
	"github.com/relay-crm/core/internal/parser"
	"gorm.io/gorm"
)

// ErrMessageNotFound indicates the message was not found
var ErrMessageNotFound = errors.New("message not found")

// ProcessService runs the per-message pipeline: identifier extraction,
// company linking and rule application. ProcessMessage is idempotent and
// re-entrant; running it twice on the same message changes nothing.
type ProcessService struct {
	db          *gorm.DB
	crmService  *CRMService
	ruleService *RuleService
	logService  *LogService
	notifier    notify.Notifier
}

// NewProcessService creates a new ProcessService instance. A nil notifier
// disables event delivery.
func NewProcessService(db *gorm.DB, crmService *CRMService, ruleService *RuleService, notifier notify.Notifier) *ProcessService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &ProcessService{
		db:          db,
		crmService:  crmService,
		ruleService: ruleService,
		logService:  NewLogService(db),
		notifier:    notifier,
	}
}

// extractionText is the text the identifier extractors see: subject plus
// plain-text body, falling back to HTML when no text part exists.
func extractionText(msg *models.Message) string {
	body := msg.BodyText
	if body == "" {
		body = msg.BodyHTML
	}
	return msg.Subject + "\n" + body
}

// ProcessMessage runs extraction and rule application on one message and
// persists the result. Already-processed messages are left untouched.
// Failures inside the pipeline are recorded on the message, which is still
// marked processed so the sync loop never retries it forever.
func (s *ProcessService) ProcessMessage(msg *models.Message) error {
	if msg.Processed {
		return nil
	}
	return s.runPipeline(msg)
}

// ReprocessMessage clears previous results and runs the pipeline again.
// Entity creation stays idempotent, so reprocessing never duplicates
// projects or contacts.
func (s *ProcessService) ReprocessMessage(id, userID uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	msg.Processed = false
	msg.ProcessingErrors = ""
	if err := s.runPipeline(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *ProcessService) runPipeline(msg *models.Message) error {
	text := extractionText(msg)

	body := msg.BodyText
	if body == "" {
		body = msg.BodyHTML
	}

	msg.ParsedTaxID = parser.ExtractTaxID(text)
	msg.ParsedProjectNumber = parser.ExtractProjectNumber(msg.Subject, body)
	msg.SetContacts(parser.ExtractContacts(text))

	// Company link is derived state: it points at the user's active
	// company with the extracted tax ID, or stays nil.
	if msg.ParsedTaxID != "" {
		company, err := s.crmService.FindCompanyByTaxID(msg.UserID, msg.ParsedTaxID)
		switch {
		case err == nil:
			msg.CompanyID = &company.ID
		case errors.Is(err, ErrCompanyNotFound):
			msg.CompanyID = nil
		default:
			msg.AppendError("company lookup: " + err.Error())
		}
	}

	details := ProcessingDetails{
		MessageID:     msg.ID,
		MailMessageID: msg.MessageID,
		TaxID:         msg.ParsedTaxID,
		ProjectNumber: msg.ParsedProjectNumber,
		ContactCount:  len(msg.Contacts()),
	}
	if msg.CompanyID != nil {
		details.CompanyID = *msg.CompanyID
	}

	rule, err := s.ruleService.FirstMatch(msg.UserID, msg)
	if err != nil {
		msg.AppendError("rule evaluation: " + err.Error())
	} else if rule != nil {
		details.RuleID = rule.ID
		s.logService.LogRuleMatched(msg.UserID, msg.ID, rule.ID, rule.Name)
		s.applyRule(rule, msg)
	}

	// The message is processed even when individual actions failed; the
	// errors stay on the row for inspection.
	msg.Processed = true

	if err := s.db.Save(msg).Error; err != nil {
		return err
	}
	if msg.ProjectID != nil {
		details.ProjectID = *msg.ProjectID
	}

	var pipelineErr error
	if errs := msg.Errors(); len(errs) > 0 {
		pipelineErr = errors.New(errs[0])
	}
	s.logService.LogMessageProcessed(msg.UserID, details, pipelineErr)

	return nil
}

// applyRule executes the matched rule's actions. Action failures are
// recorded on the message and do not abort the remaining actions. Every
// entity that actually comes into existence here is announced through the
// notifier; idempotent re-runs that find existing rows announce nothing.
func (s *ProcessService) applyRule(rule *models.ProcessingRule, msg *models.Message) {
	if rule.MarkImportant {
		msg.IsImportant = true
	}

	if rule.AutoCreateProject {
		project, created, err := s.crmService.CreateProjectFromMessage(msg)
		if err != nil {
			msg.AppendError("auto-create project: " + err.Error())
		} else {
			msg.ProjectID = &project.ID
			if created {
				s.notifier.Notify(notify.Event{
					UserID: msg.UserID,
					Type:   notify.EventEntityCreated,
					Payload: map[string]interface{}{
						"entity_type":       "project",
						"entity_id":         project.ID,
						"source_message_id": msg.ID,
						"rule_id":           rule.ID,
					},
				})
			}
		}
	}

	if rule.AutoCreateContact {
		created, err := s.crmService.CreateContactsFromMessage(msg)
		if err != nil {
			msg.AppendError("auto-create contacts: " + err.Error())
		}
		if created > 0 {
			s.notifier.Notify(notify.Event{
				UserID: msg.UserID,
				Type:   notify.EventEntityCreated,
				Payload: map[string]interface{}{
					"entity_type":       "contact",
					"created":           created,
					"source_message_id": msg.ID,
					"rule_id":           rule.ID,
				},
			})
		}
	}
}

// ProcessUnprocessed runs the pipeline over every unprocessed message of a
// user, oldest first. Returns how many messages were processed.
func (s *ProcessService) ProcessUnprocessed(userID uint) (int, error) {
	var messages []models.Message
	err := s.db.Where("user_id = ? AND processed = ?", userID, false).
		Order("received_at").Find(&messages).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range messages {
		if err := s.ProcessMessage(&messages[i]); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}
