package services

import (
	"errors"

	"github.com/relay-crm/core/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrRuleNotFound indicates the processing rule was not found
	ErrRuleNotFound = errors.New("processing rule not found")
	// ErrInvalidRuleData indicates invalid rule data
	ErrInvalidRuleData = errors.New("invalid rule data")
)

// RuleService manages user-defined processing rules.
type RuleService struct {
	db         *gorm.DB
	logService *LogService
}

// NewRuleService creates a new RuleService instance
func NewRuleService(db *gorm.DB) *RuleService {
	return &RuleService{
		db:         db,
		logService: NewLogService(db),
	}
}

// CreateRuleInput represents the input for creating a processing rule
type CreateRuleInput struct {
	UserID            uint
	Name              string
	Description       string
	SenderContains    string
	SubjectContains   string
	BodyContains      string
	AutoCreateProject bool
	AutoCreateContact bool
	MarkImportant     bool
	Priority          int
}

// CreateRule creates a processing rule for a user.
func (s *RuleService) CreateRule(input CreateRuleInput) (*models.ProcessingRule, error) {
	if input.Name == "" {
		return nil, ErrInvalidRuleData
	}
	if input.Priority == 0 {
		input.Priority = 100
	}

	rule := &models.ProcessingRule{
		UserID:            input.UserID,
		Name:              input.Name,
		Description:       input.Description,
		SenderContains:    input.SenderContains,
		SubjectContains:   input.SubjectContains,
		BodyContains:      input.BodyContains,
		AutoCreateProject: input.AutoCreateProject,
		AutoCreateContact: input.AutoCreateContact,
		MarkImportant:     input.MarkImportant,
		Priority:          input.Priority,
		Active:            true,
	}
	if err := s.db.Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// GetRuleByIDAndUserID retrieves one rule scoped to its owner.
func (s *RuleService) GetRuleByIDAndUserID(id, userID uint) (*models.ProcessingRule, error) {
	var rule models.ProcessingRule
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// GetRulesByUserID returns all rules of a user in evaluation order.
func (s *RuleService) GetRulesByUserID(userID uint) ([]models.ProcessingRule, error) {
	var rules []models.ProcessingRule
	if err := s.db.Where("user_id = ?", userID).Order("priority, id").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// GetActiveRules returns the user's active rules ordered by ascending
// priority with ID as tie breaker, the exact order the processing step
// evaluates them in.
func (s *RuleService) GetActiveRules(userID uint) ([]models.ProcessingRule, error) {
	var rules []models.ProcessingRule
	err := s.db.Where("user_id = ? AND active = ?", userID, true).
		Order("priority, id").Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// FirstMatch evaluates the user's active rules against a message and
// returns the first one whose conditions all hold, or nil. Evaluation
// short-circuits: later rules are never consulted after a match.
func (s *RuleService) FirstMatch(userID uint, msg *models.Message) (*models.ProcessingRule, error) {
	rules, err := s.GetActiveRules(userID)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].Matches(msg) {
			return &rules[i], nil
		}
	}
	return nil, nil
}

// UpdateRuleInput represents the input for updating a processing rule.
// Pointer fields distinguish "not provided" from zero values.
type UpdateRuleInput struct {
	Name              *string
	Description       *string
	SenderContains    *string
	SubjectContains   *string
	BodyContains      *string
	AutoCreateProject *bool
	AutoCreateContact *bool
	MarkImportant     *bool
	Priority          *int
	Active            *bool
}

// UpdateRule updates a processing rule.
func (s *RuleService) UpdateRule(id, userID uint, input UpdateRuleInput) (*models.ProcessingRule, error) {
	rule, err := s.GetRuleByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrInvalidRuleData
		}
		rule.Name = *input.Name
	}
	if input.Description != nil {
		rule.Description = *input.Description
	}
	if input.SenderContains != nil {
		rule.SenderContains = *input.SenderContains
	}
	if input.SubjectContains != nil {
		rule.SubjectContains = *input.SubjectContains
	}
	if input.BodyContains != nil {
		rule.BodyContains = *input.BodyContains
	}
	if input.AutoCreateProject != nil {
		rule.AutoCreateProject = *input.AutoCreateProject
	}
	if input.AutoCreateContact != nil {
		rule.AutoCreateContact = *input.AutoCreateContact
	}
	if input.MarkImportant != nil {
		rule.MarkImportant = *input.MarkImportant
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.Active != nil {
		rule.Active = *input.Active
	}

	if err := s.db.Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule deletes a processing rule.
func (s *RuleService) DeleteRule(id, userID uint) error {
	rule, err := s.GetRuleByIDAndUserID(id, userID)
	if err != nil {
		return err
	}
	return s.db.Delete(rule).Error
}
