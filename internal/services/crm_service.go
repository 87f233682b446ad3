package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/rbac"
	"gorm.io/gorm"
)

var (
	// ErrCompanyNotFound indicates the company was not found
	ErrCompanyNotFound = errors.New("company not found")
	// ErrProjectNotFound indicates the project was not found
	ErrProjectNotFound = errors.New("project not found")
	// ErrContactNotFound indicates the contact was not found
	ErrContactNotFound = errors.New("contact not found")
	// ErrCompanyAlreadyExists indicates a company with this tax ID already exists for the user
	ErrCompanyAlreadyExists = errors.New("company with this tax ID already exists")
	// ErrInvalidLifecycleState indicates an unknown lifecycle state value
	ErrInvalidLifecycleState = errors.New("invalid lifecycle state")
)

// CRMService owns companies, projects and contacts, including the
// auto-creation paths driven by the ingestion pipeline.
type CRMService struct {
	db         *gorm.DB
	logService *LogService
	authorizer rbac.Authorizer
}

// NewCRMService creates a new CRMService instance
func NewCRMService(db *gorm.DB, authorizer rbac.Authorizer) *CRMService {
	if authorizer == nil {
		authorizer = rbac.NewOwnerAuthorizer()
	}
	return &CRMService{
		db:         db,
		logService: NewLogService(db),
		authorizer: authorizer,
	}
}

// ===== Companies =====

// FindCompanyByTaxID returns the user's active company with the given tax
// ID. Archived companies are invisible to the linking step.
func (s *CRMService) FindCompanyByTaxID(userID uint, taxID string) (*models.Company, error) {
	if taxID == "" {
		return nil, ErrCompanyNotFound
	}
	var company models.Company
	err := s.db.Where("user_id = ? AND tax_id = ? AND state = ?", userID, taxID, models.LifecycleActive).
		First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return &company, nil
}

// CreateCompanyInput represents the input for creating a company
type CreateCompanyInput struct {
	Name    string
	TaxID   string
	Phone   string
	Email   string
	Website string
	Address string
}

// CreateCompany creates a company owned by the acting user.
func (s *CRMService) CreateCompany(user *models.User, input CreateCompanyInput) (*models.Company, error) {
	if err := rbac.Check(s.authorizer, user, rbac.PermCompanyCreate, user.ID); err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, errors.New("company name is required")
	}

	if input.TaxID != "" {
		var existing models.Company
		if err := s.db.Where("user_id = ? AND tax_id = ?", user.ID, input.TaxID).First(&existing).Error; err == nil {
			return nil, ErrCompanyAlreadyExists
		}
	}

	company := &models.Company{
		UserID:  user.ID,
		Name:    input.Name,
		TaxID:   input.TaxID,
		Phone:   input.Phone,
		Email:   input.Email,
		Website: input.Website,
		Address: input.Address,
		State:   models.LifecycleActive,
	}
	if err := s.db.Create(company).Error; err != nil {
		return nil, err
	}
	return company, nil
}

// GetCompany returns one company after an ownership check.
func (s *CRMService) GetCompany(user *models.User, id uint) (*models.Company, error) {
	var company models.Company
	if err := s.db.First(&company, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	if err := rbac.Check(s.authorizer, user, rbac.PermCompanyView, company.UserID); err != nil {
		return nil, err
	}
	return &company, nil
}

// ListCompanies returns the user's companies, optionally filtered by state.
func (s *CRMService) ListCompanies(user *models.User, state models.LifecycleState) ([]models.Company, error) {
	db := s.db.Where("user_id = ?", user.ID)
	if state != "" {
		if !state.IsValid() {
			return nil, ErrInvalidLifecycleState
		}
		db = db.Where("state = ?", state)
	}
	var companies []models.Company
	if err := db.Order("name").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

// SetCompanyState transitions a company between active and archived.
func (s *CRMService) SetCompanyState(user *models.User, id uint, state models.LifecycleState) (*models.Company, error) {
	if !state.IsValid() {
		return nil, ErrInvalidLifecycleState
	}
	company, err := s.GetCompany(user, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.Check(s.authorizer, user, rbac.PermCompanyEdit, company.UserID); err != nil {
		return nil, err
	}
	company.State = state
	if err := s.db.Save(company).Error; err != nil {
		return nil, err
	}
	return company, nil
}

// ===== Projects =====

// CreateProjectFromMessage creates a project from an ingested message, or
// returns the existing one. Idempotency key is the source message
// identifier within the user's scope: re-processing the same message never
// yields a second project.
func (s *CRMService) CreateProjectFromMessage(msg *models.Message) (*models.Project, bool, error) {
	if msg.MessageID == "" {
		return nil, false, errors.New("message has no message identifier")
	}

	var existing models.Project
	err := s.db.Where("user_id = ? AND source_message_id = ?", msg.UserID, msg.MessageID).
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	title := strings.TrimSpace(msg.Subject)
	if title == "" {
		title = fmt.Sprintf("Project from message %d", msg.ID)
	}

	project := &models.Project{
		UserID:          msg.UserID,
		Title:           title,
		TaxID:           msg.ParsedTaxID,
		ProjectNumber:   msg.ParsedProjectNumber,
		CompanyID:       msg.CompanyID,
		State:           models.LifecycleActive,
		SourceMessageID: msg.MessageID,
	}
	if err := s.db.Create(project).Error; err != nil {
		return nil, false, err
	}

	s.logService.LogEntityCreated(msg.UserID, EntityDetails{
		EntityType:      "project",
		EntityID:        project.ID,
		SourceMessageID: msg.ID,
		TaxID:           project.TaxID,
	})

	return project, true, nil
}

// GetProject returns one project after an ownership check.
func (s *CRMService) GetProject(user *models.User, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if err := rbac.Check(s.authorizer, user, rbac.PermProjectView, project.UserID); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns the user's projects, optionally filtered by state.
func (s *CRMService) ListProjects(user *models.User, state models.LifecycleState) ([]models.Project, error) {
	db := s.db.Where("user_id = ?", user.ID)
	if state != "" {
		if !state.IsValid() {
			return nil, ErrInvalidLifecycleState
		}
		db = db.Where("state = ?", state)
	}
	var projects []models.Project
	if err := db.Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// SetProjectState transitions a project between active and archived.
func (s *CRMService) SetProjectState(user *models.User, id uint, state models.LifecycleState) (*models.Project, error) {
	if !state.IsValid() {
		return nil, ErrInvalidLifecycleState
	}
	project, err := s.GetProject(user, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.Check(s.authorizer, user, rbac.PermProjectEdit, project.UserID); err != nil {
		return nil, err
	}
	project.State = state
	if err := s.db.Save(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

// ===== Contacts =====

// CreateContactsFromMessage creates contacts from the message's parsed
// contact tuples. Contacts are deduplicated by email, case-insensitively,
// within the user's scope; tuples without an email cannot be deduplicated
// and are skipped. Returns the number of contacts actually created.
func (s *CRMService) CreateContactsFromMessage(msg *models.Message) (int, error) {
	created := 0
	for _, pc := range msg.Contacts() {
		if pc.Email == "" {
			continue
		}

		var existing models.Contact
		err := s.db.Where("user_id = ? AND LOWER(email) = ?", msg.UserID, strings.ToLower(pc.Email)).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}

		contact := &models.Contact{
			UserID:    msg.UserID,
			FirstName: pc.FirstName,
			LastName:  pc.LastName,
			Email:     pc.Email,
			Phone:     pc.Phone,
			CompanyID: msg.CompanyID,
			State:     models.LifecycleActive,
		}
		if err := s.db.Create(contact).Error; err != nil {
			return created, err
		}
		created++

		s.logService.LogEntityCreated(msg.UserID, EntityDetails{
			EntityType:      "contact",
			EntityID:        contact.ID,
			SourceMessageID: msg.ID,
			Email:           contact.Email,
		})
	}
	return created, nil
}

// GetContact returns one contact after an ownership check.
func (s *CRMService) GetContact(user *models.User, id uint) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.First(&contact, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	if err := rbac.Check(s.authorizer, user, rbac.PermContactView, contact.UserID); err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListContacts returns the user's contacts, optionally filtered by state.
func (s *CRMService) ListContacts(user *models.User, state models.LifecycleState) ([]models.Contact, error) {
	db := s.db.Where("user_id = ?", user.ID)
	if state != "" {
		if !state.IsValid() {
			return nil, ErrInvalidLifecycleState
		}
		db = db.Where("state = ?", state)
	}
	var contacts []models.Contact
	if err := db.Order("last_name, first_name").Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

// SetContactState transitions a contact between active and archived.
func (s *CRMService) SetContactState(user *models.User, id uint, state models.LifecycleState) (*models.Contact, error) {
	if !state.IsValid() {
		return nil, ErrInvalidLifecycleState
	}
	contact, err := s.GetContact(user, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.Check(s.authorizer, user, rbac.PermContactEdit, contact.UserID); err != nil {
		return nil, err
	}
	contact.State = state
	if err := s.db.Save(contact).Error; err != nil {
		return nil, err
	}
	return contact, nil
}
