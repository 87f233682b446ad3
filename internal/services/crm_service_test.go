package services

import (
	"errors"
	"testing"

	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/rbac"
)

func TestFindCompanyByTaxID_ActiveOnly(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	crmService := NewCRMService(db, nil)

	active := &models.Company{UserID: user.ID, Name: "Active Co", TaxID: "7707083893", State: models.LifecycleActive}
	archived := &models.Company{UserID: user.ID, Name: "Gone Co", TaxID: "500100732259", State: models.LifecycleArchived}
	db.Create(active)
	db.Create(archived)

	found, err := crmService.FindCompanyByTaxID(user.ID, "7707083893")
	if err != nil {
		t.Fatalf("FindCompanyByTaxID: %v", err)
	}
	if found.ID != active.ID {
		t.Errorf("found company %d, want %d", found.ID, active.ID)
	}

	if _, err := crmService.FindCompanyByTaxID(user.ID, "500100732259"); !errors.Is(err, ErrCompanyNotFound) {
		t.Errorf("archived company should be invisible, got %v", err)
	}
	if _, err := crmService.FindCompanyByTaxID(user.ID, ""); !errors.Is(err, ErrCompanyNotFound) {
		t.Errorf("empty tax ID should not match, got %v", err)
	}
}

func TestCreateCompany_DuplicateTaxIDRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	crmService := NewCRMService(db, nil)

	if _, err := crmService.CreateCompany(user, CreateCompanyInput{Name: "One", TaxID: "7707083893"}); err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	if _, err := crmService.CreateCompany(user, CreateCompanyInput{Name: "Two", TaxID: "7707083893"}); !errors.Is(err, ErrCompanyAlreadyExists) {
		t.Errorf("expected ErrCompanyAlreadyExists, got %v", err)
	}

	// The same tax ID is fine for a different user.
	bob := createTestUser(t, db, "bob")
	if _, err := crmService.CreateCompany(bob, CreateCompanyInput{Name: "Bobs", TaxID: "7707083893"}); err != nil {
		t.Errorf("cross-user tax ID rejected: %v", err)
	}
}

func TestOwnershipChecks(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	admin := &models.User{Username: "root", PasswordHash: "hash", Role: "admin"}
	db.Create(admin)

	crmService := NewCRMService(db, nil)

	company, err := crmService.CreateCompany(alice, CreateCompanyInput{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}

	if _, err := crmService.GetCompany(bob, company.ID); !errors.Is(err, rbac.ErrPermissionDenied) {
		t.Errorf("bob reading alice's company: got %v, want permission denied", err)
	}
	if _, err := crmService.GetCompany(alice, company.ID); err != nil {
		t.Errorf("owner denied: %v", err)
	}
	if _, err := crmService.GetCompany(admin, company.ID); err != nil {
		t.Errorf("admin denied: %v", err)
	}
}

func TestSetCompanyState(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	crmService := NewCRMService(db, nil)

	company, err := crmService.CreateCompany(user, CreateCompanyInput{Name: "Acme", TaxID: "7707083893"})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}

	archived, err := crmService.SetCompanyState(user, company.ID, models.LifecycleArchived)
	if err != nil {
		t.Fatalf("SetCompanyState: %v", err)
	}
	if archived.State != models.LifecycleArchived {
		t.Errorf("state = %s", archived.State)
	}

	// Archiving hides the company from the linking lookup.
	if _, err := crmService.FindCompanyByTaxID(user.ID, "7707083893"); !errors.Is(err, ErrCompanyNotFound) {
		t.Errorf("archived company still found: %v", err)
	}

	if _, err := crmService.SetCompanyState(user, company.ID, "deleted"); !errors.Is(err, ErrInvalidLifecycleState) {
		t.Errorf("unknown state accepted: %v", err)
	}
}

func TestCreateProjectFromMessage_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	crmService := NewCRMService(db, nil)

	msg := &models.Message{
		UserID:      user.ID,
		AccountID:   1,
		MessageID:   "<m1@test>",
		Subject:     "Bridge tender",
		ParsedTaxID: "7707083893",
	}
	db.Create(msg)

	project, created, err := crmService.CreateProjectFromMessage(msg)
	if err != nil {
		t.Fatalf("CreateProjectFromMessage: %v", err)
	}
	if !created {
		t.Error("first call did not create")
	}
	if project.Title != "Bridge tender" || project.TaxID != "7707083893" {
		t.Errorf("project fields: %+v", project)
	}

	again, created, err := crmService.CreateProjectFromMessage(msg)
	if err != nil {
		t.Fatalf("second CreateProjectFromMessage: %v", err)
	}
	if created || again.ID != project.ID {
		t.Errorf("second call created a new project: %+v", again)
	}
}

func TestCreateContactsFromMessage_SkipsEmaillessTuples(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	crmService := NewCRMService(db, nil)

	msg := &models.Message{UserID: user.ID, AccountID: 1, MessageID: "<m1@test>"}
	msg.SetContacts([]models.ParsedContact{
		{FirstName: "John", LastName: "Smith", Email: "john@example.com"},
		{Phone: "+74951234567"}, // no email, no dedup key
	})
	db.Create(msg)

	created, err := crmService.CreateContactsFromMessage(msg)
	if err != nil {
		t.Fatalf("CreateContactsFromMessage: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
}
