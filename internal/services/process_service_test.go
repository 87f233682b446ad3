package services

import (
	"testing"

	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/notify"
	"gorm.io/gorm"
)

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	events []notify.Event
}

func (n *recordingNotifier) Notify(event notify.Event) {
	n.events = append(n.events, event)
}

func (n *recordingNotifier) ofType(eventType string) []notify.Event {
	var out []notify.Event
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newProcessStack(db *gorm.DB) (*ProcessService, *CRMService, *RuleService) {
	crmService := NewCRMService(db, nil)
	ruleService := NewRuleService(db)
	return NewProcessService(db, crmService, ruleService, nil), crmService, ruleService
}

func createUnprocessedMessage(t *testing.T, db *gorm.DB, userID uint, messageID, subject, body string) *models.Message {
	msg := &models.Message{
		UserID:    userID,
		AccountID: 1,
		MessageID: messageID,
		Subject:   subject,
		Sender:    "partner@corp.test",
		BodyText:  body,
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}
	return msg
}

func TestProcessMessage_LinksActiveCompanyByTaxID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	processService, _, _ := newProcessStack(db)

	company := &models.Company{UserID: user.ID, Name: "Acme", TaxID: "7707083893", State: models.LifecycleActive}
	if err := db.Create(company).Error; err != nil {
		t.Fatal(err)
	}

	msg := createUnprocessedMessage(t, db, user.ID, "<m1@test>", "Order",
		"Please process order for company with Tax ID: 7707083893")
	if err := processService.ProcessMessage(msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if msg.ParsedTaxID != "7707083893" {
		t.Errorf("parsed tax ID = %q", msg.ParsedTaxID)
	}
	if msg.CompanyID == nil || *msg.CompanyID != company.ID {
		t.Errorf("company not linked: %v", msg.CompanyID)
	}
	if !msg.Processed {
		t.Error("message not marked processed")
	}
}

func TestProcessMessage_ArchivedCompanyNotLinked(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	processService, _, _ := newProcessStack(db)

	company := &models.Company{UserID: user.ID, Name: "Acme", TaxID: "7707083893", State: models.LifecycleArchived}
	if err := db.Create(company).Error; err != nil {
		t.Fatal(err)
	}

	msg := createUnprocessedMessage(t, db, user.ID, "<m1@test>", "Order", "INN: 7707083893")
	if err := processService.ProcessMessage(msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if msg.CompanyID != nil {
		t.Errorf("archived company was linked: %v", *msg.CompanyID)
	}
	if msg.ParsedTaxID != "7707083893" {
		t.Errorf("tax ID still extracted, got %q", msg.ParsedTaxID)
	}
}

func TestProcessMessage_OtherUsersCompanyNotLinked(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	processService, _, _ := newProcessStack(db)

	company := &models.Company{UserID: bob.ID, Name: "Bobs", TaxID: "7707083893", State: models.LifecycleActive}
	if err := db.Create(company).Error; err != nil {
		t.Fatal(err)
	}

	msg := createUnprocessedMessage(t, db, alice.ID, "<m1@test>", "Order", "Tax ID: 7707083893")
	if err := processService.ProcessMessage(msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if msg.CompanyID != nil {
		t.Error("company of another user was linked")
	}
}

func TestProcessMessage_FirstMatchingRuleWins(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	processService, _, ruleService := newProcessStack(db)

	// Both rules match; only the lower-priority-number rule may act.
	if _, err := ruleService.CreateRule(CreateRuleInput{
		UserID: user.ID, Name: "flag", SubjectContains: "order",
		MarkImportant: true, Priority: 1,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := ruleService.CreateRule(CreateRuleInput{
		UserID: user.ID, Name: "project", SubjectContains: "order",
		AutoCreateProject: true, Priority: 2,
	}); err != nil {
		t.Fatal(err)
	}

	msg := createUnprocessedMessage(t, db, user.ID, "<m1@test>", "New order", "body")
	if err := processService.ProcessMessage(msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if !msg.IsImportant {
		t.Error("first rule's action not applied")
	}
	if msg.ProjectID != nil {
		t.Error("second rule's action applied despite short-circuit")
	}
	var projects int64
	db.Model(&models.Project{}).Count(&projects)
	if projects != 0 {
		t.Errorf("projects = %d, want 0", projects)
	}
}

func TestProcessMessage_EmptyConditionsMatchEverything(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	processService, _, ruleService := newProcessStack(db)

	if _, err := ruleService.CreateRule(CreateRuleInput{
		UserID: user.ID, Name: "catch-all", MarkImportant: true, Priority: 50,
	}); err != nil {
		t.Fatal(err)
	}

	msg := createUnprocessedMessage(t, db, user.ID, "<m1@test>", "anything", "at all")
	if err := processService.ProcessMessage(msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !msg.IsImportant {
		t.Error("catch-all rule did not match")
	}
}

func TestProcessMessage_AutoCreateProjectIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	processService, _, ruleService := newProcessStack(db)

	if _, err := ruleService.CreateRule(CreateRuleInput{
		UserID: user.ID, Name: "auto-project", AutoCreateProject: true, Priority: 1,
	}); err != nil {
		t.Fatal(err)
	}

	msg := createUnprocessedMessage(t, db, user.ID, "<m1@test>", "Quote request", "body")
	if err := processService.ProcessMessage(msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if msg.ProjectID == nil {
		t.Fatal("project not created")
	}
	firstProjectID := *msg.ProjectID

	// Reprocessing must not create a second project.
	reprocessed, err := processService.ReprocessMessage(msg.ID, user.ID)
	if err != nil {
		t.Fatalf("ReprocessMessage: %v", err)
	}
	if reprocessed.ProjectID == nil || *reprocessed.ProjectID != firstProjectID {
		t.Errorf("reprocess changed project link: %v", reprocessed.ProjectID)
	}

	var projects int64
	db.Model(&models.Project{}).Count(&projects)
	if projects != 1 {
		t.Errorf("projects = %d, want 1", projects)
	}

	var project models.Project
	db.First(&project)
	if project.SourceMessageID != msg.MessageID {
		t.Errorf("project provenance = %q, want %q", project.SourceMessageID, msg.MessageID)
	}
	if project.Title != "Quote request" {
		t.Errorf("project title = %q", project.Title)
	}
}

func TestProcessMessage_AutoCreateContactsDedupedByEmail(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	processService, _, ruleService := newProcessStack(db)

	if _, err := ruleService.CreateRule(CreateRuleInput{
		UserID: user.ID, Name: "auto-contact", AutoCreateContact: true, Priority: 1,
	}); err != nil {
		t.Fatal(err)
	}

	msg1 := createUnprocessedMessage(t, db, user.ID, "<m1@test>", "Intro",
		"Contact John Smith <john@example.com> for details")
	if err := processService.ProcessMessage(msg1); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	var contacts []models.Contact
	db.Find(&contacts)
	if len(contacts) != 1 {
		t.Fatalf("contacts = %d, want 1", len(contacts))
	}
	if contacts[0].Email != "john@example.com" {
		t.Errorf("contact email = %q", contacts[0].Email)
	}

	// A later message with the same address creates nothing new.
	msg2 := createUnprocessedMessage(t, db, user.ID, "<m2@test>", "Follow-up",
		"as discussed with john@example.com yesterday")
	if err := processService.ProcessMessage(msg2); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	var count int64
	db.Model(&models.Contact{}).Count(&count)
	if count != 1 {
		t.Errorf("contacts after second message = %d, want 1", count)
	}

	// Neither does one where only the letter case differs.
	msg3 := createUnprocessedMessage(t, db, user.ID, "<m3@test>", "Re: Intro",
		"forwarding to John.Smith's address John@Example.COM")
	if err := processService.ProcessMessage(msg3); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	db.Model(&models.Contact{}).Count(&count)
	if count != 1 {
		t.Errorf("contacts after case-variant message = %d, want 1", count)
	}
}

func TestProcessMessage_EmitsEntityCreatedEvents(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	crmService := NewCRMService(db, nil)
	ruleService := NewRuleService(db)
	notifier := &recordingNotifier{}
	processService := NewProcessService(db, crmService, ruleService, notifier)

	if _, err := ruleService.CreateRule(CreateRuleInput{
		UserID: user.ID, Name: "auto-create", Priority: 1,
		AutoCreateProject: true, AutoCreateContact: true,
	}); err != nil {
		t.Fatal(err)
	}

	msg := createUnprocessedMessage(t, db, user.ID, "<m1@test>", "Quote request",
		"Contact John Smith <john@example.com> for details")
	if err := processService.ProcessMessage(msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if msg.ProjectID == nil {
		t.Fatal("project not created")
	}

	events := notifier.ofType(notify.EventEntityCreated)
	if len(events) != 2 {
		t.Fatalf("entity.created events = %d, want 2 (project + contact)", len(events))
	}
	byEntity := make(map[string]notify.Event)
	for _, e := range events {
		if e.UserID != user.ID {
			t.Errorf("event user = %d, want %d", e.UserID, user.ID)
		}
		entityType, _ := e.Payload["entity_type"].(string)
		byEntity[entityType] = e
	}

	projectEvent, ok := byEntity["project"]
	if !ok {
		t.Fatal("no project event emitted")
	}
	if projectEvent.Payload["entity_id"] != *msg.ProjectID {
		t.Errorf("project event entity_id = %v, want %d", projectEvent.Payload["entity_id"], *msg.ProjectID)
	}
	if projectEvent.Payload["source_message_id"] != msg.ID {
		t.Errorf("project event source_message_id = %v, want %d", projectEvent.Payload["source_message_id"], msg.ID)
	}
	contactEvent, ok := byEntity["contact"]
	if !ok {
		t.Fatal("no contact event emitted")
	}
	if contactEvent.Payload["created"] != 1 {
		t.Errorf("contact event created = %v, want 1", contactEvent.Payload["created"])
	}

	// Reprocessing finds the existing rows; nothing new exists, so nothing
	// new is announced.
	if _, err := processService.ReprocessMessage(msg.ID, user.ID); err != nil {
		t.Fatalf("ReprocessMessage: %v", err)
	}
	if again := notifier.ofType(notify.EventEntityCreated); len(again) != 2 {
		t.Errorf("entity.created events after reprocess = %d, want still 2", len(again))
	}
}

func TestProcessMessage_AlreadyProcessedUntouched(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	processService, _, _ := newProcessStack(db)

	msg := createUnprocessedMessage(t, db, user.ID, "<m1@test>", "Order", "Tax ID: 7707083893")
	msg.Processed = true
	if err := db.Save(msg).Error; err != nil {
		t.Fatal(err)
	}

	if err := processService.ProcessMessage(msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if msg.ParsedTaxID != "" {
		t.Error("processed message was re-extracted")
	}
}

func TestProcessUnprocessed(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, db, "alice")
	processService, _, _ := newProcessStack(db)

	createUnprocessedMessage(t, db, user.ID, "<m1@test>", "One", "body")
	createUnprocessedMessage(t, db, user.ID, "<m2@test>", "Two", "body")

	n, err := processService.ProcessUnprocessed(user.ID)
	if err != nil {
		t.Fatalf("ProcessUnprocessed: %v", err)
	}
	if n != 2 {
		t.Errorf("processed = %d, want 2", n)
	}

	var unprocessed int64
	db.Model(&models.Message{}).Where("processed = ?", false).Count(&unprocessed)
	if unprocessed != 0 {
		t.Errorf("%d messages left unprocessed", unprocessed)
	}
}
