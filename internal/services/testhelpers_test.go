package services

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/mailclient"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testEncryptionKey = []byte("test-encryption-key-32-bytes!!!!")

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := gorm.Open(sqlite.Open(tmpFile.Name()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to open database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.MailAccount{},
		&models.Message{},
		&models.Attachment{},
		&models.SyncRun{},
		&models.ProcessingRule{},
		&models.Company{},
		&models.Project{},
		&models.Contact{},
		&models.Log{},
	)
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.Remove(tmpFile.Name())
	}

	return db, cleanup
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{Username: username, PasswordHash: "hash", Role: "user"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestAccount(t *testing.T, service *AccountService, userID uint, email string) *models.MailAccount {
	account, err := service.CreateAccount(CreateAccountInput{
		UserID:      userID,
		Email:       email,
		DisplayName: "Test Account",
		Server:      "imap.test.com",
		Port:        993,
		Username:    email,
		Password:    "testpassword",
		UseSSL:      true,
	})
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

// fakeSession feeds canned messages into the sync pipeline. The canned
// slice is oldest-first; Fetch honors the Session contract by keeping the
// newest limit entries and returning them newest-first.
type fakeSession struct {
	messages []mailclient.RawMessage
	fetchErr error
	closed   bool
}

func (s *fakeSession) Fetch(since time.Time, limit int) ([]mailclient.RawMessage, error) {
	kept := s.messages
	if limit > 0 && len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	out := make([]mailclient.RawMessage, 0, len(kept))
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}
	return out, s.fetchErr
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakeClient is a mailclient.Client returning a fixed session or error.
type fakeClient struct {
	session    *fakeSession
	connectErr error
	connects   int
}

func (c *fakeClient) Connect(account *models.MailAccount) (mailclient.Session, error) {
	c.connects++
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return c.session, nil
}

func rawTestMessage(i int) mailclient.RawMessage {
	return mailclient.RawMessage{
		MessageID:  fmt.Sprintf("<msg-%d@test.example>", i),
		UID:        uint32(i),
		Subject:    fmt.Sprintf("Subject %d", i),
		Sender:     "sender@test.example",
		To:         []string{"inbox@test.example"},
		ReceivedAt: time.Date(2024, 3, 1, 12, i, 0, 0, time.UTC),
		BodyText:   fmt.Sprintf("Body of message %d", i),
	}
}
