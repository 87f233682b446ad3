package services

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/relay-crm/core/internal/database/models"
	"gorm.io/gorm"
)

func createAccountWithPassword(t *testing.T, service *AccountService, userID uint, password string) *models.MailAccount {
	account, err := service.CreateAccount(CreateAccountInput{
		UserID:      userID,
		Email:       fmt.Sprintf("user%d@example.com", userID),
		DisplayName: "Test Account",
		Server:      "imap.test.com",
		Port:        993,
		Username:    "test@test.com",
		Password:    password,
		UseSSL:      true,
	})
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

// TestProperty_CredentialEncryption checks that mailbox passwords are never
// persisted in plaintext and always decrypt back to the original value.
func TestProperty_CredentialEncryption(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	passwordGen := gen.SliceOfN(12, gen.AlphaChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	properties.Property("password_never_stored_as_plaintext", prop.ForAll(
		func(password string) bool {
			db, cleanup := setupTestDB(t)
			defer cleanup()

			service := NewAccountService(db, testEncryptionKey)
			user := createTestUser(t, db, "testuser")
			account := createAccountWithPassword(t, service, user.ID, password)

			// Read the raw column, bypassing the service.
			var stored models.MailAccount
			if err := db.First(&stored, account.ID).Error; err != nil {
				return false
			}
			return stored.PasswordEncrypted != password && stored.PasswordEncrypted != ""
		},
		passwordGen,
	))

	properties.Property("encrypted_password_decrypts_to_original", prop.ForAll(
		func(password string) bool {
			db, cleanup := setupTestDB(t)
			defer cleanup()

			service := NewAccountService(db, testEncryptionKey)
			user := createTestUser(t, db, "testuser")
			account := createAccountWithPassword(t, service, user.ID, password)

			decrypted, err := service.GetDecryptedPassword(account)
			if err != nil {
				return false
			}
			return decrypted == password
		},
		passwordGen,
	))

	properties.Property("same_password_encrypts_differently_each_time", prop.ForAll(
		func(password string) bool {
			db, cleanup := setupTestDB(t)
			defer cleanup()

			service := NewAccountService(db, testEncryptionKey)
			user := createTestUser(t, db, "testuser")

			// GCM uses a random nonce, so two accounts with the same
			// password must not share ciphertext.
			a := createAccountWithPassword(t, service, user.ID, password)
			b, err := service.CreateAccount(CreateAccountInput{
				UserID:   user.ID,
				Email:    "second@example.com",
				Server:   "imap.test.com",
				Port:     993,
				Username: "second@test.com",
				Password: password,
				UseSSL:   true,
			})
			if err != nil {
				return false
			}
			return a.PasswordEncrypted != b.PasswordEncrypted
		},
		passwordGen,
	))

	properties.TestingRun(t)
}

// TestProperty_AccountStatusSwitchIdempotency checks that repeating the same
// enable/disable operation leaves the account state unchanged.
func TestProperty_AccountStatusSwitchIdempotency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	setupAccount := func(t *testing.T, db *gorm.DB, service *AccountService, active bool) (*models.User, *models.MailAccount) {
		user := createTestUser(t, db, "testuser")
		account := createAccountWithPassword(t, service, user.ID, "testpassword")
		if !active {
			var err error
			account, err = service.SetAccountActive(account.ID, user.ID, false)
			if err != nil {
				t.Fatalf("Failed to set initial state: %v", err)
			}
		}
		return user, account
	}

	properties.Property("enabling_enabled_account_is_idempotent", prop.ForAll(
		func(repeats int) bool {
			db, cleanup := setupTestDB(t)
			defer cleanup()

			service := NewAccountService(db, testEncryptionKey)
			user, account := setupAccount(t, db, service, true)

			for i := 0; i < repeats; i++ {
				updated, err := service.EnableAccount(account.ID, user.ID)
				if err != nil || !updated.Active {
					return false
				}
			}

			final, err := service.GetAccountByID(account.ID)
			return err == nil && final.Active
		},
		gen.IntRange(1, 4),
	))

	properties.Property("disabling_disabled_account_is_idempotent", prop.ForAll(
		func(repeats int) bool {
			db, cleanup := setupTestDB(t)
			defer cleanup()

			service := NewAccountService(db, testEncryptionKey)
			user, account := setupAccount(t, db, service, false)

			for i := 0; i < repeats; i++ {
				updated, err := service.DisableAccount(account.ID, user.ID)
				if err != nil || updated.Active {
					return false
				}
			}

			final, err := service.GetAccountByID(account.ID)
			return err == nil && !final.Active
		},
		gen.IntRange(1, 4),
	))

	properties.Property("status_query_returns_correct_value_after_switch", prop.ForAll(
		func(target bool) bool {
			db, cleanup := setupTestDB(t)
			defer cleanup()

			service := NewAccountService(db, testEncryptionKey)
			user, account := setupAccount(t, db, service, !target)

			if _, err := service.SetAccountActive(account.ID, user.ID, target); err != nil {
				return false
			}

			queried, err := service.GetAccountByID(account.ID)
			return err == nil && queried.Active == target
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}
