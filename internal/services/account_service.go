package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"time"

	"github.com/relay-crm/core/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrAccountNotFound indicates the mail account was not found
	ErrAccountNotFound = errors.New("mail account not found")
	// ErrAccountAlreadyExists indicates the mail account already exists for this user
	ErrAccountAlreadyExists = errors.New("mail account already exists for this user")
	// ErrInvalidAccountData indicates invalid account data
	ErrInvalidAccountData = errors.New("invalid account data")
	// ErrEncryptionFailed indicates credential encryption failed
	ErrEncryptionFailed = errors.New("credential encryption failed")
	// ErrDecryptionFailed indicates credential decryption failed
	ErrDecryptionFailed = errors.New("credential decryption failed")
)

// AccountService handles mail account business logic. Credentials are stored
// encrypted with AES-256-GCM and only decrypted at connection time.
type AccountService struct {
	db            *gorm.DB
	encryptionKey []byte // 32 bytes for AES-256
	logService    *LogService
}

// NewAccountService creates a new AccountService instance
func NewAccountService(db *gorm.DB, encryptionKey []byte) *AccountService {
	// Ensure key is 32 bytes for AES-256
	key := make([]byte, 32)
	copy(key, encryptionKey)
	return &AccountService{
		db:            db,
		encryptionKey: key,
		logService:    NewLogService(db),
	}
}

// encryptSecret encrypts a credential using AES-256-GCM
func (s *AccountService) encryptSecret(secret string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptionFailed
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptSecret decrypts a credential using AES-256-GCM
func (s *AccountService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrDecryptionFailed
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// CreateAccountInput represents the input for creating a mail account
type CreateAccountInput struct {
	UserID              uint
	Email               string
	DisplayName         string
	Server              string
	Port                int
	Username            string
	Password            string
	UseSSL              bool
	TimeoutSeconds      int
	SyncIntervalMinutes int
}

// CreateAccount creates a new mail account for a user
func (s *AccountService) CreateAccount(input CreateAccountInput) (*models.MailAccount, error) {
	if input.Email == "" || input.Server == "" || input.Username == "" || input.Password == "" {
		return nil, ErrInvalidAccountData
	}

	var existingAccount models.MailAccount
	if err := s.db.Where("user_id = ? AND email = ?", input.UserID, input.Email).First(&existingAccount).Error; err == nil {
		return nil, ErrAccountAlreadyExists
	}

	encryptedPassword, err := s.encryptSecret(input.Password)
	if err != nil {
		return nil, err
	}

	account := &models.MailAccount{
		UserID:              input.UserID,
		Email:               input.Email,
		DisplayName:         input.DisplayName,
		Server:              input.Server,
		Port:                input.Port,
		Username:            input.Username,
		PasswordEncrypted:   encryptedPassword,
		UseSSL:              input.UseSSL,
		TimeoutSeconds:      input.TimeoutSeconds,
		AuthType:            models.AuthTypePassword,
		SyncIntervalMinutes: input.SyncIntervalMinutes,
		Active:              true, // Default to active
	}
	if account.Port <= 0 {
		account.Port = 993
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, err
	}

	s.logService.LogAccountCreated(input.UserID, account.ID, account.Email)

	return account, nil
}

// GetAccountByID retrieves a mail account by ID
func (s *AccountService) GetAccountByID(id uint) (*models.MailAccount, error) {
	var account models.MailAccount
	if err := s.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountByIDAndUserID retrieves a mail account by ID and user ID (for authorization)
func (s *AccountService) GetAccountByIDAndUserID(id, userID uint) (*models.MailAccount, error) {
	var account models.MailAccount
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountsByUserID retrieves all mail accounts for a user
func (s *AccountService) GetAccountsByUserID(userID uint) ([]models.MailAccount, error) {
	var accounts []models.MailAccount
	if err := s.db.Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetActiveAccounts retrieves all active mail accounts across users. The
// scheduler fans out over this list.
func (s *AccountService) GetActiveAccounts() ([]models.MailAccount, error) {
	var accounts []models.MailAccount
	if err := s.db.Where("active = ?", true).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// UpdateAccountInput represents the input for updating a mail account
type UpdateAccountInput struct {
	DisplayName         string
	Server              string
	Port                int
	Username            string
	Password            string // Optional: only update if not empty
	UseSSL              *bool
	TimeoutSeconds      int
	SyncIntervalMinutes int
}

// UpdateAccount updates a mail account
func (s *AccountService) UpdateAccount(id, userID uint, input UpdateAccountInput) (*models.MailAccount, error) {
	account, err := s.GetAccountByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != "" {
		account.DisplayName = input.DisplayName
	}
	if input.Server != "" {
		account.Server = input.Server
	}
	if input.Port > 0 {
		account.Port = input.Port
	}
	if input.Username != "" {
		account.Username = input.Username
	}
	if input.UseSSL != nil {
		account.UseSSL = *input.UseSSL
	}
	if input.TimeoutSeconds > 0 {
		account.TimeoutSeconds = input.TimeoutSeconds
	}
	if input.SyncIntervalMinutes > 0 {
		account.SyncIntervalMinutes = input.SyncIntervalMinutes
	}

	if input.Password != "" {
		encryptedPassword, err := s.encryptSecret(input.Password)
		if err != nil {
			return nil, err
		}
		account.PasswordEncrypted = encryptedPassword
	}

	if err := s.db.Save(account).Error; err != nil {
		return nil, err
	}

	s.logService.LogAccountUpdated(userID, account.ID, account.Email)

	return account, nil
}

// DeleteAccount deletes a mail account
func (s *AccountService) DeleteAccount(id, userID uint) error {
	account, err := s.GetAccountByIDAndUserID(id, userID)
	if err != nil {
		return err
	}

	email := account.Email

	if err := s.db.Delete(account).Error; err != nil {
		return err
	}

	s.logService.LogAccountDeleted(userID, id, email)

	return nil
}

// GetDecryptedPassword retrieves the decrypted password for an account
func (s *AccountService) GetDecryptedPassword(account *models.MailAccount) (string, error) {
	return s.decryptSecret(account.PasswordEncrypted)
}

// SetAccountActive sets the active status of an account
func (s *AccountService) SetAccountActive(id, userID uint, active bool) (*models.MailAccount, error) {
	account, err := s.GetAccountByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}

	account.Active = active

	if err := s.db.Save(account).Error; err != nil {
		return nil, err
	}

	s.logService.LogAccountStatusChanged(userID, account.ID, account.Email, active)

	return account, nil
}

// EnableAccount enables a mail account
func (s *AccountService) EnableAccount(id, userID uint) (*models.MailAccount, error) {
	return s.SetAccountActive(id, userID, true)
}

// DisableAccount disables a mail account
func (s *AccountService) DisableAccount(id, userID uint) (*models.MailAccount, error) {
	return s.SetAccountActive(id, userID, false)
}

// RecordSyncSuccess advances the watermark and clears the error state after
// a run that reached the mailbox. processed is added to the lifetime total.
func (s *AccountService) RecordSyncSuccess(accountID uint, watermark time.Time, processed int) error {
	updates := map[string]interface{}{
		"last_sync":       watermark,
		"last_error":      "",
		"last_error_time": time.Time{},
	}
	if processed > 0 {
		updates["total_processed"] = gorm.Expr("total_processed + ?", processed)
	}
	return s.db.Model(&models.MailAccount{}).Where("id = ?", accountID).Updates(updates).Error
}

// RecordSyncFailure stores the failure without touching the watermark, so the
// next run re-scans the same window.
func (s *AccountService) RecordSyncFailure(accountID uint, syncErr error) error {
	msg := ""
	if syncErr != nil {
		msg = syncErr.Error()
	}
	return s.db.Model(&models.MailAccount{}).Where("id = ?", accountID).Updates(map[string]interface{}{
		"last_error":      msg,
		"last_error_time": time.Now(),
	}).Error
}

// CreateAccountWithOAuth creates a new mail account with OAuth tokens, or
// refreshes the tokens of an existing account for the same address.
func (s *AccountService) CreateAccountWithOAuth(account *models.MailAccount, accessToken, refreshToken string) error {
	encryptedAccess, err := s.encryptSecret(accessToken)
	if err != nil {
		return err
	}
	encryptedRefresh, err := s.encryptSecret(refreshToken)
	if err != nil {
		return err
	}

	var existingAccount models.MailAccount
	if err := s.db.Where("user_id = ? AND email = ?", account.UserID, account.Email).First(&existingAccount).Error; err == nil {
		existingAccount.AuthType = models.AuthTypeOAuth2
		existingAccount.OAuthProvider = account.OAuthProvider
		existingAccount.OAuthAccessToken = encryptedAccess
		existingAccount.OAuthRefreshToken = encryptedRefresh
		existingAccount.OAuthTokenExpiry = account.OAuthTokenExpiry
		existingAccount.Active = true

		return s.db.Save(&existingAccount).Error
	}

	account.AuthType = models.AuthTypeOAuth2
	account.OAuthAccessToken = encryptedAccess
	account.OAuthRefreshToken = encryptedRefresh

	if err := s.db.Create(account).Error; err != nil {
		return err
	}

	s.logService.LogAccountCreated(account.UserID, account.ID, account.Email)

	return nil
}

// GetDecryptedOAuthTokens returns the decrypted OAuth tokens for an account
func (s *AccountService) GetDecryptedOAuthTokens(account *models.MailAccount) (accessToken, refreshToken string, err error) {
	if account.OAuthAccessToken != "" {
		accessToken, err = s.decryptSecret(account.OAuthAccessToken)
		if err != nil {
			return "", "", err
		}
	}
	if account.OAuthRefreshToken != "" {
		refreshToken, err = s.decryptSecret(account.OAuthRefreshToken)
		if err != nil {
			return "", "", err
		}
	}
	return accessToken, refreshToken, nil
}

// UpdateOAuthTokens updates the OAuth tokens for an account
func (s *AccountService) UpdateOAuthTokens(accountID uint, accessToken, refreshToken string, expiry *time.Time) error {
	updates := make(map[string]interface{})

	if accessToken != "" {
		encryptedAccess, err := s.encryptSecret(accessToken)
		if err != nil {
			return err
		}
		updates["oauth_access_token"] = encryptedAccess
	}

	if refreshToken != "" {
		encryptedRefresh, err := s.encryptSecret(refreshToken)
		if err != nil {
			return err
		}
		updates["oauth_refresh_token"] = encryptedRefresh
	}

	if expiry != nil {
		updates["oauth_token_expiry"] = *expiry
	}

	if len(updates) == 0 {
		return nil
	}

	return s.db.Model(&models.MailAccount{}).Where("id = ?", accountID).Updates(updates).Error
}
