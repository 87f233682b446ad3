package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/relay-crm/core/internal/database/models"
)

// ErrNoRefreshToken indicates an expired OAuth account without a refresh token
var ErrNoRefreshToken = errors.New("no refresh token available")

// MailCredentials supplies decrypted mailbox credentials to the mail
// client, refreshing OAuth access tokens through the provider when they
// have expired.
type MailCredentials struct {
	accountService *AccountService
	configs        map[string]*oauth2.Config
}

// NewMailCredentials creates a credential source backed by the account
// service's encrypted store.
func NewMailCredentials(accountService *AccountService) *MailCredentials {
	return &MailCredentials{
		accountService: accountService,
		configs:        make(map[string]*oauth2.Config),
	}
}

// RegisterGoogleProvider wires the Google OAuth endpoint for accounts with
// provider "google".
func (m *MailCredentials) RegisterGoogleProvider(clientID, clientSecret string) {
	m.configs["google"] = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://mail.google.com/"},
	}
}

// Password returns the account's decrypted password.
func (m *MailCredentials) Password(account *models.MailAccount) (string, error) {
	return m.accountService.GetDecryptedPassword(account)
}

// AccessToken returns a currently valid access token, refreshing and
// re-persisting it when the stored one has expired.
func (m *MailCredentials) AccessToken(account *models.MailAccount) (string, error) {
	accessToken, refreshToken, err := m.accountService.GetDecryptedOAuthTokens(account)
	if err != nil {
		return "", err
	}

	if accessToken != "" && account.OAuthTokenExpiry.After(time.Now().Add(time.Minute)) {
		return accessToken, nil
	}

	config, ok := m.configs[account.OAuthProvider]
	if !ok {
		return "", fmt.Errorf("unsupported OAuth provider: %s", account.OAuthProvider)
	}
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	token, err := config.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	newRefresh := ""
	if token.RefreshToken != refreshToken {
		newRefresh = token.RefreshToken
	}
	if err := m.accountService.UpdateOAuthTokens(account.ID, token.AccessToken, newRefresh, &token.Expiry); err != nil {
		return "", err
	}
	account.OAuthTokenExpiry = token.Expiry

	return token.AccessToken, nil
}
