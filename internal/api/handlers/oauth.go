package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/relay-crm/core/internal/api/middleware"
	"github.com/relay-crm/core/internal/config"
	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/services"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// stateTTL bounds how long a pending OAuth flow stays valid.
const stateTTL = 10 * time.Minute

// OAuthHandler handles the Google OAuth flow for XOAUTH2 mail accounts
type OAuthHandler struct {
	accountService *services.AccountService
	cfg            *config.Config
	stateStore     *StateStore
}

// StateStore stores OAuth state tokens for in-flight flows
type StateStore struct {
	mu     sync.RWMutex
	states map[string]*OAuthState
}

// OAuthState represents one pending OAuth flow
type OAuthState struct {
	UserID      uint
	Provider    string
	DisplayName string
	CreatedAt   time.Time
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(accountService *services.AccountService, cfg *config.Config) *OAuthHandler {
	return &OAuthHandler{
		accountService: accountService,
		cfg:            cfg,
		stateStore: &StateStore{
			states: make(map[string]*OAuthState),
		},
	}
}

// googleOAuthConfig builds the oauth2 config from application configuration.
func (h *OAuthHandler) googleOAuthConfig() *oauth2.Config {
	redirectBase := h.cfg.OAuthRedirectBase
	if redirectBase == "" {
		redirectBase = "http://localhost:" + h.cfg.APIPort
	}
	return &oauth2.Config{
		ClientID:     h.cfg.GoogleClientID,
		ClientSecret: h.cfg.GoogleClientSecret,
		RedirectURL:  redirectBase + "/api/oauth/google/callback",
		Scopes: []string{
			"https://mail.google.com/",
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: google.Endpoint,
	}
}

// generateState generates a random state token
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GetGoogleAuthURL returns the Google OAuth authorization URL
// GET /api/oauth/google/auth
func (h *OAuthHandler) GetGoogleAuthURL(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not authenticated",
			},
		})
		return
	}

	oauthConfig := h.googleOAuthConfig()
	if oauthConfig.ClientID == "" || oauthConfig.ClientSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "OAUTH_NOT_CONFIGURED",
				"message": "Google OAuth is not configured",
			},
		})
		return
	}

	state, err := generateState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to generate state token",
			},
		})
		return
	}

	h.stateStore.mu.Lock()
	h.stateStore.states[state] = &OAuthState{
		UserID:      userID,
		Provider:    "google",
		DisplayName: c.Query("display_name"),
		CreatedAt:   time.Now(),
	}
	h.stateStore.mu.Unlock()

	go h.cleanupOldStates()

	// Offline access so Google issues a refresh token.
	url := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"auth_url": url,
		},
	})
}

// GoogleCallback handles the Google OAuth callback
// GET /api/oauth/google/callback
func (h *OAuthHandler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	errorParam := c.Query("error")

	if errorParam != "" {
		c.Redirect(http.StatusFound, "/?oauth_error="+errorParam)
		return
	}

	if code == "" || state == "" {
		c.Redirect(http.StatusFound, "/?oauth_error=missing_params")
		return
	}

	h.stateStore.mu.Lock()
	oauthState, exists := h.stateStore.states[state]
	delete(h.stateStore.states, state)
	h.stateStore.mu.Unlock()

	if !exists {
		c.Redirect(http.StatusFound, "/?oauth_error=invalid_state")
		return
	}
	if time.Since(oauthState.CreatedAt) > stateTTL {
		c.Redirect(http.StatusFound, "/?oauth_error=state_expired")
		return
	}

	oauthConfig := h.googleOAuthConfig()
	token, err := oauthConfig.Exchange(context.Background(), code)
	if err != nil {
		c.Redirect(http.StatusFound, "/?oauth_error=token_exchange_failed")
		return
	}

	email, err := getGoogleUserEmail(token.AccessToken)
	if err != nil {
		c.Redirect(http.StatusFound, "/?oauth_error=get_email_failed")
		return
	}

	displayName := oauthState.DisplayName
	if displayName == "" {
		displayName = email
	}
	account := &models.MailAccount{
		UserID:           oauthState.UserID,
		Email:            email,
		DisplayName:      displayName,
		Server:           "imap.gmail.com",
		Port:             993,
		Username:         email,
		UseSSL:           true,
		Active:           true,
		AuthType:         models.AuthTypeOAuth2,
		OAuthProvider:    "google",
		OAuthTokenExpiry: token.Expiry,
	}

	if err := h.accountService.CreateAccountWithOAuth(account, token.AccessToken, token.RefreshToken); err != nil {
		c.Redirect(http.StatusFound, "/?oauth_error=save_account_failed")
		return
	}

	c.Redirect(http.StatusFound, "/?oauth_success=google&email="+email)
}

// getGoogleUserEmail gets the user's email address from the Google API
func getGoogleUserEmail(accessToken string) (string, error) {
	resp, err := http.Get("https://www.googleapis.com/oauth2/v2/userinfo?access_token=" + accessToken)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	var userInfo struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return "", err
	}

	return userInfo.Email, nil
}

// cleanupOldStates removes states past the TTL
func (h *OAuthHandler) cleanupOldStates() {
	h.stateStore.mu.Lock()
	defer h.stateStore.mu.Unlock()

	for state, oauthState := range h.stateStore.states {
		if time.Since(oauthState.CreatedAt) > stateTTL {
			delete(h.stateStore.states, state)
		}
	}
}

// GetOAuthConfig returns whether Google OAuth is available
// GET /api/oauth/config
func (h *OAuthHandler) GetOAuthConfig(c *gin.Context) {
	if _, exists := middleware.GetUserIDFromContext(c); !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not authenticated",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"google_enabled": h.cfg.GoogleClientID != "" && h.cfg.GoogleClientSecret != "",
		},
	})
}
