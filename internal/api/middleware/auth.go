// Package middleware guards the HTTP API with two layers: a file-backed
// API key shared by every caller of this instance, and per-user JWT
// sessions issued at login. The router applies the key check to the whole
// /api tree and the JWT check to everything behind login.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relay-crm/core/internal/config"
)

// DefaultTokenExpiry is how long issued sessions stay valid.
const DefaultTokenExpiry = 24 * time.Hour

// AuthManager bundles the two auth layers the router wires up.
type AuthManager struct {
	APIKeyManager *APIKeyManager
	JWTManager    *JWTManager
}

// NewAuthManager provisions the instance API key under the configured data
// directory and prepares the JWT signer from the configured secret.
func NewAuthManager(cfg *config.Config) (*AuthManager, error) {
	keys, err := NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return &AuthManager{
		APIKeyManager: keys,
		JWTManager:    NewJWTManager(cfg.JWTSecret, DefaultTokenExpiry),
	}, nil
}

// unauthorized writes the standard error envelope and stops the chain.
func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "AUTH_FAILED",
			"message": message,
		},
	})
}
