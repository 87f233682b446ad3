package middleware

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the instance API key on every request.
const APIKeyHeader = "X-API-Key"

const (
	apiKeyFile  = "api_key.txt"
	apiKeyBytes = 32
)

// APIKeyManager owns the single instance-wide API key. The key lives in a
// plain file under the data directory so operators can read it out for
// their clients; rotation rewrites the file and takes effect immediately.
type APIKeyManager struct {
	path string

	mu  sync.RWMutex
	key string
}

// NewAPIKeyManager loads the key from dataDir, generating and persisting a
// fresh one on first start.
func NewAPIKeyManager(dataDir string) (*APIKeyManager, error) {
	m := &APIKeyManager{path: filepath.Join(dataDir, apiKeyFile)}

	data, err := os.ReadFile(m.path)
	switch {
	case err == nil && len(bytes.TrimSpace(data)) > 0:
		m.key = string(bytes.TrimSpace(data))
	case err == nil || errors.Is(err, os.ErrNotExist):
		if err := m.rotate(); err != nil {
			return nil, fmt.Errorf("provision API key: %w", err)
		}
	default:
		return nil, fmt.Errorf("read API key: %w", err)
	}
	return m, nil
}

// rotate replaces the in-memory key and its file. Callers hold the write
// lock; during construction no other goroutine can see the manager yet.
func (m *APIKeyManager) rotate() error {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	key := hex.EncodeToString(buf)

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(m.path, []byte(key), 0o600); err != nil {
		return err
	}
	m.key = key
	return nil
}

// GetCurrentKey returns the active key, for display in the CLI and the
// server startup banner.
func (m *APIKeyManager) GetCurrentKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key
}

// ValidateKey reports whether key matches the active key. The comparison
// is constant-time.
func (m *APIKeyManager) ValidateKey(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.key == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(m.key), []byte(key)) == 1
}

// ResetKey rotates the key and returns the replacement. The previous key
// stops validating as soon as this returns.
func (m *APIKeyManager) ResetKey() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.rotate(); err != nil {
		return "", fmt.Errorf("rotate API key: %w", err)
	}
	return m.key, nil
}

// APIKeyMiddleware rejects requests that do not carry the active key.
func APIKeyMiddleware(keys *APIKeyManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)
		switch {
		case key == "":
			unauthorized(c, "API key is required")
		case !keys.ValidateKey(key):
			unauthorized(c, "Invalid API key")
		default:
			c.Next()
		}
	}
}
