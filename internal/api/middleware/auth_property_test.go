package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// protectedAPI builds a router shaped like the real /api tree: the key
// check guards everything, the JWT check guards the account routes.
func protectedAPI(keys *APIKeyManager, tokens *JWTManager) *gin.Engine {
	router := gin.New()
	api := router.Group("/api")
	api.Use(APIKeyMiddleware(keys))
	api.GET("/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	protected := api.Group("")
	protected.Use(JWTMiddleware(tokens))
	protected.GET("/accounts", func(c *gin.Context) {
		userID, _ := GetUserIDFromContext(c)
		username, _ := GetUsernameFromContext(c)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"user_id": userID, "username": username},
		})
	})
	return router
}

func doRequest(router *gin.Engine, path, apiKey, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body.Error.Code
}

// The API key gate: only the provisioned instance key opens /api.

func TestProperty_APIKeyGate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	keys, err := NewAPIKeyManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to provision API key: %v", err)
	}
	tokens := NewJWTManager("gate-secret", time.Hour)
	router := protectedAPI(keys, tokens)
	validKey := keys.GetCurrentKey()

	properties.Property("provisioned_key_passes_gate", prop.ForAll(
		func(_ int) bool {
			return doRequest(router, "/api/auth/login", validKey, "").Code == http.StatusOK
		},
		gen.Int(),
	))

	properties.Property("any_other_key_rejected", prop.ForAll(
		func(candidate string) bool {
			if candidate == validKey {
				return true
			}
			w := doRequest(router, "/api/auth/login", candidate, "")
			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
	))

	properties.Property("validate_key_is_deterministic", prop.ForAll(
		func(candidate string) bool {
			first := keys.ValidateKey(candidate)
			if first != keys.ValidateKey(candidate) {
				return false
			}
			return first == (candidate == validKey)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestAPIKeyGate_MissingKeyUsesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	keys, err := NewAPIKeyManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to provision API key: %v", err)
	}
	router := protectedAPI(keys, NewJWTManager("gate-secret", time.Hour))

	w := doRequest(router, "/api/auth/login", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without key, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "AUTH_FAILED" {
		t.Errorf("Expected AUTH_FAILED envelope, got %q", code)
	}
}

// Key rotation: the replacement takes over immediately, survives a
// restart, and never repeats.

func TestProperty_APIKeyRotation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("rotation_swaps_the_active_key", prop.ForAll(
		func(_ int) bool {
			keys, err := NewAPIKeyManager(t.TempDir())
			if err != nil {
				return false
			}
			before := keys.GetCurrentKey()

			after, err := keys.ResetKey()
			if err != nil {
				return false
			}
			return after != before && keys.ValidateKey(after) && !keys.ValidateKey(before)
		},
		gen.Int(),
	))

	properties.Property("rotated_key_survives_restart", prop.ForAll(
		func(_ int) bool {
			dataDir := t.TempDir()
			keys, err := NewAPIKeyManager(dataDir)
			if err != nil {
				return false
			}
			rotated, err := keys.ResetKey()
			if err != nil {
				return false
			}

			reloaded, err := NewAPIKeyManager(dataDir)
			if err != nil {
				return false
			}
			return reloaded.GetCurrentKey() == rotated && reloaded.ValidateKey(rotated)
		},
		gen.Int(),
	))

	properties.Property("successive_rotations_never_repeat", prop.ForAll(
		func(rotations int) bool {
			keys, err := NewAPIKeyManager(t.TempDir())
			if err != nil {
				return false
			}

			seen := map[string]bool{keys.GetCurrentKey(): true}
			for i := 0; i < rotations; i++ {
				key, err := keys.ResetKey()
				if err != nil || seen[key] {
					return false
				}
				seen[key] = true
			}
			return true
		},
		gen.IntRange(2, 8),
	))

	properties.Property("keys_are_64_hex_chars", prop.ForAll(
		func(_ int) bool {
			keys, err := NewAPIKeyManager(t.TempDir())
			if err != nil {
				return false
			}
			key := keys.GetCurrentKey()
			if len(key) != apiKeyBytes*2 {
				return false
			}
			for _, r := range key {
				if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
					return false
				}
			}
			return true
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

// Session tokens: claims round-trip through signing, and nothing signed
// elsewhere or expired gets through.

func TestProperty_SessionTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	tokens := NewJWTManager("session-secret", time.Hour)

	properties.Property("claims_round_trip", prop.ForAll(
		func(userID uint, username string) bool {
			signed, expiresAt, err := tokens.GenerateToken(userID, username)
			if err != nil || expiresAt <= time.Now().Unix() {
				return false
			}
			claims, err := tokens.ValidateToken(signed)
			if err != nil {
				return false
			}
			return claims.UserID == userID && claims.Username == username
		},
		gen.UIntRange(1, 10000),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("garbage_rejected", prop.ForAll(
		func(garbage string) bool {
			_, err := tokens.ValidateToken(garbage)
			return err != nil
		},
		gen.AlphaString(),
	))

	properties.Property("foreign_secret_rejected", prop.ForAll(
		func(userID uint, username string) bool {
			foreign := NewJWTManager("some-other-instance", time.Hour)
			signed, _, err := foreign.GenerateToken(userID, username)
			if err != nil {
				return false
			}
			_, err = tokens.ValidateToken(signed)
			return err != nil
		},
		gen.UIntRange(1, 10000),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}

func TestSessionToken_ExpiryReported(t *testing.T) {
	tokens := NewJWTManager("session-secret", -time.Minute)

	signed, _, err := tokens.GenerateToken(7, "alice")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := tokens.ValidateToken(signed); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTMiddleware_ExposesSessionUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	keys, err := NewAPIKeyManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to provision API key: %v", err)
	}
	tokens := NewJWTManager("session-secret", time.Hour)
	router := protectedAPI(keys, tokens)
	apiKey := keys.GetCurrentKey()

	// No token at all: the key alone does not open protected routes.
	w := doRequest(router, "/api/accounts", apiKey, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "AUTH_FAILED" {
		t.Errorf("Expected AUTH_FAILED envelope, got %q", code)
	}

	signed, _, err := tokens.GenerateToken(42, "alice")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	w = doRequest(router, "/api/accounts", apiKey, signed)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 with session token, got %d", w.Code)
	}

	var body struct {
		Data struct {
			UserID   uint   `json:"user_id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Data.UserID != 42 || body.Data.Username != "alice" {
		t.Errorf("Session user not exposed to handler: %+v", body.Data)
	}
}
