package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the token failed signature or claim checks
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the token was valid once but has expired
	ErrTokenExpired = errors.New("token expired")
)

const tokenIssuer = "relay-crm"

// Context keys set by JWTMiddleware for downstream handlers.
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
)

// Claims is the session payload carried inside issued tokens.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies session tokens with a shared HMAC secret.
type JWTManager struct {
	secret []byte
	expiry time.Duration
}

// NewJWTManager creates a signer; a zero expiry falls back to
// DefaultTokenExpiry.
func NewJWTManager(secret string, expiry time.Duration) *JWTManager {
	if expiry == 0 {
		expiry = DefaultTokenExpiry
	}
	return &JWTManager{secret: []byte(secret), expiry: expiry}
}

// GenerateToken issues a session token for the user and returns it with
// its unix expiry timestamp.
func (m *JWTManager) GenerateToken(userID uint, username string) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(m.expiry)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, expiresAt.Unix(), nil
}

// ValidateToken verifies signature, algorithm, issuer and lifetime, and
// returns the embedded claims.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// bearerToken pulls the token out of the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}

// JWTMiddleware rejects requests without a valid session token and exposes
// the session's user to downstream handlers.
func JWTMiddleware(tokens *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "Bearer token is required")
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				unauthorized(c, "Token has expired")
			} else {
				unauthorized(c, "Invalid token")
			}
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username)
		c.Next()
	}
}

// GetUserIDFromContext retrieves the session user ID set by JWTMiddleware.
func GetUserIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

// GetUsernameFromContext retrieves the session username set by JWTMiddleware.
func GetUsernameFromContext(c *gin.Context) (string, bool) {
	value, exists := c.Get(ctxUsername)
	if !exists {
		return "", false
	}
	name, ok := value.(string)
	return name, ok
}
