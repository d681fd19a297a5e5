package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"waypost/internal/models"
)

var (
	// ErrTokenExpired means the access token's own exp has passed
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenInvalid covers malformed tokens and bad signatures
	ErrTokenInvalid = errors.New("access token invalid")
)

// Claims is the payload carried by an access token
type Claims struct {
	UserID        int64  `json:"uid"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	IsAdmin       bool   `json:"isAdmin"`
	EmailVerified bool   `json:"emailVerified"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies signed access tokens. It is stateless:
// revocation is handled by the session layer, never here. The token's exp
// always reflects the access-token TTL, independent of session lifetime.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec creates a codec signing with HMAC-SHA256
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// Issue produces a signed access token for the user
func (c *TokenCodec) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:        user.ID,
		Username:      user.Username,
		Email:         user.Email,
		IsAdmin:       user.IsAdmin,
		EmailVerified: user.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an access token, returning its claims.
// Failures map to ErrTokenExpired or ErrTokenInvalid.
func (c *TokenCodec) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
