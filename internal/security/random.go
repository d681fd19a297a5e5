package security

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSessionToken returns a 256-bit hex-encoded opaque session token
func GenerateSessionToken() (string, error) {
	return generateSecureToken(32)
}

// GenerateEphemeralToken returns an opaque single-use token for password
// reset or email verification flows
func GenerateEphemeralToken() (string, error) {
	return generateSecureToken(32)
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
