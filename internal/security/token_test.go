package security

import (
	"errors"
	"testing"
	"time"

	"waypost/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:            42,
		Email:         "pat@example.com",
		Username:      "pat",
		IsAdmin:       true,
		EmailVerified: true,
	}
}

func TestTokenCodecRoundTrip(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	token, err := codec.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Username != "pat" {
		t.Errorf("Username = %q, want pat", claims.Username)
	}
	if claims.Email != "pat@example.com" {
		t.Errorf("Email = %q, want pat@example.com", claims.Email)
	}
	if !claims.IsAdmin {
		t.Error("IsAdmin = false, want true")
	}
	if !claims.EmailVerified {
		t.Error("EmailVerified = false, want true")
	}
}

func TestTokenCodecExpiry(t *testing.T) {
	// Negative TTL issues an already-expired token
	codec := NewTokenCodec("test-secret", -time.Minute)

	token, err := codec.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = codec.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenCodecRejectsForgeries(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)
	other := NewTokenCodec("other-secret", time.Hour)

	token, err := other.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name string
		raw  string
	}{
		{"signed with wrong secret", token},
		{"malformed token", "not-a-jwt"},
		{"empty token", ""},
		{"tampered payload", token[:len(token)/2] + "xx" + token[len(token)/2:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Verify(tt.raw)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestTokenExpiryFollowsCodecTTL(t *testing.T) {
	codec := NewTokenCodec("test-secret", 24*time.Hour)

	token, err := codec.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < 23*time.Hour || ttl > 24*time.Hour+time.Minute {
		t.Errorf("token TTL = %v, want ~24h", ttl)
	}
}

func TestGenerateSessionToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := GenerateSessionToken()
		if err != nil {
			t.Fatalf("GenerateSessionToken() error = %v", err)
		}
		// 32 random bytes hex-encoded
		if len(token) != 64 {
			t.Fatalf("token length = %d, want 64", len(token))
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}
