package models

import (
	"testing"
	"time"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiry",
			expiresAt: time.Now().Add(time.Hour),
			want:      false,
		},
		{
			name:      "past expiry",
			expiresAt: time.Now().Add(-time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{ExpiresAt: tt.expiresAt}
			if got := s.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionUsable(t *testing.T) {
	tests := []struct {
		name      string
		isActive  bool
		expiresAt time.Time
		want      bool
	}{
		{"active and unexpired", true, time.Now().Add(time.Hour), true},
		{"active but expired", true, time.Now().Add(-time.Hour), false},
		{"revoked but unexpired", false, time.Now().Add(time.Hour), false},
		{"revoked and expired", false, time.Now().Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{IsActive: tt.isActive, ExpiresAt: tt.expiresAt}
			if got := s.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserPendingTokens(t *testing.T) {
	u := &User{}
	if u.HasPendingVerification() {
		t.Error("HasPendingVerification() should be false for empty slot")
	}
	if u.HasPendingReset() {
		t.Error("HasPendingReset() should be false for empty slot")
	}

	u.VerificationToken = "abc"
	u.VerificationExpiry = time.Now().Add(time.Hour)
	if !u.HasPendingVerification() {
		t.Error("HasPendingVerification() should be true for unexpired token")
	}

	u.ResetToken = "def"
	u.ResetExpiry = time.Now().Add(-time.Minute)
	if u.HasPendingReset() {
		t.Error("HasPendingReset() should be false for expired token")
	}
}
