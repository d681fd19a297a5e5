package models

import "time"

// Session represents a server-held grant of access for one user on one
// device. The token is an opaque 256-bit hex value; it is unrelated to the
// signed access token, which is validated separately.
type Session struct {
	ID           int64
	UserID       int64
	Token        string
	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    time.Time
	UserAgent    string
	IPAddress    string
	IsActive     bool
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Usable reports whether the session would still be accepted by validation
func (s *Session) Usable() bool {
	return s.IsActive && !s.IsExpired()
}

// SessionView is the session+owner projection returned by session validation
type SessionView struct {
	Session
	Username      string
	Email         string
	IsAdmin       bool
	EmailVerified bool
}
