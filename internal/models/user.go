package models

import "time"

// User represents an account in the system.
//
// VerificationToken/VerificationExpiry and ResetToken/ResetExpiry are each
// either both unset or both set; they are cleared together when the token is
// consumed. The zero value ("" / zero time) maps to NULL in the database.
type User struct {
	ID            int64
	Email         string
	Username      string
	PasswordHash  string
	IsAdmin       bool
	IsActive      bool
	EmailVerified bool

	VerificationToken  string
	VerificationExpiry time.Time
	ResetToken         string
	ResetExpiry        time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPendingVerification reports whether an unexpired verification token is outstanding
func (u *User) HasPendingVerification() bool {
	return u.VerificationToken != "" && time.Now().Before(u.VerificationExpiry)
}

// HasPendingReset reports whether an unexpired reset token is outstanding
func (u *User) HasPendingReset() bool {
	return u.ResetToken != "" && time.Now().Before(u.ResetExpiry)
}
