package security

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is tuned so verification lands in the ~100ms range on current
// hardware. Stored hashes embed their own cost, so raising this later only
// affects newly created hashes.
const bcryptCost = 12

// passwordSymbols is the punctuation set accepted by the password policy
const passwordSymbols = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~"

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a bcrypt hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PolicyError reports every password-policy rule the candidate failed
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "password policy violation: " + strings.Join(e.Violations, "; ")
}

// ValidatePasswordPolicy checks a candidate password against the account
// password policy. It is the single definition used by registration, reset,
// and change-password flows. Returns a *PolicyError listing all failed rules,
// or nil when the password is acceptable.
func ValidatePasswordPolicy(password string) error {
	var violations []string

	if len(password) < 8 {
		violations = append(violations, "must be at least 8 characters")
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if !hasSymbol {
		violations = append(violations, "must contain a symbol")
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
