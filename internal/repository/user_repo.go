package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"waypost/internal/database"
	"waypost/internal/models"
)

// UserRepository handles database operations for users, including the
// single-use verification/reset token slots stored on the users row
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, email, username, password_hash, is_admin, is_active, email_verified,
	verification_token, verification_expiry, reset_token, reset_expiry,
	created_at, updated_at`

// scanUser scans a users row, mapping NULL token slots to zero values
func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	user := &models.User{}
	var verificationToken, resetToken sql.NullString
	var verificationExpiry, resetExpiry sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.IsActive,
		&user.EmailVerified,
		&verificationToken,
		&verificationExpiry,
		&resetToken,
		&resetExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.VerificationToken = verificationToken.String
	user.VerificationExpiry = verificationExpiry.Time
	user.ResetToken = resetToken.String
	user.ResetExpiry = resetExpiry.Time
	return user, nil
}

// CreateUser inserts a new user. The first user ever created becomes an admin.
func (r *UserRepository) CreateUser(ctx context.Context, email, username, passwordHash string) (*models.User, error) {
	var userCount int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&userCount); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	isAdmin := userCount == 0

	now := time.Now().UTC()
	query := `
		INSERT INTO users (email, username, password_hash, is_admin, is_active, email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, email, username, passwordHash, isAdmin, true, false, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetUserByEmail retrieves a user by email address
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUserBy(ctx, "email = ?", email)
}

// GetUserByUsername retrieves a user by username
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUserBy(ctx, "username = ?", username)
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUserBy(ctx, "id = ?", id)
}

// GetUserByVerificationToken retrieves the user holding an outstanding verification token
func (r *UserRepository) GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.getUserBy(ctx, "verification_token = ?", token)
}

// GetUserByResetToken retrieves the user holding an outstanding reset token
func (r *UserRepository) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.getUserBy(ctx, "reset_token = ?", token)
}

func (r *UserRepository) getUserBy(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + where
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetAllUsers returns every user, newest first
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	query := "UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SetActive flips the account's active flag. Callers are responsible for
// revoking sessions when deactivating; see AuthService.SetUserActive.
func (r *UserRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	query := "UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to set active flag: %w", err)
	}
	return nil
}

// DeleteUser removes a user; sessions and locations cascade
func (r *UserRepository) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// SetVerificationToken stores a new verification token, silently superseding
// any outstanding one
func (r *UserRepository) SetVerificationToken(ctx context.Context, userID int64, token string, expiry time.Time) error {
	query := "UPDATE users SET verification_token = ?, verification_expiry = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, token, expiry.UTC(), time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to set verification token: %w", err)
	}
	return nil
}

// ConsumeVerificationToken marks the email verified and clears the token slot
// in one statement. The WHERE clause re-checks the token value, so two racing
// consumers can never both succeed. Returns false when the token was already
// consumed or superseded.
func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, userID int64, token string) (bool, error) {
	query := `
		UPDATE users
		SET email_verified = ?, verification_token = NULL, verification_expiry = NULL, updated_at = ?
		WHERE id = ? AND verification_token = ?
	`
	result, err := r.db.ExecContext(ctx, query, true, time.Now().UTC(), userID, token)
	if err != nil {
		return false, fmt.Errorf("failed to consume verification token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetResetToken stores a new password reset token, silently superseding any
// outstanding one
func (r *UserRepository) SetResetToken(ctx context.Context, userID int64, token string, expiry time.Time) error {
	query := "UPDATE users SET reset_token = ?, reset_expiry = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, token, expiry.UTC(), time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken writes the new password hash and clears the token slot in
// one statement, keyed on the token value so a reset token is accepted at
// most once. Returns false when the token was already consumed or superseded.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, userID int64, token, passwordHash string) (bool, error) {
	query := `
		UPDATE users
		SET password_hash = ?, reset_token = NULL, reset_expiry = NULL, updated_at = ?
		WHERE id = ? AND reset_token = ?
	`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), userID, token)
	if err != nil {
		return false, fmt.Errorf("failed to consume reset token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}
