package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"waypost/internal/database"
	"waypost/internal/models"
)

// SessionRepository handles database operations for sessions. It owns the
// single-active-session-per-user policy: creating a session revokes every
// prior session for that user inside the same transaction.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, user_id, session_token, created_at, last_accessed, expires_at,
	user_agent, ip_address, is_active`

func scanSession(row interface{ Scan(...interface{}) error }, s *models.Session) error {
	return row.Scan(
		&s.ID,
		&s.UserID,
		&s.Token,
		&s.CreatedAt,
		&s.LastAccessed,
		&s.ExpiresAt,
		&s.UserAgent,
		&s.IPAddress,
		&s.IsActive,
	)
}

// SessionMeta carries per-device context recorded with each session
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// Create revokes every active session owned by userID and inserts the new
// row as one transaction. Running the two statements independently would
// open a race where two concurrent logins end up with zero or two active
// sessions, so the pairing is a correctness requirement here.
func (r *SessionRepository) Create(ctx context.Context, userID int64, token string, meta SessionMeta, expiresAt time.Time) (*models.Session, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET is_active = ? WHERE user_id = ? AND is_active = ?",
		false, userID, true,
	); err != nil {
		return nil, fmt.Errorf("failed to invalidate prior sessions: %w", err)
	}

	now := time.Now().UTC()
	id, err := tx.ExecReturningID(ctx, `
		INSERT INTO sessions (user_id, session_token, created_at, last_accessed, expires_at, user_agent, ip_address, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, userID, token, now, now, expiresAt.UTC(), meta.UserAgent, meta.IPAddress, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session transaction: %w", err)
	}

	return &models.Session{
		ID:           id,
		UserID:       userID,
		Token:        token,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    expiresAt.UTC(),
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
		IsActive:     true,
	}, nil
}

// Validate returns the session+owner projection for a live session token, or
// nil when the token is unknown, revoked, or expired. As a side effect it
// bumps last_accessed; that update is best-effort and never fails validation.
func (r *SessionRepository) Validate(ctx context.Context, token string) (*models.SessionView, error) {
	view := &models.SessionView{}
	query := `
		SELECT s.id, s.user_id, s.session_token, s.created_at, s.last_accessed, s.expires_at,
		       s.user_agent, s.ip_address, s.is_active,
		       u.username, u.email, u.is_admin, u.email_verified
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.session_token = ? AND s.is_active = ? AND s.expires_at > ?
	`
	err := r.db.QueryRowContext(ctx, query, token, true, time.Now().UTC()).Scan(
		&view.ID,
		&view.UserID,
		&view.Token,
		&view.CreatedAt,
		&view.LastAccessed,
		&view.ExpiresAt,
		&view.UserAgent,
		&view.IPAddress,
		&view.IsActive,
		&view.Username,
		&view.Email,
		&view.IsAdmin,
		&view.EmailVerified,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET last_accessed = ? WHERE id = ?",
		time.Now().UTC(), view.ID,
	); err != nil {
		slog.Warn("failed to bump session last_accessed",
			slog.Int64("session_id", view.ID),
			slog.String("error", err.Error()),
		)
	}

	return view, nil
}

// Invalidate revokes the session with the given token. Returns true when a
// live session was actually revoked.
func (r *SessionRepository) Invalidate(ctx context.Context, token string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET is_active = ? WHERE session_token = ? AND is_active = ?",
		false, token, true,
	)
	if err != nil {
		return false, fmt.Errorf("failed to invalidate session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// InvalidateAllForUser revokes every session owned by userID and returns how
// many were revoked. Used at login, logout-all, and account deactivation.
func (r *SessionRepository) InvalidateAllForUser(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET is_active = ? WHERE user_id = ? AND is_active = ?",
		false, userID, true,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate user sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

// DeleteExpired removes sessions that are expired or revoked. The predicate
// only ever matches rows Validate would already reject, so the sweep is safe
// to run concurrently with request handling.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ? OR is_active = ?",
		time.Now().UTC(), false,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return deleted, nil
}

// GetByToken returns the session row regardless of state, or nil when absent
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	session := &models.Session{}
	query := "SELECT " + sessionColumns + " FROM sessions WHERE session_token = ?"
	err := scanSession(r.db.QueryRowContext(ctx, query, token), session)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListActive returns every live session, newest first
func (r *SessionRepository) ListActive(ctx context.Context) ([]models.Session, error) {
	query := "SELECT " + sessionColumns + ` FROM sessions
		WHERE is_active = ? AND expires_at > ?
		ORDER BY created_at DESC`
	return r.listSessions(ctx, query, true, time.Now().UTC())
}

// ListActiveForUser returns the live sessions owned by userID. Under the
// single-active-session policy this is at most one row, but the query does
// not assume that.
func (r *SessionRepository) ListActiveForUser(ctx context.Context, userID int64) ([]models.Session, error) {
	query := "SELECT " + sessionColumns + ` FROM sessions
		WHERE user_id = ? AND is_active = ? AND expires_at > ?
		ORDER BY created_at DESC`
	return r.listSessions(ctx, query, userID, true, time.Now().UTC())
}

func (r *SessionRepository) listSessions(ctx context.Context, query string, args ...interface{}) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
