package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"waypost/internal/models"
	"waypost/internal/repository"
	"waypost/internal/security"
	"waypost/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrUserNotFound       = errors.New("user not found")

	// Ephemeral token failures (password reset, email verification)
	ErrEphemeralTokenNotFound = errors.New("token not found")
	ErrEphemeralTokenExpired  = errors.New("token expired")
)

// Metrics is the subset of metric recording the auth service needs.
// A nil Metrics is allowed and disables recording.
type Metrics interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordAuthReject(reason string)
	RecordSessionsSwept(count int64)
}

// AuthConfig holds the lifetime knobs for sessions and ephemeral tokens
type AuthConfig struct {
	SessionTTL           time.Duration
	ExtendedSessionTTL   time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
}

// AuthService handles credential, session, and ephemeral token lifecycle.
//
// Access control is a deliberate hybrid: the signed access token gives a fast
// stateless check, and the session record gives revocation. Every privileged
// request must pass both (see ValidateAccess).
type AuthService struct {
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	tokens      *security.TokenCodec
	metrics     Metrics
	config      AuthConfig
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo *repository.UserRepository,
	sessionRepo *repository.SessionRepository,
	tokens *security.TokenCodec,
	metrics Metrics,
	config AuthConfig,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		metrics:     metrics,
		config:      config,
	}
}

// Register creates a new user account and issues an email verification token.
// The caller is responsible for delivering the token (see EmailService).
func (s *AuthService) Register(ctx context.Context, email, username, password string) (*models.User, string, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, "", err
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, "", err
	}
	if err := security.ValidatePasswordPolicy(password); err != nil {
		return nil, "", err
	}

	existing, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	existing, err = s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", ErrUsernameTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, email, username, passwordHash)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	verificationToken, err := s.issueVerificationToken(ctx, user)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, verificationToken, nil
}

// AuthResult is the outcome of a successful authentication
type AuthResult struct {
	User        *models.User
	AccessToken string
	Session     *models.Session
}

// Authenticate verifies credentials and establishes a new session, revoking
// any prior sessions for the user. Unknown email and wrong password both
// return ErrInvalidCredentials so callers cannot enumerate accounts; a
// disabled account is reported as such regardless of password correctness.
func (s *AuthService) Authenticate(ctx context.Context, email, password string, meta repository.SessionMeta, remember bool) (*AuthResult, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		s.recordLoginFailure("unknown_user")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.recordLoginFailure("account_disabled")
		return nil, ErrAccountDisabled
	}

	if !security.CheckPassword(password, user.PasswordHash) {
		s.recordLoginFailure("wrong_password")
		return nil, ErrInvalidCredentials
	}

	session, err := s.StartSession(ctx, user.ID, meta, remember)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}
	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.Bool("remember", remember),
	)
	return &AuthResult{User: user, AccessToken: accessToken, Session: session}, nil
}

// StartSession creates a session for the user, revoking prior ones.
// remember selects the extended session lifetime; the access token TTL is
// unaffected either way.
func (s *AuthService) StartSession(ctx context.Context, userID int64, meta repository.SessionMeta, remember bool) (*models.Session, error) {
	token, err := security.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	ttl := s.config.SessionTTL
	if remember {
		ttl = s.config.ExtendedSessionTTL
	}

	session, err := s.sessionRepo.Create(ctx, userID, token, meta, time.Now().Add(ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateAccess is the per-request authorization decision. The access token
// must carry a valid, unexpired signature AND the user must still hold a live
// session. A cryptographically valid token whose session has been revoked is
// rejected with ErrSessionRevoked; this is what makes logout and account
// deactivation take effect before the token's own expiry.
func (s *AuthService) ValidateAccess(ctx context.Context, rawToken string) (*security.Claims, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrTokenExpired):
			s.recordAuthReject("token_expired")
		default:
			s.recordAuthReject("token_invalid")
		}
		return nil, err
	}

	active, err := s.sessionRepo.ListActiveForUser(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check sessions: %w", err)
	}
	if len(active) == 0 {
		s.recordAuthReject("session_revoked")
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

// ValidateSession checks an opaque session token and returns the
// session+owner projection, or ErrSessionRevoked when it is not live
func (s *AuthService) ValidateSession(ctx context.Context, sessionToken string) (*models.SessionView, error) {
	view, err := s.sessionRepo.Validate(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}
	if view == nil {
		return nil, ErrSessionRevoked
	}
	return view, nil
}

// Logout revokes a single session
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	changed, err := s.sessionRepo.Invalidate(ctx, sessionToken)
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	if changed {
		slog.Info("session ended")
	}
	return nil
}

// LogoutAll revokes every session owned by the user
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	count, err := s.sessionRepo.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to logout all sessions: %w", err)
	}
	slog.Info("all sessions ended", slog.Int64("user_id", userID), slog.Int64("count", count))
	return count, nil
}

// ListUserSessions returns the live sessions owned by the user
func (s *AuthService) ListUserSessions(ctx context.Context, userID int64) ([]models.Session, error) {
	return s.sessionRepo.ListActiveForUser(ctx, userID)
}

// ListAllSessions returns every live session (admin visibility)
func (s *AuthService) ListAllSessions(ctx context.Context) ([]models.Session, error) {
	return s.sessionRepo.ListActive(ctx)
}

// SetUserActive flips an account's active flag. Deactivation revokes every
// outstanding session before returning, so it cannot report success while a
// live session survives.
func (s *AuthService) SetUserActive(ctx context.Context, userID int64, active bool) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := s.userRepo.SetActive(ctx, userID, active); err != nil {
		return err
	}

	if !active {
		count, err := s.sessionRepo.InvalidateAllForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to revoke sessions on deactivation: %w", err)
		}
		slog.Info("user deactivated",
			slog.Int64("user_id", userID),
			slog.Int64("sessions_revoked", count),
		)
	}
	return nil
}

// ListUsers returns every account (admin visibility)
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.userRepo.GetAllUsers(ctx)
}

// GetUser returns the account by ID, or ErrUserNotFound
func (s *AuthService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// DeleteUser removes an account. Sessions are revoked first so the deletion
// takes effect immediately; the rows themselves go with the cascade.
func (s *AuthService) DeleteUser(ctx context.Context, userID int64) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	if _, err := s.sessionRepo.InvalidateAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions before deletion: %w", err)
	}
	if err := s.userRepo.DeleteUser(ctx, userID); err != nil {
		return err
	}

	slog.Info("user deleted", slog.Int64("user_id", userID))
	return nil
}

// RequestPasswordReset issues a single-use reset token for the account, if it
// exists. A missing account is not an error: the empty token return hides
// account existence from callers, and handlers must answer identically either
// way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, *models.User, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", nil, nil
	}

	token, err := security.GenerateEphemeralToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate reset token: %w", err)
	}

	// Overwrites any outstanding reset token, permanently superseding it
	expiry := time.Now().Add(s.config.ResetTokenTTL)
	if err := s.userRepo.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return "", nil, err
	}

	slog.Info("password reset requested", slog.Int64("user_id", user.ID))
	return token, user, nil
}

// ResetPassword consumes a reset token and sets the new password. The token
// is accepted at most once; all sessions are revoked so the new credential
// must be used to log back in.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.userRepo.GetUserByResetToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	if user == nil {
		return ErrEphemeralTokenNotFound
	}
	if time.Now().After(user.ResetExpiry) {
		return ErrEphemeralTokenExpired
	}

	if err := security.ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	consumed, err := s.userRepo.ConsumeResetToken(ctx, user.ID, token, passwordHash)
	if err != nil {
		return err
	}
	if !consumed {
		// Lost a race with another consumer or a regeneration
		return ErrEphemeralTokenNotFound
	}

	if _, err := s.sessionRepo.InvalidateAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke sessions after reset: %w", err)
	}

	slog.Info("password reset applied", slog.Int64("user_id", user.ID))
	return nil
}

// ChangePassword updates the password for a logged-in user. It reuses the
// same policy as registration and reset, and revokes every session so stolen
// sessions do not survive a password change.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	if !security.CheckPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := security.ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return err
	}

	if _, err := s.sessionRepo.InvalidateAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions after password change: %w", err)
	}
	return nil
}

// RequestEmailVerification issues a fresh verification token for the user,
// superseding any outstanding one (e.g. "resend verification email")
func (s *AuthService) RequestEmailVerification(ctx context.Context, userID int64) (string, *models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", nil, ErrUserNotFound
	}

	token, err := s.issueVerificationToken(ctx, user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) issueVerificationToken(ctx context.Context, user *models.User) (string, error) {
	token, err := security.GenerateEphemeralToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}

	expiry := time.Now().Add(s.config.VerificationTokenTTL)
	if err := s.userRepo.SetVerificationToken(ctx, user.ID, token, expiry); err != nil {
		return "", err
	}
	return token, nil
}

// VerifyEmail consumes a verification token and marks the account's email
// verified. Each token is accepted at most once.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.userRepo.GetUserByVerificationToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to look up verification token: %w", err)
	}
	if user == nil {
		return ErrEphemeralTokenNotFound
	}
	if time.Now().After(user.VerificationExpiry) {
		return ErrEphemeralTokenExpired
	}

	consumed, err := s.userRepo.ConsumeVerificationToken(ctx, user.ID, token)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrEphemeralTokenNotFound
	}

	slog.Info("email verified", slog.Int64("user_id", user.ID))
	return nil
}

// SweepSessions deletes expired and revoked session rows
func (s *AuthService) SweepSessions(ctx context.Context) (int64, error) {
	count, err := s.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordSessionsSwept(count)
	}
	return count, nil
}

func (s *AuthService) recordLoginFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure(reason)
	}
}

func (s *AuthService) recordAuthReject(reason string) {
	if s.metrics != nil {
		s.metrics.RecordAuthReject(reason)
	}
}
