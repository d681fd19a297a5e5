package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"waypost/internal/models"
	"waypost/internal/security"
	"waypost/internal/service"
	"waypost/internal/validation"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService  *service.AuthService
	emailService *service.EmailService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, emailService *service.EmailService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		emailService: emailService,
	}
}

// userResponse is the public projection of a user account
type userResponse struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	IsAdmin       bool      `json:"is_admin"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		IsAdmin:       u.IsAdmin,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

type sessionResponse struct {
	Token        string    `json:"token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// writeAuthError maps service errors onto HTTP responses shared by several
// endpoints. Returns false when the error was not one it knows.
func writeAuthError(w http.ResponseWriter, err error) bool {
	var validationErr validation.ValidationError
	var policyErr *security.PolicyError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_failed", validationErr.Error())
	case errors.As(err, &policyErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"code":       "weak_password",
			"message":    "password does not meet the policy",
			"violations": policyErr.Violations,
		})
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "email is already registered")
	case errors.Is(err, service.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken", "username is already taken")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, service.ErrAccountDisabled):
		writeError(w, http.StatusForbidden, "account_disabled", "account is disabled")
	case errors.Is(err, service.ErrEphemeralTokenNotFound):
		writeError(w, http.StatusBadRequest, "token_invalid", "token is invalid or already used")
	case errors.Is(err, service.ErrEphemeralTokenExpired):
		writeError(w, http.StatusBadRequest, "token_expired", "token has expired")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	default:
		return false
	}
	return true
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, verificationToken, err := h.authService.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		if !writeAuthError(w, err) {
			writeInternalError(w, "registration failed", err)
		}
		return
	}

	// Delivery failure must not fail the registration; the user can request
	// a resend later
	if err := h.emailService.SendVerificationEmail(r.Context(), user.Email, user.Username, verificationToken); err != nil {
		slog.Error("failed to send verification email",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user": toUserResponse(user),
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	meta := sessionMeta(r)
	result, err := h.authService.Authenticate(r.Context(), req.Email, req.Password, meta, req.Remember)
	if err != nil {
		if !writeAuthError(w, err) {
			writeInternalError(w, "login failed", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  result.AccessToken,
		"session_token": result.Session.Token,
		"expires_at":    result.Session.ExpiresAt,
		"user":          toUserResponse(result.User),
	})
}

// Logout handles POST /api/auth/logout. The opaque session token travels in
// the body because the Authorization header carries the access token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"session_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_token is required")
		return
	}

	if err := h.authService.Logout(r.Context(), req.SessionToken); err != nil {
		writeInternalError(w, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /api/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	count, err := h.authService.LogoutAll(r.Context(), claims.UserID)
	if err != nil {
		writeInternalError(w, "logout-all failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"sessions_revoked": count})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	user, err := h.authService.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if !writeAuthError(w, err) {
			writeInternalError(w, "failed to load current user", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ListSessions handles GET /api/auth/sessions. Tokens are omitted so the
// listing cannot be replayed.
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	sessions, err := h.authService.ListUserSessions(r.Context(), claims.UserID)
	if err != nil {
		writeInternalError(w, "failed to list sessions", err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse{
			CreatedAt:    s.CreatedAt,
			LastAccessed: s.LastAccessed,
			ExpiresAt:    s.ExpiresAt,
			UserAgent:    s.UserAgent,
			IPAddress:    s.IPAddress,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		if !writeAuthError(w, err) {
			writeInternalError(w, "password change failed", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset handles POST /api/auth/password-reset/request.
// The response is 202 whether or not the account exists.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	token, user, err := h.authService.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeInternalError(w, "password reset request failed", err)
		return
	}

	if user != nil {
		if err := h.emailService.SendPasswordResetEmail(r.Context(), user.Email, user.Username, token); err != nil {
			slog.Error("failed to send password reset email",
				slog.Int64("user_id", user.ID),
				slog.Any("error", err),
			)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the account exists, a reset email has been sent",
	})
}

// ConfirmPasswordReset handles POST /api/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		if !writeAuthError(w, err) {
			writeInternalError(w, "password reset failed", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResendVerification handles POST /api/auth/verify-email/request
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	token, user, err := h.authService.RequestEmailVerification(r.Context(), claims.UserID)
	if err != nil {
		if !writeAuthError(w, err) {
			writeInternalError(w, "verification request failed", err)
		}
		return
	}

	if err := h.emailService.SendVerificationEmail(r.Context(), user.Email, user.Username, token); err != nil {
		slog.Error("failed to send verification email",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "verification email sent",
	})
}

// ConfirmVerification handles POST /api/auth/verify-email/confirm
func (h *AuthHandler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.VerifyEmail(r.Context(), req.Token); err != nil {
		if !writeAuthError(w, err) {
			writeInternalError(w, "email verification failed", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
