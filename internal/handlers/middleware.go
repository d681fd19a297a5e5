package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"waypost/internal/repository"
	"waypost/internal/security"
	"waypost/internal/service"
)

// sessionMeta captures the client details recorded on a new session
func sessionMeta(r *http.Request) repository.SessionMeta {
	return repository.SessionMeta{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	}
}

type contextKey string

const (
	claimsContextKey    contextKey = "claims"
	requestIDContextKey contextKey = "request_id"
)

// ClaimsFromContext returns the verified claims attached by RequireAuth
func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*security.Claims)
	return claims, ok
}

// RequestIDFromContext returns the request ID attached by Logging
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// statusRecorder captures the status code written by downstream handlers
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging assigns a request ID and logs one line per request
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		slog.Info("request",
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// Recover converts panics into 500 responses instead of dropping the connection
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in handler",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// AuthGate guards privileged routes. RequireAuth extracts the bearer token,
// verifies it, confirms the user still holds a live session, and attaches
// the claims to the request context.
type AuthGate struct {
	auth *service.AuthService
}

// NewAuthGate creates the authentication middleware
func NewAuthGate(auth *service.AuthService) *AuthGate {
	return &AuthGate{auth: auth}
}

// RequireAuth rejects requests without a valid access token backed by a live
// session. The error code distinguishes the failure so clients can decide
// between re-login and token refresh.
func (g *AuthGate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
			return
		}

		claims, err := g.auth.ValidateAccess(r.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, "token_expired", "access token has expired")
			case errors.Is(err, service.ErrSessionRevoked):
				writeError(w, http.StatusUnauthorized, "session_revoked", "session is no longer active")
			case errors.Is(err, security.ErrTokenInvalid):
				writeError(w, http.StatusUnauthorized, "token_invalid", "access token is invalid")
			default:
				writeInternalError(w, "failed to validate access", err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireAuth
func (g *AuthGate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
			return
		}
		if !claims.IsAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme comparison is case-insensitive; an empty token does not count.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
