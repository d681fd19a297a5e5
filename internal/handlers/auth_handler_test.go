package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"waypost/internal/repository"
	"waypost/internal/security"
	"waypost/internal/service"
	"waypost/internal/testutil"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	db := testutil.NewTestDB(t)
	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	locations := repository.NewLocationRepository(db)
	codec := security.NewTokenCodec("test-secret", 24*time.Hour)

	authService := service.NewAuthService(users, sessions, codec, nil, service.AuthConfig{
		SessionTTL:           24 * time.Hour,
		ExtendedSessionTTL:   30 * 24 * time.Hour,
		VerificationTokenTTL: 24 * time.Hour,
		ResetTokenTTL:        time.Hour,
	})

	emailService, err := service.NewEmailService(context.Background(), "", "", "", "")
	if err != nil {
		t.Fatalf("NewEmailService() error = %v", err)
	}

	limiter := NewIPRateLimiter(rate.Limit(1000), 1000)
	t.Cleanup(limiter.Stop)

	return NewRouter(&RouterDeps{
		AuthService:     authService,
		LocationService: service.NewLocationService(locations),
		EmailService:    emailService,
		LoginLimiter:    limiter,
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type loginResponse struct {
	AccessToken  string    `json:"access_token"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         struct {
		ID       int64  `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
		IsAdmin  bool   `json:"is_admin"`
	} `json:"user"`
}

func registerAndLogin(t *testing.T, router http.Handler, email, username string) loginResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "username": username, "password": testPassword,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
		"email": email, "password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	return resp
}

func TestLoginFlow(t *testing.T) {
	router := newTestRouter(t)
	resp := registerAndLogin(t, router, "flow@example.com", "flowuser")

	if resp.AccessToken == "" || resp.SessionToken == "" {
		t.Fatal("login response missing tokens")
	}
	if len(resp.SessionToken) != 64 {
		t.Errorf("session token length = %d, want 64 hex chars", len(resp.SessionToken))
	}

	t.Run("me returns the account", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/auth/me", resp.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("me status = %d", rec.Code)
		}
		var me struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&me); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if me.Email != "flow@example.com" {
			t.Errorf("email = %q, want flow@example.com", me.Email)
		}
	})

	t.Run("logout revokes access", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/auth/logout", resp.AccessToken, map[string]string{
			"session_token": resp.SessionToken,
		})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("logout status = %d", rec.Code)
		}

		rec = doJSON(t, router, http.MethodGet, "/api/auth/me", resp.AccessToken, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("me after logout status = %d, want 401", rec.Code)
		}
		if code := decodeErrorCode(t, rec); code != "session_revoked" {
			t.Errorf("error code = %q, want session_revoked", code)
		}
	})
}

func TestLoginErrors(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "err@example.com", "erruser")

	t.Run("wrong password", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
			"email": "err@example.com", "password": "Wr0ng!password",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if code := decodeErrorCode(t, rec); code != "invalid_credentials" {
			t.Errorf("error code = %q, want invalid_credentials", code)
		}
	})

	t.Run("unknown account gives the same error", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
			"email": "ghost@example.com", "password": "Wr0ng!password",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if code := decodeErrorCode(t, rec); code != "invalid_credentials" {
			t.Errorf("error code = %q, want invalid_credentials", code)
		}
	})

	t.Run("weak password on register", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "weak@example.com", "username": "weakuser", "password": "short",
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
		var body struct {
			Code       string   `json:"code"`
			Violations []string `json:"violations"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if body.Code != "weak_password" || len(body.Violations) == 0 {
			t.Errorf("body = %+v, want weak_password with violations", body)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "err@example.com", "username": "otheruser", "password": testPassword,
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})
}

func TestPasswordResetRequestHidesAccountExistence(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "real@example.com", "realuser")

	known := doJSON(t, router, http.MethodPost, "/api/auth/password-reset/request", "", map[string]string{
		"email": "real@example.com",
	})
	unknown := doJSON(t, router, http.MethodPost, "/api/auth/password-reset/request", "", map[string]string{
		"email": "ghost@example.com",
	})

	if known.Code != http.StatusAccepted || unknown.Code != http.StatusAccepted {
		t.Fatalf("statuses = %d/%d, want 202/202", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Error("responses for known and unknown accounts must be identical")
	}
}

func TestLocationCRUD(t *testing.T) {
	router := newTestRouter(t)
	owner := registerAndLogin(t, router, "owner@example.com", "owneruser")
	other := registerAndLogin(t, router, "other@example.com", "otheruser")

	rec := doJSON(t, router, http.MethodPost, "/api/locations/", owner.AccessToken, map[string]interface{}{
		"title": "Coffee spot", "latitude": 51.5, "longitude": -0.1, "category": "cafe",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID int64 `json:"ID"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	t.Run("owner can read", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/locations/", owner.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("list status = %d", rec.Code)
		}
	})

	t.Run("other user cannot see it", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, locationPath(created.ID), other.AccessToken, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("cross-user delete status = %d, want 404", rec.Code)
		}
	})

	t.Run("invalid coordinates rejected", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/locations/", owner.AccessToken, map[string]interface{}{
			"title": "Nowhere", "latitude": 120.0, "longitude": 0.0,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("owner can delete", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, locationPath(created.ID), owner.AccessToken, nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("delete status = %d, want 204", rec.Code)
		}
	})
}

func locationPath(id int64) string {
	return "/api/locations/" + strconv.FormatInt(id, 10)
}

func TestAdminEndpoints(t *testing.T) {
	router := newTestRouter(t)
	admin := registerAndLogin(t, router, "first@example.com", "firstuser")
	member := registerAndLogin(t, router, "second@example.com", "seconduser")

	t.Run("member is forbidden", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/admin/users", member.AccessToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("admin lists users", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/admin/users", admin.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var users []userResponse
		if err := json.NewDecoder(rec.Body).Decode(&users); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(users) != 2 {
			t.Errorf("got %d users, want 2", len(users))
		}
	})

	t.Run("deactivation revokes the member's session", func(t *testing.T) {
		path := "/api/admin/users/" + strconv.FormatInt(member.User.ID, 10) + "/active"
		rec := doJSON(t, router, http.MethodPut, path, admin.AccessToken, map[string]bool{"active": false})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		rec = doJSON(t, router, http.MethodGet, "/api/auth/me", member.AccessToken, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("member access after deactivation status = %d, want 401", rec.Code)
		}
	})

	t.Run("admin cannot deactivate self", func(t *testing.T) {
		path := "/api/admin/users/" + strconv.FormatInt(admin.User.ID, 10) + "/active"
		rec := doJSON(t, router, http.MethodPut, path, admin.AccessToken, map[string]bool{"active": false})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}
