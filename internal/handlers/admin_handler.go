package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"waypost/internal/service"
)

// AdminHandler handles administrative HTTP requests. Routes using it must be
// wrapped in RequireAuth and RequireAdmin.
type AdminHandler struct {
	authService *service.AuthService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authService *service.AuthService) *AdminHandler {
	return &AdminHandler{authService: authService}
}

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list users", err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetUserActive handles PUT /api/admin/users/{id}/active
func (h *AdminHandler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid user id")
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	// Admins may not deactivate themselves; that would orphan the account
	claims, _ := ClaimsFromContext(r.Context())
	if id == claims.UserID && !req.Active {
		writeError(w, http.StatusBadRequest, "invalid_request", "cannot deactivate your own account")
		return
	}

	if err := h.authService.SetUserActive(r.Context(), id, req.Active); err != nil {
		if !writeAuthError(w, err) {
			writeInternalError(w, "failed to update user", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser handles DELETE /api/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid user id")
		return
	}

	claims, _ := ClaimsFromContext(r.Context())
	if id == claims.UserID {
		writeError(w, http.StatusBadRequest, "invalid_request", "cannot delete your own account")
		return
	}

	if err := h.authService.DeleteUser(r.Context(), id); err != nil {
		if !writeAuthError(w, err) {
			writeInternalError(w, "failed to delete user", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles GET /api/admin/sessions
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.authService.ListAllSessions(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list sessions", err)
		return
	}

	type adminSessionResponse struct {
		ID     int64 `json:"id"`
		UserID int64 `json:"user_id"`
		sessionResponse
	}

	resp := make([]adminSessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, adminSessionResponse{
			ID:     s.ID,
			UserID: s.UserID,
			sessionResponse: sessionResponse{
				CreatedAt:    s.CreatedAt,
				LastAccessed: s.LastAccessed,
				ExpiresAt:    s.ExpiresAt,
				UserAgent:    s.UserAgent,
				IPAddress:    s.IPAddress,
			},
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
