package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"waypost/internal/models"
	"waypost/internal/service"
	"waypost/internal/validation"
)

// LocationHandler handles bookmark HTTP requests
type LocationHandler struct {
	locations *service.LocationService
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(locations *service.LocationService) *LocationHandler {
	return &LocationHandler{locations: locations}
}

type locationRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Category    string  `json:"category"`
	PhotoURL    string  `json:"photo_url"`
}

func writeLocationError(w http.ResponseWriter, err error) {
	var validationErr validation.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_failed", validationErr.Error())
	case errors.Is(err, service.ErrLocationNotFound):
		writeError(w, http.StatusNotFound, "not_found", "location not found")
	default:
		writeInternalError(w, "location operation failed", err)
	}
}

func locationID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// Create handles POST /api/locations
func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req locationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.locations.Create(r.Context(), &models.Location{
		UserID:      claims.UserID,
		Title:       req.Title,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Category:    req.Category,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		writeLocationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/locations
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	locations, err := h.locations.List(r.Context(), claims.UserID)
	if err != nil {
		writeLocationError(w, err)
		return
	}
	if locations == nil {
		locations = []models.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}

// Get handles GET /api/locations/{id}
func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	id, ok := locationID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid location id")
		return
	}

	loc, err := h.locations.Get(r.Context(), id, claims.UserID)
	if err != nil {
		writeLocationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// Update handles PUT /api/locations/{id}
func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	id, ok := locationID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid location id")
		return
	}

	var req locationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	loc := &models.Location{
		ID:          id,
		UserID:      claims.UserID,
		Title:       req.Title,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Category:    req.Category,
		PhotoURL:    req.PhotoURL,
	}
	if err := h.locations.Update(r.Context(), loc); err != nil {
		writeLocationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// Delete handles DELETE /api/locations/{id}
func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	id, ok := locationID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid location id")
		return
	}

	if err := h.locations.Delete(r.Context(), id, claims.UserID); err != nil {
		writeLocationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
