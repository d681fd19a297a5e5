package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"waypost/internal/models"
	"waypost/internal/repository"
	"waypost/internal/validation"
)

var ErrLocationNotFound = errors.New("location not found")

// LocationService handles bookmark operations. Every operation is scoped to
// the owning user; a bookmark owned by someone else behaves as if it does not
// exist.
type LocationService struct {
	locationRepo *repository.LocationRepository
}

// NewLocationService creates a new location service
func NewLocationService(locationRepo *repository.LocationRepository) *LocationService {
	return &LocationService{locationRepo: locationRepo}
}

func validateLocation(loc *models.Location) error {
	loc.Title = strings.TrimSpace(loc.Title)
	if loc.Title == "" {
		return validation.ValidationError{Field: "title", Message: "title is required"}
	}
	if len(loc.Title) > 200 {
		return validation.ValidationError{Field: "title", Message: "title must be at most 200 characters"}
	}
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return validation.ValidationError{Field: "latitude", Message: "latitude must be between -90 and 90"}
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return validation.ValidationError{Field: "longitude", Message: "longitude must be between -180 and 180"}
	}
	return nil
}

// Create validates and stores a new bookmark for the user
func (s *LocationService) Create(ctx context.Context, loc *models.Location) (*models.Location, error) {
	if err := validateLocation(loc); err != nil {
		return nil, err
	}
	created, err := s.locationRepo.CreateLocation(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return created, nil
}

// Get returns the user's bookmark, or ErrLocationNotFound
func (s *LocationService) Get(ctx context.Context, id, userID int64) (*models.Location, error) {
	loc, err := s.locationRepo.GetLocation(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, ErrLocationNotFound
	}
	return loc, nil
}

// List returns all bookmarks owned by the user, newest first
func (s *LocationService) List(ctx context.Context, userID int64) ([]models.Location, error) {
	return s.locationRepo.ListLocationsForUser(ctx, userID)
}

// Update validates and applies changes to an owned bookmark
func (s *LocationService) Update(ctx context.Context, loc *models.Location) error {
	if err := validateLocation(loc); err != nil {
		return err
	}
	updated, err := s.locationRepo.UpdateLocation(ctx, loc)
	if err != nil {
		return err
	}
	if !updated {
		return ErrLocationNotFound
	}
	return nil
}

// Delete removes an owned bookmark
func (s *LocationService) Delete(ctx context.Context, id, userID int64) error {
	deleted, err := s.locationRepo.DeleteLocation(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrLocationNotFound
	}
	return nil
}
