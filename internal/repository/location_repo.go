package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"waypost/internal/database"
	"waypost/internal/models"
)

// LocationRepository handles database operations for location bookmarks
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

const locationColumns = `
	id, user_id, title, description, latitude, longitude, category, photo_url,
	created_at, updated_at`

func scanLocation(row interface{ Scan(...interface{}) error }, l *models.Location) error {
	return row.Scan(
		&l.ID,
		&l.UserID,
		&l.Title,
		&l.Description,
		&l.Latitude,
		&l.Longitude,
		&l.Category,
		&l.PhotoURL,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
}

// CreateLocation inserts a new bookmark for the owning user
func (r *LocationRepository) CreateLocation(ctx context.Context, loc *models.Location) (*models.Location, error) {
	now := time.Now().UTC()
	id, err := r.db.ExecReturningID(ctx, `
		INSERT INTO locations (user_id, title, description, latitude, longitude, category, photo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, loc.UserID, loc.Title, loc.Description, loc.Latitude, loc.Longitude, loc.Category, loc.PhotoURL, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}

	created := *loc
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

// GetLocation returns a bookmark only if it is owned by userID
func (r *LocationRepository) GetLocation(ctx context.Context, id, userID int64) (*models.Location, error) {
	loc := &models.Location{}
	query := "SELECT " + locationColumns + " FROM locations WHERE id = ? AND user_id = ?"
	err := scanLocation(r.db.QueryRowContext(ctx, query, id, userID), loc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return loc, nil
}

// ListLocationsForUser returns every bookmark owned by userID, newest first
func (r *LocationRepository) ListLocationsForUser(ctx context.Context, userID int64) ([]models.Location, error) {
	query := "SELECT " + locationColumns + " FROM locations WHERE user_id = ? ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var l models.Location
		if err := scanLocation(rows, &l); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// UpdateLocation updates an owned bookmark. Returns false when no row matched.
func (r *LocationRepository) UpdateLocation(ctx context.Context, loc *models.Location) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE locations
		SET title = ?, description = ?, latitude = ?, longitude = ?, category = ?, photo_url = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, loc.Title, loc.Description, loc.Latitude, loc.Longitude, loc.Category, loc.PhotoURL, time.Now().UTC(), loc.ID, loc.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to update location: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteLocation removes an owned bookmark. Returns false when no row matched.
func (r *LocationRepository) DeleteLocation(ctx context.Context, id, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM locations WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete location: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}
