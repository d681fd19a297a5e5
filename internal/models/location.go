package models

import "time"

// Location represents a bookmarked place owned by a user
type Location struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	Latitude    float64
	Longitude   float64
	Category    string
	PhotoURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
