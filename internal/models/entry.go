package models

import "time"

// Entry is a content record that owns tag relations.
type Entry struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
