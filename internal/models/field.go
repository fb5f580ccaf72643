package models

import "time"

// Field is a tag selection field attached to entries.
// Source holds the field's settings string, e.g. "taggroup:3".
type Field struct {
	ID        int64
	Handle    string
	Name      string
	Source    string
	CreatedAt time.Time
}
