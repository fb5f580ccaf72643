package models

import "time"

// TagGroup is a named scope that partitions tags, e.g. by vocabulary.
type TagGroup struct {
	ID        int64
	Name      string
	Handle    string
	CreatedAt time.Time
}

// Tag represents a label belonging to exactly one tag group.
type Tag struct {
	ID        int64
	GroupID   int64
	Name      string
	CreatedAt time.Time
}
