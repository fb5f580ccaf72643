package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/joescharf/tagger/internal/models"
)

// ErrNotFound is wrapped by every lookup that finds no row.
var ErrNotFound = errors.New("not found")

// ValidationError reports a record the store refused to save.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Store defines the persistence interface for tagger.
type Store interface {
	// Tag groups
	CreateTagGroup(ctx context.Context, g *models.TagGroup) error
	GetTagGroup(ctx context.Context, id int64) (*models.TagGroup, error)
	ListTagGroups(ctx context.Context) ([]*models.TagGroup, error)
	DeleteTagGroup(ctx context.Context, id int64) error

	// Tags
	CreateTag(ctx context.Context, tag *models.Tag) error
	GetTag(ctx context.Context, id int64) (*models.Tag, error)
	ListTags(ctx context.Context, groupID int64) ([]*models.Tag, error)
	FindTagsByName(ctx context.Context, groupID int64, name string) ([]*models.Tag, error)
	DeleteTag(ctx context.Context, id int64) error

	// Fields
	CreateField(ctx context.Context, f *models.Field) error
	GetField(ctx context.Context, id int64) (*models.Field, error)
	GetFieldByHandle(ctx context.Context, handle string) (*models.Field, error)
	ListFields(ctx context.Context) ([]*models.Field, error)
	DeleteField(ctx context.Context, id int64) error

	// Entries
	CreateEntry(ctx context.Context, e *models.Entry) error
	GetEntry(ctx context.Context, id int64) (*models.Entry, error)
	ListEntries(ctx context.Context) ([]*models.Entry, error)
	TouchEntry(ctx context.Context, id int64) error
	DeleteEntry(ctx context.Context, id int64) error

	// Relations
	SaveRelations(ctx context.Context, fieldID, sourceID int64, tagIDs []int64) error
	GetRelatedTags(ctx context.Context, fieldID, sourceID int64) ([]*models.Tag, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
