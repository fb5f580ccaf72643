package tagfield

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/tagger/internal/models"
	"github.com/joescharf/tagger/internal/store"
)

// ErrInvalidSource is returned when a field has no usable tag group.
var ErrInvalidSource = errors.New("field is not set to a valid source")

// RelationSaver replaces the relation set of one field on one entry.
type RelationSaver interface {
	SaveRelations(ctx context.Context, fieldID, sourceID int64, tagIDs []int64) error
}

// Store is the subset of store.Store a FieldType works against.
type Store interface {
	TagStore
	RelationSaver
	GetTagGroup(ctx context.Context, id int64) (*models.TagGroup, error)
	GetRelatedTags(ctx context.Context, fieldID, sourceID int64) ([]*models.Tag, error)
}

// FieldType binds a tag field's configuration to the store.
// The tag group is parsed from the field source once, at construction.
type FieldType struct {
	field    *models.Field
	groupID  int64
	hasGroup bool
	store    Store
	resolver *Resolver
	logger   *slog.Logger
}

// NewFieldType creates a FieldType for field. A nil logger uses slog.Default().
func NewFieldType(field *models.Field, s Store, logger *slog.Logger) *FieldType {
	if logger == nil {
		logger = slog.Default()
	}
	groupID, ok := ParseSource(field.Source)
	return &FieldType{
		field:    field,
		groupID:  groupID,
		hasGroup: ok,
		store:    s,
		resolver: NewResolver(s, logger),
		logger:   logger.With("field", field.Handle),
	}
}

// Field returns the underlying field model.
func (f *FieldType) Field() *models.Field { return f.field }

// GroupID returns the configured tag group, or false when the field source
// does not name one.
func (f *FieldType) GroupID() (int64, bool) { return f.groupID, f.hasGroup }

// SaveResult describes what AfterEntrySave did.
type SaveResult struct {
	Skipped bool
	TagIDs  []int64
}

// AfterEntrySave resolves the raw values submitted for this field and
// replaces the entry's relation set with the result.
//
// Nothing is written when the field has no tag group, or when raw is nil
// (the field was not part of the submission). A non-nil empty raw clears
// the set.
func (f *FieldType) AfterEntrySave(ctx context.Context, entryID int64, raw []string) (*SaveResult, error) {
	if !f.hasGroup {
		f.logger.Debug("skipping relation save, field has no tag group", "source", f.field.Source)
		return &SaveResult{Skipped: true}, nil
	}
	if raw == nil {
		return &SaveResult{Skipped: true}, nil
	}

	ids, err := f.resolver.Resolve(ctx, f.groupID, raw)
	if err != nil {
		return nil, fmt.Errorf("resolve tags: %w", err)
	}

	if err := f.store.SaveRelations(ctx, f.field.ID, entryID, ids); err != nil {
		return nil, fmt.Errorf("save relations: %w", err)
	}
	f.logger.Debug("saved relations", "entry_id", entryID, "tags", len(ids))
	return &SaveResult{TagIDs: ids}, nil
}

// Input holds everything a client needs to render this field for an entry.
type Input struct {
	Name          string           `json:"name"`
	ID            string           `json:"id"`
	TagGroupID    int64            `json:"tag_group_id"`
	TagGroup      *models.TagGroup `json:"tag_group"`
	SourceEntryID int64            `json:"source_entry_id"`
	Tags          []*models.Tag    `json:"tags"`
}

// Input loads the input state for entryID. An entryID of 0 stands for an
// entry that has not been saved yet and has no tags.
func (f *FieldType) Input(ctx context.Context, entryID int64) (*Input, error) {
	if !f.hasGroup {
		return nil, ErrInvalidSource
	}

	group, err := f.store.GetTagGroup(ctx, f.groupID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidSource
	}
	if err != nil {
		return nil, fmt.Errorf("load tag group: %w", err)
	}

	in := &Input{
		Name:          f.field.Handle,
		ID:            FormatInputID(f.field.Handle),
		TagGroupID:    f.groupID,
		TagGroup:      group,
		SourceEntryID: entryID,
		Tags:          []*models.Tag{},
	}
	if entryID == 0 {
		return in, nil
	}

	tags, err := f.store.GetRelatedTags(ctx, f.field.ID, entryID)
	if err != nil {
		return nil, fmt.Errorf("load related tags: %w", err)
	}
	if tags != nil {
		in.Tags = tags
	}
	return in, nil
}

// FormatInputID turns an input name such as "fields[topics]" into a value
// usable as an element id, e.g. "fields-topics".
func FormatInputID(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
