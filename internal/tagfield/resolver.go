package tagfield

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joescharf/tagger/internal/models"
	"github.com/joescharf/tagger/internal/store"
)

// TagFinder looks up tags by name within a group. When several tags match,
// the first one in the returned slice wins.
type TagFinder interface {
	FindTagsByName(ctx context.Context, groupID int64, name string) ([]*models.Tag, error)
}

// TagGetter loads a tag by ID. A missing tag wraps store.ErrNotFound.
type TagGetter interface {
	GetTag(ctx context.Context, id int64) (*models.Tag, error)
}

// TagCreator persists a new tag and fills in its ID. A rejected tag is
// reported as *store.ValidationError.
type TagCreator interface {
	CreateTag(ctx context.Context, tag *models.Tag) error
}

// TagStore is what the Resolver needs from the tag store.
type TagStore interface {
	TagGetter
	TagFinder
	TagCreator
}

// Resolver turns raw tag field values into tag IDs.
type Resolver struct {
	tags   TagStore
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger uses slog.Default().
func NewResolver(tags TagStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tags: tags, logger: logger}
}

// Resolve maps raw values to tag IDs in groupID. Numeric values are kept
// when they name a tag in groupID. "new:<name>" values resolve to the first existing tag with that
// name, or to a newly created one. A value that cannot be resolved, including
// one whose tag the store refuses to create, is logged and left out. Only
// storage failures are returned as errors. The result keeps input order and
// holds each ID once.
func (r *Resolver) Resolve(ctx context.Context, groupID int64, raw []string) ([]int64, error) {
	ids := []int64{}
	if len(raw) == 0 {
		return ids, nil
	}

	seen := make(map[int64]bool)
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, ref := range ParseReferences(raw) {
		switch ref.Kind {
		case Existing:
			ok, err := r.checkExisting(ctx, groupID, ref.ID)
			if err != nil {
				return nil, err
			}
			if ok {
				add(ref.ID)
			}
		case Pending:
			id, ok, err := r.resolvePending(ctx, groupID, ref.Name)
			if err != nil {
				return nil, err
			}
			if ok {
				add(id)
			}
		default:
			r.logger.Warn("ignoring unrecognized tag value", "group_id", groupID, "value", ref.Raw)
		}
	}
	return ids, nil
}

// checkExisting reports whether id names a tag in groupID. Stale IDs and tags
// from other groups are logged and left out.
func (r *Resolver) checkExisting(ctx context.Context, groupID, id int64) (bool, error) {
	tag, err := r.tags.GetTag(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("ignoring unknown tag", "group_id", groupID, "tag_id", id)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get tag %d: %w", id, err)
	}
	if tag.GroupID != groupID {
		r.logger.Warn("ignoring tag from another group", "group_id", groupID, "tag_id", id, "tag_group_id", tag.GroupID)
		return false, nil
	}
	return true, nil
}

func (r *Resolver) resolvePending(ctx context.Context, groupID int64, name string) (int64, bool, error) {
	found, err := r.tags.FindTagsByName(ctx, groupID, name)
	if err != nil {
		return 0, false, fmt.Errorf("find tag %q: %w", name, err)
	}
	if len(found) > 0 {
		return found[0].ID, true, nil
	}

	tag := &models.Tag{GroupID: groupID, Name: name}
	if err := r.tags.CreateTag(ctx, tag); err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			r.logger.Warn("could not create tag", "group_id", groupID, "name", name, "error", err)
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("create tag %q: %w", name, err)
	}
	r.logger.Debug("created tag", "group_id", groupID, "name", tag.Name, "id", tag.ID)
	return tag.ID, true, nil
}
