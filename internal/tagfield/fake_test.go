package tagfield

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/tagger/internal/models"
	"github.com/joescharf/tagger/internal/store"
)

type saveCall struct {
	fieldID, sourceID int64
	tagIDs            []int64
}

// fakeStore is an in-memory Store that records every call.
type fakeStore struct {
	nextID    int64
	groups    map[int64]*models.TagGroup
	tags      []*models.Tag
	relations map[[2]int64][]int64

	getCalls    int
	findCalls   int
	createCalls []string
	saves       []saveCall

	rejectNames map[string]bool
	createErr   error
	getErr      error
	findErr     error
	saveErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:      100,
		groups:      map[int64]*models.TagGroup{1: {ID: 1, Name: "Topics", Handle: "topics"}},
		relations:   map[[2]int64][]int64{},
		rejectNames: map[string]bool{},
	}
}

func (f *fakeStore) addTag(groupID int64, name string) *models.Tag {
	f.nextID++
	t := &models.Tag{ID: f.nextID, GroupID: groupID, Name: name}
	f.tags = append(f.tags, t)
	return t
}

// putTags adds tags with fixed IDs to groupID.
func (f *fakeStore) putTags(groupID int64, ids ...int64) {
	for _, id := range ids {
		f.tags = append(f.tags, &models.Tag{ID: id, GroupID: groupID, Name: fmt.Sprintf("tag-%d", id)})
	}
}

func (f *fakeStore) GetTag(_ context.Context, id int64) (*models.Tag, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, t := range f.tags {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("tag %d: %w", id, store.ErrNotFound)
}

func (f *fakeStore) FindTagsByName(_ context.Context, groupID int64, name string) ([]*models.Tag, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []*models.Tag
	for _, t := range f.tags {
		if t.GroupID == groupID && strings.EqualFold(t.Name, name) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTag(_ context.Context, tag *models.Tag) error {
	f.createCalls = append(f.createCalls, tag.Name)
	if f.createErr != nil {
		return f.createErr
	}
	if f.rejectNames[tag.Name] {
		return &store.ValidationError{Field: "name", Message: "rejected"}
	}
	created := f.addTag(tag.GroupID, tag.Name)
	tag.ID = created.ID
	return nil
}

func (f *fakeStore) SaveRelations(_ context.Context, fieldID, sourceID int64, tagIDs []int64) error {
	f.saves = append(f.saves, saveCall{fieldID: fieldID, sourceID: sourceID, tagIDs: tagIDs})
	if f.saveErr != nil {
		return f.saveErr
	}
	f.relations[[2]int64{fieldID, sourceID}] = append([]int64(nil), tagIDs...)
	return nil
}

func (f *fakeStore) GetTagGroup(_ context.Context, id int64) (*models.TagGroup, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, fmt.Errorf("tag group %d: %w", id, store.ErrNotFound)
	}
	return g, nil
}

func (f *fakeStore) GetRelatedTags(_ context.Context, fieldID, sourceID int64) ([]*models.Tag, error) {
	var out []*models.Tag
	for _, id := range f.relations[[2]int64{fieldID, sourceID}] {
		for _, t := range f.tags {
			if t.ID == id {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

var errDiskFull = errors.New("disk full")
