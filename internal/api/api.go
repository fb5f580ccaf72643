package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/tagger/internal/models"
	"github.com/joescharf/tagger/internal/requests"
	"github.com/joescharf/tagger/internal/store"
	"github.com/joescharf/tagger/internal/tagfield"
)

// Server provides the REST API handlers.
type Server struct {
	store  store.Store
	logger *slog.Logger
}

// NewServer creates a new API server. A nil logger uses slog.Default().
func NewServer(s store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/groups", s.listGroups)
	mux.HandleFunc("POST /api/v1/groups", s.createGroup)
	mux.HandleFunc("GET /api/v1/groups/{id}", s.getGroup)
	mux.HandleFunc("DELETE /api/v1/groups/{id}", s.deleteGroup)
	mux.HandleFunc("GET /api/v1/groups/{id}/tags", s.listGroupTags)
	mux.HandleFunc("POST /api/v1/groups/{id}/tags", s.createGroupTag)

	mux.HandleFunc("GET /api/v1/fields", s.listFields)
	mux.HandleFunc("POST /api/v1/fields", s.createField)
	mux.HandleFunc("GET /api/v1/fields/{id}", s.getField)

	mux.HandleFunc("GET /api/v1/entries", s.listEntries)
	mux.HandleFunc("POST /api/v1/entries", s.createEntry)
	mux.HandleFunc("GET /api/v1/entries/{id}", s.getEntry)
	mux.HandleFunc("PUT /api/v1/entries/{id}/fields/{field}/tags", s.saveEntryTags)
	mux.HandleFunc("GET /api/v1/entries/{id}/fields/{field}/input", s.entryFieldInput)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error     string `json:"error"`
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id"`
}

// writeError translates err into a requests.Error and writes it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqErr := classify(err)
	id := ulid.Make().String()
	if reqErr.Type() == requests.TypeInternal {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", id, "error", err)
	}
	writeJSON(w, reqErr.StatusCode(), errorBody{
		Error:     reqErr.Error(),
		Type:      reqErr.Type(),
		Data:      reqErr.Data(),
		RequestID: id,
	})
}

// classify maps store and field errors onto request error types.
func classify(err error) *requests.Error {
	var reqErr *requests.Error
	if errors.As(err, &reqErr) {
		return reqErr
	}
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		return requests.New(verr.Error(), requests.TypeValidation, map[string]string{"field": verr.Field})
	case errors.Is(err, store.ErrNotFound):
		return requests.New(err.Error(), requests.TypeNotFound, nil)
	case errors.Is(err, tagfield.ErrInvalidSource):
		return requests.New(err.Error(), requests.TypeUnconfigured, nil)
	}
	return requests.As(err)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return requests.New("invalid JSON body", requests.TypeInvalidJSON, err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, requests.New(fmt.Sprintf("invalid %s: %q", name, raw), requests.TypeInvalidParam, nil)
	}
	return id, nil
}

// lookupField resolves a path value that is either a field ID or a handle.
func (s *Server) lookupField(ctx context.Context, ref string) (*models.Field, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.store.GetField(ctx, id)
	}
	return s.store.GetFieldByHandle(ctx, ref)
}

// --- Groups ---

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListTagGroups(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var g models.TagGroup
	if err := decodeBody(r, &g); err != nil {
		s.writeError(w, r, err)
		return
	}
	g.ID = 0
	if err := s.store.CreateTagGroup(r.Context(), &g); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.store.GetTagGroup(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteTagGroup(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listGroupTags(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.store.GetTagGroup(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	tags, err := s.store.ListTags(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) createGroupTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	tag := &models.Tag{GroupID: id, Name: body.Name}
	if err := s.store.CreateTag(r.Context(), tag); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

// --- Fields ---

func (s *Server) listFields(w http.ResponseWriter, r *http.Request) {
	fields, err := s.store.ListFields(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) createField(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Handle  string `json:"handle"`
		Name    string `json:"name"`
		Source  string `json:"source"`
		GroupID int64  `json:"group_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	f := &models.Field{Handle: body.Handle, Name: body.Name, Source: body.Source}
	if f.Source == "" && body.GroupID > 0 {
		f.Source = tagfield.FormatSource(body.GroupID)
	}
	if err := s.store.CreateField(r.Context(), f); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) getField(w http.ResponseWriter, r *http.Request) {
	f, err := s.lookupField(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// --- Entries ---

type entryResponse struct {
	Entry  *models.Entry            `json:"entry"`
	Fields map[string][]*models.Tag `json:"fields"`
}

type saveTagsResponse struct {
	Skipped bool          `json:"skipped"`
	TagIDs  []int64       `json:"tag_ids"`
	Tags    []*models.Tag `json:"tags"`
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListEntries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// createEntry saves a new entry, then runs each submitted tag field's
// after-save step, keyed by field handle. A failed step removes the entry.
func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title  string              `json:"title"`
		Fields map[string][]string `json:"fields"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	// Resolve fields before writing anything so an unknown handle fails cleanly.
	fieldTypes := make(map[string]*tagfield.FieldType, len(body.Fields))
	for handle := range body.Fields {
		f, err := s.store.GetFieldByHandle(ctx, handle)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		fieldTypes[handle] = tagfield.NewFieldType(f, s.store, s.logger)
	}

	e := &models.Entry{Title: body.Title}
	if err := s.store.CreateEntry(ctx, e); err != nil {
		s.writeError(w, r, err)
		return
	}
	for handle, ft := range fieldTypes {
		if _, err := ft.AfterEntrySave(ctx, e.ID, body.Fields[handle]); err != nil {
			// The entry is only kept when every field saved.
			if delErr := s.store.DeleteEntry(ctx, e.ID); delErr != nil {
				s.logger.Error("could not remove entry after failed save", "entry_id", e.ID, "error", delErr)
			}
			s.writeError(w, r, err)
			return
		}
	}

	resp, err := s.buildEntryResponse(ctx, e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.buildEntryResponse(r.Context(), e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) buildEntryResponse(ctx context.Context, e *models.Entry) (*entryResponse, error) {
	fields, err := s.store.ListFields(ctx)
	if err != nil {
		return nil, err
	}
	resp := &entryResponse{Entry: e, Fields: make(map[string][]*models.Tag)}
	for _, f := range fields {
		tags, err := s.store.GetRelatedTags(ctx, f.ID, e.ID)
		if err != nil {
			return nil, err
		}
		if len(tags) > 0 {
			resp.Fields[f.Handle] = tags
		}
	}
	return resp, nil
}

func (s *Server) saveEntryTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Tags []string `json:"tags"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.store.GetEntry(ctx, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.lookupField(ctx, r.PathValue("field"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := tagfield.NewFieldType(f, s.store, s.logger).AfterEntrySave(ctx, id, body.Tags)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !res.Skipped {
		if err := s.store.TouchEntry(ctx, id); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	tags, err := s.store.GetRelatedTags(ctx, f.ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	ids := res.TagIDs
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, saveTagsResponse{Skipped: res.Skipped, TagIDs: ids, Tags: tags})
}

func (s *Server) entryFieldInput(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// An entry ID of 0 asks for the input of an unsaved entry.
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		s.writeError(w, r, requests.New(fmt.Sprintf("invalid id: %q", raw), requests.TypeInvalidParam, nil))
		return
	}
	if id > 0 {
		if _, err := s.store.GetEntry(ctx, id); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	f, err := s.lookupField(ctx, r.PathValue("field"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	in, err := tagfield.NewFieldType(f, s.store, s.logger).Input(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}
