package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/tagger/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes saves coming from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(p), err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newSQLiteStoreFromDB wraps an already opened handle.
func newSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation reports whether err came from a FOREIGN KEY constraint.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// --- Tag groups ---

func (s *SQLiteStore) CreateTagGroup(ctx context.Context, g *models.TagGroup) error {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return &ValidationError{Field: "name", Message: "cannot be blank"}
	}
	if g.Handle == "" {
		g.Handle = handleize(g.Name)
	}
	g.CreatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tag_groups (name, handle, created_at) VALUES (?, ?, ?)`,
		g.Name, g.Handle, g.CreatedAt,
	)
	if isUniqueViolation(err) {
		return &ValidationError{Field: "handle", Message: fmt.Sprintf("%q has already been taken", g.Handle)}
	}
	if err != nil {
		return fmt.Errorf("create tag group: %w", err)
	}
	g.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create tag group: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTagGroup(ctx context.Context, id int64) (*models.TagGroup, error) {
	g := &models.TagGroup{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, handle, created_at FROM tag_groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &g.Handle, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tag group %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tag group: %w", err)
	}
	return g, nil
}

func (s *SQLiteStore) ListTagGroups(ctx context.Context) ([]*models.TagGroup, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, handle, created_at FROM tag_groups ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tag groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []*models.TagGroup
	for rows.Next() {
		g := &models.TagGroup{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Handle, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLiteStore) DeleteTagGroup(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tag_groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete tag group: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("tag group %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- Tags ---

// CreateTag validates and inserts a tag. Validation failures are returned
// as *ValidationError so callers can tell them apart from storage failures.
func (s *SQLiteStore) CreateTag(ctx context.Context, tag *models.Tag) error {
	tag.Name = strings.TrimSpace(tag.Name)
	if tag.Name == "" {
		return &ValidationError{Field: "name", Message: "cannot be blank"}
	}

	if _, err := s.GetTagGroup(ctx, tag.GroupID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ValidationError{Field: "group", Message: fmt.Sprintf("tag group %d does not exist", tag.GroupID)}
		}
		return fmt.Errorf("create tag: %w", err)
	}

	tag.CreatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (group_id, name, created_at) VALUES (?, ?, ?)`,
		tag.GroupID, tag.Name, tag.CreatedAt,
	)
	if isUniqueViolation(err) {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("%q has already been taken", tag.Name)}
	}
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	tag.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTag(ctx context.Context, id int64) (*models.Tag, error) {
	t := &models.Tag{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, name, created_at FROM tags WHERE id = ?`, id,
	).Scan(&t.ID, &t.GroupID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tag %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) ListTags(ctx context.Context, groupID int64) ([]*models.Tag, error) {
	return s.queryTags(ctx, "list tags",
		`SELECT id, group_id, name, created_at FROM tags WHERE group_id = ? ORDER BY name`, groupID)
}

// FindTagsByName returns the tags in a group whose name matches exactly,
// ignoring case, oldest first.
func (s *SQLiteStore) FindTagsByName(ctx context.Context, groupID int64, name string) ([]*models.Tag, error) {
	return s.queryTags(ctx, "find tags",
		`SELECT id, group_id, name, created_at FROM tags
		WHERE group_id = ? AND name = ? COLLATE NOCASE ORDER BY id`,
		groupID, strings.TrimSpace(name))
}

func (s *SQLiteStore) DeleteTag(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("tag %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) queryTags(ctx context.Context, op, query string, args ...any) ([]*models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var tags []*models.Tag
	for rows.Next() {
		t := &models.Tag{}
		if err := rows.Scan(&t.ID, &t.GroupID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// --- Fields ---

func (s *SQLiteStore) CreateField(ctx context.Context, f *models.Field) error {
	f.Handle = strings.TrimSpace(f.Handle)
	if f.Handle == "" {
		return &ValidationError{Field: "handle", Message: "cannot be blank"}
	}
	if f.Name == "" {
		f.Name = f.Handle
	}
	f.CreatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO fields (handle, name, source, created_at) VALUES (?, ?, ?, ?)`,
		f.Handle, f.Name, f.Source, f.CreatedAt,
	)
	if isUniqueViolation(err) {
		return &ValidationError{Field: "handle", Message: fmt.Sprintf("%q has already been taken", f.Handle)}
	}
	if err != nil {
		return fmt.Errorf("create field: %w", err)
	}
	f.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create field: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetField(ctx context.Context, id int64) (*models.Field, error) {
	f := &models.Field{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, handle, name, source, created_at FROM fields WHERE id = ?`, id,
	).Scan(&f.ID, &f.Handle, &f.Name, &f.Source, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("field %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get field: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) GetFieldByHandle(ctx context.Context, handle string) (*models.Field, error) {
	f := &models.Field{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, handle, name, source, created_at FROM fields WHERE handle = ?`, handle,
	).Scan(&f.ID, &f.Handle, &f.Name, &f.Source, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("field %q: %w", handle, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get field by handle: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) ListFields(ctx context.Context) ([]*models.Field, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, handle, name, source, created_at FROM fields ORDER BY handle")
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fields []*models.Field
	for rows.Next() {
		f := &models.Field{}
		if err := rows.Scan(&f.ID, &f.Handle, &f.Name, &f.Source, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (s *SQLiteStore) DeleteField(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM fields WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("field %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- Entries ---

func (s *SQLiteStore) CreateEntry(ctx context.Context, e *models.Entry) error {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return &ValidationError{Field: "title", Message: "cannot be blank"}
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (title, created_at, updated_at) VALUES (?, ?, ?)`,
		e.Title, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	e.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetEntry(ctx context.Context, id int64) (*models.Entry, error) {
	e := &models.Entry{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM entries WHERE id = ?`, id,
	).Scan(&e.ID, &e.Title, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListEntries(ctx context.Context) ([]*models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, created_at, updated_at FROM entries ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.Entry
	for rows.Next() {
		e := &models.Entry{}
		if err := rows.Scan(&e.ID, &e.Title, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) TouchEntry(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "UPDATE entries SET updated_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch entry: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteEntry(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- Relations ---

// SaveRelations replaces the full relation set for one field on one entry.
// The delete and inserts share a transaction, so readers never see a
// partially written set. A tag, field, or entry that no longer exists is
// reported as *ValidationError.
func (s *SQLiteStore) SaveRelations(ctx context.Context, fieldID, sourceID int64, tagIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save relations: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM relations WHERE field_id = ? AND source_id = ?", fieldID, sourceID); err != nil {
		return fmt.Errorf("clear relations: %w", err)
	}

	seen := make(map[int64]bool, len(tagIDs))
	order := 0
	for _, id := range tagIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO relations (field_id, source_id, target_id, sort_order) VALUES (?, ?, ?, ?)",
			fieldID, sourceID, id, order); err != nil {
			if isForeignKeyViolation(err) {
				return &ValidationError{Field: "tags", Message: fmt.Sprintf("tag %d cannot be related to entry %d", id, sourceID)}
			}
			return fmt.Errorf("insert relation %d: %w", id, err)
		}
		order++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save relations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRelatedTags(ctx context.Context, fieldID, sourceID int64) ([]*models.Tag, error) {
	return s.queryTags(ctx, "get related tags",
		`SELECT t.id, t.group_id, t.name, t.created_at FROM tags t
		JOIN relations r ON t.id = r.target_id
		WHERE r.field_id = ? AND r.source_id = ? ORDER BY r.sort_order`,
		fieldID, sourceID)
}

// handleize derives a lowercase, dash-separated handle from a display name.
func handleize(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
