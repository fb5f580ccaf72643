package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tagger/internal/models"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newSQLiteStoreFromDB(db), mock
}

func TestSaveRelations_RollsBackOnInsertFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM relations").
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO relations").
		WithArgs(1, 2, 7, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO relations").
		WithArgs(1, 2, 8, 1).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := s.SaveRelations(context.Background(), 1, 2, []int64{7, 8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert relation 8")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRelations_ForeignKeyIsValidationError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM relations").
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO relations").
		WithArgs(1, 2, 999, 0).
		WillReturnError(errors.New("constraint failed: FOREIGN KEY constraint failed (787)"))
	mock.ExpectRollback()

	err := s.SaveRelations(context.Background(), 1, 2, []int64{999})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotContains(t, err.Error(), "787")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRelations_CommitsOnce(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM relations").
		WithArgs(4, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO relations").
		WithArgs(4, 5, 10, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRelations(context.Background(), 4, 5, []int64{10, 10}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTagsByName_PropagatesQueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, group_id, name, created_at FROM tags").
		WithArgs(3, "go").
		WillReturnError(errors.New("database is locked"))

	_, err := s.FindTagsByName(context.Background(), 3, " go ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find tags")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTagsByName_KeepsStoreOrdering(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "group_id", "name", "created_at"}).
		AddRow(12, 3, "Go", now).
		AddRow(4, 3, "go", now)
	mock.ExpectQuery("SELECT id, group_id, name, created_at FROM tags").
		WithArgs(3, "go").
		WillReturnRows(rows)

	tags, err := s.FindTagsByName(context.Background(), 3, "go")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, int64(12), tags[0].ID)
	assert.Equal(t, int64(4), tags[1].ID)
}

func TestCreateTag_StorageFailureIsNotValidation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, handle, created_at FROM tag_groups").
		WithArgs(3).
		WillReturnError(errors.New("connection reset"))

	err := s.CreateTag(context.Background(), &models.Tag{GroupID: 3, Name: "go"})
	require.Error(t, err)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
	assert.NoError(t, mock.ExpectationsWereMet())
}
