package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chroma-cms/agent-api/internal/models"
)

func newSnapshotRepoMock(t *testing.T) (*SnapshotRepository, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewSnapshotRepository(sqlxDB), sqlxDB, mock
}

func TestSnapshotRepositoryInsertTx(t *testing.T) {
	repo, db, mock := newSnapshotRepoMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO agent_option_snapshots`)).
		WithArgs(models.SnapshotTargetOption, "blogname", sqlmock.AnyArg(),
			sqlmock.AnyArg(), models.ScopeWriteTheme, int64(4), "req-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(31), now))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	snap := &models.Snapshot{
		TargetType: models.SnapshotTargetOption,
		TargetKey:  "blogname",
		OldValue:   models.JSONValue{V: "Old Site", Valid: true},
		NewValue:   models.JSONValue{V: "New Site", Valid: true},
		Scope:      models.ScopeWriteTheme,
		KeyID:      4,
		RequestID:  "req-1",
	}
	require.NoError(t, repo.InsertTx(context.Background(), tx, snap))
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(31), snap.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryGetByID(t *testing.T) {
	repo, _, mock := newSnapshotRepoMock(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "target_type", "target_key", "old_value", "new_value",
		"scope", "key_id", "request_id", "restored_at", "created_at",
	}).AddRow(int64(31), models.SnapshotTargetThemeMod, "custom_logo",
		[]byte(`123`), []byte(`456`), models.ScopeWriteTheme, int64(4), "req-1", nil, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(int64(31)).
		WillReturnRows(rows)

	snap, err := repo.GetByID(context.Background(), 31)
	require.NoError(t, err)
	assert.Equal(t, "custom_logo", snap.TargetKey)
	assert.Equal(t, float64(123), snap.OldValue.V)
	assert.True(t, snap.OldValue.Valid)
}

func TestSnapshotRepositoryGetByIDNotFound(t *testing.T) {
	repo, _, mock := newSnapshotRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotRepositoryMarkRestoredTx(t *testing.T) {
	repo, db, mock := newSnapshotRepoMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE agent_option_snapshots SET restored_at`)).
		WithArgs(now, int64(31)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.MarkRestoredTx(context.Background(), tx, 31, now))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
