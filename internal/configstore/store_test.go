package configstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return New(gdb, time.Minute), mock
}

// TestRefresh_PopulatesSnapshotAndBumpsGeneration grounds the Config Store's
// read path against a scripted driver instead of a real Postgres instance,
// matching how the rest of this codebase family exercises gorm query code.
func TestRefresh_PopulatesSnapshotAndBumpsGeneration(t *testing.T) {
	store, mock := newMockStore(t)
	require.Nil(t, store.Current())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "upstreams"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "match_path", "priority", "models", "channel_type"}).
			AddRow("up-1", "/v1/chat/completions", 0, "*", "OpenAIChat"))
	mock.ExpectQuery(`SELECT \* FROM "groups"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "match_path", "strategy"}).
			AddRow("grp-1", "/v1/embeddings", "RoundRobin"))
	mock.ExpectQuery(`SELECT \* FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "upstream_id", "weight"}).
			AddRow("grp-1", "up-1", 1))
	mock.ExpectQuery(`SELECT \* FROM "api_tokens"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "user_id", "status"}).
			AddRow(1, "tok-abc", 42, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Refresh(context.Background()))

	snap := store.Current()
	require.NotNil(t, snap)
	assert.EqualValues(t, 1, snap.Generation())
	assert.Contains(t, snap.Upstreams, "up-1")
	assert.Contains(t, snap.Groups, "grp-1")
	assert.Contains(t, snap.Tokens, "tok-abc")
	assert.Len(t, snap.Members("grp-1"), 1)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRefresh_FailureKeepsLastGoodSnapshot exercises spec §7's "continues
// serving from the last good snapshot" guarantee: a second, failing Refresh
// must not clobber the first successful one.
func TestRefresh_FailureKeepsLastGoodSnapshot(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "upstreams"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "match_path", "priority", "models", "channel_type"}).
			AddRow("up-1", "/v1/chat/completions", 0, "*", "OpenAIChat"))
	mock.ExpectQuery(`SELECT \* FROM "groups"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "match_path", "strategy"}))
	mock.ExpectQuery(`SELECT \* FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "upstream_id", "weight"}))
	mock.ExpectQuery(`SELECT \* FROM "api_tokens"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "user_id", "status"}))
	mock.ExpectCommit()
	require.NoError(t, store.Refresh(context.Background()))
	first := store.Current()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "upstreams"`).WillReturnError(assert.AnError)
	mock.ExpectRollback()
	require.Error(t, store.Refresh(context.Background()))

	assert.Same(t, first, store.Current())
}
