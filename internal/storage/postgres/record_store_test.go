package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

func newMockStore(t *testing.T, policy jobs.CollisionPolicy) (*RecordStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewRecordStoreWithPool(mock, Config{Table: "jobs", Policy: policy}, nil)
	require.NoError(t, err)
	return store, mock
}

func TestEnsureSchemaCreatesTable(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t, jobs.CollisionOverwrite)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS jobs").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertInsertsNewRecord(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t, jobs.CollisionOverwrite)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("Acme - Engineer").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("Acme - Engineer", "Acme", "Engineer", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := store.UpsertByKey(context.Background(), []any{
		map[string]any{"primary_key": "Acme - Engineer", "company": "Acme", "title": "Engineer"},
	})
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Inserted: 1}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUpdatesExistingRecord(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t, jobs.CollisionOverwrite)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("UPDATE jobs SET").
		WithArgs("k", "", "", "processed", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	res, err := store.UpsertByKey(context.Background(), []any{
		jobs.Record{"primary_key": "k", "source": "processed"},
	})
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Updated: 1}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertKeepFirstLeavesRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t, jobs.CollisionKeepFirst)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	res, err := store.UpsertByKey(context.Background(), []any{map[string]any{"primary_key": "k"}})
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Unchanged: 1}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertIsolatesFailures(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t, jobs.CollisionOverwrite)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("bad").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("good").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("good", "", "", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := store.UpsertByKey(context.Background(), []any{
		map[string]any{"primary_key": "bad"},
		"not a record",
		map[string]any{"primary_key": "good"},
	})
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Inserted: 1, Skipped: 1, Failed: 1}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRecordStoreWithPoolValidates(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStoreWithPool(nil, Config{}, nil)
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRecordStoreWithPool(mock, Config{Table: "jobs;drop"}, nil)
	require.Error(t, err)
}
