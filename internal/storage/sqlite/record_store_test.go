package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

func openStore(t *testing.T, policy jobs.CollisionPolicy) *RecordStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "jobs.db")
	store, err := Open(context.Background(), Config{Path: path, Table: "jobs", Policy: policy}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	t.Parallel()

	store := openStore(t, jobs.CollisionOverwrite)
	require.NoError(t, store.EnsureSchema(context.Background()))
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, jobs.CollisionOverwrite)

	first := map[string]any{"primary_key": "Acme - Engineer", "company": "Acme", "title": "Engineer", "location": "Remote"}
	res, err := store.UpsertByKey(ctx, []any{first})
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Inserted: 1}, res)

	second := map[string]any{"primary_key": "Acme - Engineer", "company": "Acme", "title": "Engineer", "location": "Austin"}
	res, err = store.UpsertByKey(ctx, []any{second})
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Updated: 1}, res)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	row, ok, err := store.Get(ctx, "Acme - Engineer")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Acme", row.Company)
	assert.JSONEq(t, `{"primary_key":"Acme - Engineer","company":"Acme","title":"Engineer","location":"Austin"}`, row.Data)
}

func TestUpsertKeepFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, jobs.CollisionKeepFirst)

	_, err := store.UpsertByKey(ctx, []any{map[string]any{"primary_key": "k", "v": "first"}})
	require.NoError(t, err)
	res, err := store.UpsertByKey(ctx, []any{map[string]any{"primary_key": "k", "v": "second"}})
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Unchanged: 1}, res)

	row, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"primary_key":"k","v":"first"}`, row.Data)
}

func TestUpsertSkipsUnkeyedItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, jobs.CollisionOverwrite)

	res, err := store.UpsertByKey(ctx, []any{"junk", map[string]any{"company": "Acme"}, map[string]any{"primary_key": " - "}})
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Inserted: 1, Skipped: 2}, res)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertIsolatesUnencodableRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t, jobs.CollisionOverwrite)

	res, err := store.UpsertByKey(ctx, []any{
		map[string]any{"primary_key": "bad", "c": make(chan int)},
		map[string]any{"primary_key": "good"},
	})
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Inserted: 1, Failed: 1}, res)
}

func TestUpsertCanceledContext(t *testing.T) {
	t.Parallel()

	store := openStore(t, jobs.CollisionOverwrite)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.UpsertByKey(ctx, []any{map[string]any{"primary_key": "k"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadTable(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "x.db"), Table: "bad-name"}, nil)
	assert.Error(t, err)
	_, err = Open(context.Background(), Config{}, nil)
	assert.Error(t, err)
}
