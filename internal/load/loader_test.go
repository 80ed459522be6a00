package load

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/jobhunter/internal/hash/sha256"
	"github.com/JakeFAU/jobhunter/internal/jobs"
	"github.com/JakeFAU/jobhunter/internal/storage"
	"github.com/JakeFAU/jobhunter/internal/storage/memory"
	"github.com/JakeFAU/jobhunter/internal/storage/sqlite"
)

type recordingObserver struct {
	result     jobs.UpsertResult
	collisions int
}

func (o *recordingObserver) ObserveUpsert(result jobs.UpsertResult, collisions int) {
	o.result, o.collisions = result, collisions
}

func TestRunKeysAndUpserts(t *testing.T) {
	t.Parallel()

	folders := memory.NewFolderStore(sha256.New())
	folders.Put(jobs.Processed, "batch.json", []byte(`[
		{"company":"Acme","title":"Engineer"},
		{"title":"Designer"},
		"garbage"
	]`))
	records := memory.NewRecordStore(jobs.CollisionOverwrite)
	obs := &recordingObserver{}

	summary, err := New(folders, records, obs, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Read)
	assert.Equal(t, jobs.KeyStats{Keyed: 2, Malformed: 1}, summary.Keys)
	assert.Equal(t, jobs.UpsertResult{Inserted: 2, Skipped: 1}, summary.Upsert)
	assert.Equal(t, summary.Upsert, obs.result)
	assert.True(t, records.Ready())

	got, ok := records.Get("Acme - Engineer")
	require.True(t, ok)
	assert.Equal(t, "Acme", got["company"])
	_, ok = records.Get(" - Designer")
	assert.True(t, ok)
	assert.False(t, summary.TotalFailure())
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	folders := memory.NewFolderStore(sha256.New())
	require.NoError(t, folders.EnsureFolders(ctx))
	_, err := folders.Save(ctx, jobs.Record{"company": "Acme", "title": "Engineer"}, "processed", jobs.Processed)
	require.NoError(t, err)

	store, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "jobs.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	loader := New(folders, store, nil, nil)

	first, err := loader.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Upsert.Inserted)

	second, err := loader.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, jobs.UpsertResult{Updated: 1}, second.Upsert)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunCountsCollisions(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	folders := memory.NewFolderStore(sha256.New())
	folders.Put(jobs.Processed, "a.json", []byte(`[
		{"company":"Acme","title":"Engineer","location":"Remote"},
		{"company":"Acme","title":"Engineer","location":"Austin"}
	]`))
	records := memory.NewRecordStore(jobs.CollisionKeepFirst)

	summary, err := New(folders, records, nil, zap.New(core)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Collisions)
	assert.Equal(t, jobs.UpsertResult{Inserted: 1, Unchanged: 1}, summary.Upsert)
	assert.Equal(t, 1, logs.FilterMessage("duplicate primary key in batch").Len())

	got, _ := records.Get("Acme - Engineer")
	assert.Equal(t, "Remote", got["location"])
}

type failingSchemaStore struct {
	*memory.RecordStore
}

func (failingSchemaStore) EnsureSchema(context.Context) error {
	return errors.New("permission denied for schema public")
}

func TestRunAbortsOnSchemaError(t *testing.T) {
	t.Parallel()

	folders := memory.NewFolderStore(sha256.New())
	folders.Put(jobs.Processed, "a.json", []byte(`{"company":"Acme","title":"Engineer"}`))
	records := failingSchemaStore{memory.NewRecordStore("")}

	_, err := New(folders, records, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, records.Len())
}

func TestRunAbortsOnReadError(t *testing.T) {
	t.Parallel()

	folders := &storage.MockFolderStore{}
	folders.On("LoadAll", mock.Anything, jobs.Processed).Return(nil, errors.New("bucket not found"))
	records := memory.NewRecordStore("")

	_, err := New(folders, records, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.False(t, records.Ready())
}

func TestSummaryTotalFailure(t *testing.T) {
	t.Parallel()

	assert.False(t, Summary{}.TotalFailure())
	assert.True(t, Summary{Read: 2, Upsert: jobs.UpsertResult{Failed: 2}}.TotalFailure())
	assert.False(t, Summary{Read: 2, Upsert: jobs.UpsertResult{Failed: 1, Inserted: 1}}.TotalFailure())
}
