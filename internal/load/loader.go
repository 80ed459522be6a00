// Package load moves processed records into the relational store.
package load

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// Observer receives the outcome of a finished load.
type Observer interface {
	ObserveUpsert(result jobs.UpsertResult, collisions int)
}

// Summary counts the outcome of one Run.
type Summary struct {
	Read       int               `json:"read"`
	Keys       jobs.KeyStats     `json:"keys"`
	Collisions int               `json:"collisions"`
	Upsert     jobs.UpsertResult `json:"upsert"`
}

// TotalFailure reports whether records were read but none reached the store.
func (s Summary) TotalFailure() bool {
	return s.Read > 0 && s.Upsert.Written() == 0
}

// Loader reads the processed folder, keys every record and upserts it.
type Loader struct {
	folders  jobs.FolderStore
	records  jobs.RecordStore
	observer Observer
	logger   *zap.Logger
}

// New builds a Loader. observer may be nil.
func New(folders jobs.FolderStore, records jobs.RecordStore, observer Observer, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{folders: folders, records: records, observer: observer, logger: logger}
}

// Run loads every processed record. Reading the folder or creating the
// schema aborts with an error; per-record failures are counted.
func (l *Loader) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	l.logger.Info("load started")

	items, err := l.folders.LoadAll(ctx, jobs.Processed)
	if err != nil {
		return summary, fmt.Errorf("load processed records: %w", err)
	}
	summary.Read = len(items)

	keyed, stats := jobs.AddPrimaryKeys(items, l.logger)
	summary.Keys = stats
	summary.Collisions = l.countCollisions(keyed)

	if err := l.records.EnsureSchema(ctx); err != nil {
		return summary, fmt.Errorf("ensure schema: %w", err)
	}

	result, err := l.records.UpsertByKey(ctx, keyed)
	summary.Upsert = result
	if l.observer != nil {
		l.observer.ObserveUpsert(result, summary.Collisions)
	}
	if err != nil {
		return summary, fmt.Errorf("upsert records: %w", err)
	}

	l.logger.Info("load completed",
		zap.Int("read", summary.Read),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("collisions", summary.Collisions),
	)
	return summary, nil
}

// countCollisions warns about every record whose key an earlier record of
// the same batch already used.
func (l *Loader) countCollisions(items []any) int {
	seen := make(map[string]int, len(items))
	collisions := 0
	for i, item := range items {
		_, key, err := jobs.KeyedRecord(item)
		if err != nil {
			continue
		}
		if first, ok := seen[key]; ok {
			collisions++
			l.logger.Warn("duplicate primary key in batch",
				zap.String("primary_key", key),
				zap.Int("index", i),
				zap.Int("first_index", first),
			)
			continue
		}
		seen[key] = i
	}
	return collisions
}
