package jobs

import (
	"context"
	"time"
)

// Fetcher returns the job records of one search page.
type Fetcher interface {
	Fetch(ctx context.Context, task PageTask) ([]Record, error)
}

// FolderStore persists records as files under a raw and a processed folder.
// Implementations must tolerate concurrent Save calls for distinct records.
type FolderStore interface {
	// EnsureFolders creates the raw and processed locations when missing.
	EnsureFolders(ctx context.Context) error
	// Save writes one record tagged with source and returns its location.
	// Saving the same record twice overwrites the same entry.
	Save(ctx context.Context, record Record, source string, dest Destination) (string, error)
	// LoadAll decodes every stored file of dest. Files holding an array
	// expand into one item per element.
	LoadAll(ctx context.Context, dest Destination) ([]any, error)
}

// RecordStore is the relational destination of the load pipeline.
type RecordStore interface {
	// EnsureSchema creates the destination table when missing.
	EnsureSchema(ctx context.Context) error
	// UpsertByKey inserts or updates each record by its primary_key. Every
	// record is written atomically; failures are isolated per record.
	UpsertByKey(ctx context.Context, records []any) (UpsertResult, error)
	Close() error
}

// Publisher pushes run summaries to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests used as record identities.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
