package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// RecordStore is an in-memory jobs.RecordStore.
type RecordStore struct {
	mu     sync.RWMutex
	policy jobs.CollisionPolicy
	ready  bool
	rows   map[string]jobs.Record
}

// NewRecordStore constructs a RecordStore applying policy on key collisions.
func NewRecordStore(policy jobs.CollisionPolicy) *RecordStore {
	if policy == "" {
		policy = jobs.CollisionOverwrite
	}
	return &RecordStore{
		policy: policy,
		rows:   make(map[string]jobs.Record),
	}
}

// EnsureSchema marks the table as created.
func (s *RecordStore) EnsureSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	return nil
}

// UpsertByKey inserts or updates each keyed record.
func (s *RecordStore) UpsertByKey(_ context.Context, records []any) (jobs.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result jobs.UpsertResult
	for _, item := range records {
		rec, key, err := jobs.KeyedRecord(item)
		if err != nil {
			result.Skipped++
			continue
		}
		if _, exists := s.rows[key]; exists {
			if s.policy == jobs.CollisionKeepFirst {
				result.Unchanged++
				continue
			}
			s.rows[key] = rec.Clone()
			result.Updated++
			continue
		}
		s.rows[key] = rec.Clone()
		result.Inserted++
	}
	return result, nil
}

// Get returns the stored record for key.
func (s *RecordStore) Get(key string) (jobs.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[key]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Len returns the number of stored rows.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Ready reports whether EnsureSchema ran.
func (s *RecordStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Close is a no-op.
func (s *RecordStore) Close() error {
	return nil
}
