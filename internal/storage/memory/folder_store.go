// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/jobhunter/internal/jobs"
	"github.com/JakeFAU/jobhunter/internal/storage"
)

// FolderStore keeps record files in memory and returns pseudo URIs.
type FolderStore struct {
	mu      sync.RWMutex
	hasher  jobs.Hasher
	folders map[jobs.Destination]map[string][]byte
}

// NewFolderStore creates an empty in-memory folder store.
func NewFolderStore(hasher jobs.Hasher) *FolderStore {
	return &FolderStore{
		hasher:  hasher,
		folders: make(map[jobs.Destination]map[string][]byte),
	}
}

// EnsureFolders creates both folders when missing.
func (s *FolderStore) EnsureFolders(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dest := range []jobs.Destination{jobs.Raw, jobs.Processed} {
		if _, ok := s.folders[dest]; !ok {
			s.folders[dest] = make(map[string][]byte)
		}
	}
	return nil
}

// Save stores the tagged record under its content name.
func (s *FolderStore) Save(_ context.Context, record jobs.Record, source string, dest jobs.Destination) (string, error) {
	name, data, err := storage.Encode(s.hasher, record, source)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	folder, ok := s.folders[dest]
	if !ok {
		return "", fmt.Errorf("folder %q does not exist", dest)
	}
	folder[name] = data
	return fmt.Sprintf("memory://%s/%s", dest, name), nil
}

// Put stores raw file content, mimicking a file dropped into the folder.
func (s *FolderStore) Put(dest jobs.Destination, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder, ok := s.folders[dest]
	if !ok {
		folder = make(map[string][]byte)
		s.folders[dest] = folder
	}
	folder[name] = append([]byte(nil), data...)
}

// Count returns how many files dest holds.
func (s *FolderStore) Count(dest jobs.Destination) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.folders[dest])
}

// LoadAll decodes every file of dest in name order.
func (s *FolderStore) LoadAll(_ context.Context, dest jobs.Destination) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folder := s.folders[dest]
	names := make([]string, 0, len(folder))
	for name := range folder {
		names = append(names, name)
	}
	sort.Strings(names)

	items := []any{}
	for _, name := range names {
		decoded, err := storage.Decode(folder[name])
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		items = append(items, decoded...)
	}
	return items, nil
}
