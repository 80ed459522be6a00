// Package local implements a FolderStore on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JakeFAU/jobhunter/internal/jobs"
	"github.com/JakeFAU/jobhunter/internal/storage"
)

// Config captures the two folders managed by the store.
type Config struct {
	RawDir       string `mapstructure:"raw_path" yaml:"raw_path"`
	ProcessedDir string `mapstructure:"processed_path" yaml:"processed_path"`
}

// FolderStore writes one JSON file per record.
type FolderStore struct {
	dirs   map[jobs.Destination]string
	hasher jobs.Hasher
}

// New creates a filesystem-backed folder store. Folders are created by
// EnsureFolders, not here.
func New(cfg Config, hasher jobs.Hasher) (*FolderStore, error) {
	if strings.TrimSpace(cfg.RawDir) == "" || strings.TrimSpace(cfg.ProcessedDir) == "" {
		return nil, fmt.Errorf("raw and processed directories are required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	return &FolderStore{
		dirs: map[jobs.Destination]string{
			jobs.Raw:       filepath.Clean(cfg.RawDir),
			jobs.Processed: filepath.Clean(cfg.ProcessedDir),
		},
		hasher: hasher,
	}, nil
}

// Dir returns the folder backing dest.
func (s *FolderStore) Dir(dest jobs.Destination) string {
	return s.dirs[dest]
}

// EnsureFolders creates both folders and checks they are writable.
func (s *FolderStore) EnsureFolders(_ context.Context) error {
	for _, dest := range []jobs.Destination{jobs.Raw, jobs.Processed} {
		if err := ensureDir(s.dirs[dest]); err != nil {
			return fmt.Errorf("%s folder: %w", dest, err)
		}
	}
	return nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("failed to create directory: %w", mkErr)
		}
	case err != nil:
		return fmt.Errorf("failed to stat directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("%s is not a directory", dir)
	}

	testFile := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return fmt.Errorf("failed to clean up test file: %w", err)
	}
	return nil
}

// Save writes record to dest and returns a file:// URI. The file appears
// atomically via rename.
func (s *FolderStore) Save(ctx context.Context, record jobs.Record, source string, dest jobs.Destination) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("save canceled: %w", err)
	}
	dir, ok := s.dirs[dest]
	if !ok {
		return "", fmt.Errorf("unknown destination %q", dest)
	}
	name, data, err := storage.Encode(s.hasher, record, source)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	fullPath := filepath.Join(dir, name)
	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	return "file://" + fullPath, nil
}

// LoadAll decodes every record file in dest in name order. A missing
// folder holds no records.
func (s *FolderStore) LoadAll(ctx context.Context, dest jobs.Destination) ([]any, error) {
	dir, ok := s.dirs[dest]
	if !ok {
		return nil, fmt.Errorf("unknown destination %q", dest)
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s folder: %w", dest, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	items := []any{}
	for _, entry := range entries {
		if entry.IsDir() || !storage.IsObjectName(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load canceled: %w", err)
		}
		path := filepath.Join(dir, entry.Name())
		// #nosec G304 -- path is built from a directory listing of the managed folder.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		decoded, err := storage.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		items = append(items, decoded...)
	}
	return items, nil
}
