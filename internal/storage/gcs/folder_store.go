// Package gcs provides a FolderStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/jobhunter/internal/jobs"
	jobstorage "github.com/JakeFAU/jobhunter/internal/storage"
)

// Config captures the bucket and the object prefixes standing in for folders.
type Config struct {
	Bucket          string
	RawPrefix       string
	ProcessedPrefix string
}

// FolderStore writes one object per record to a configured bucket.
type FolderStore struct {
	client   *storage.Client
	bucket   string
	prefixes map[jobs.Destination]string
	hasher   jobs.Hasher
}

// New creates a GCS-backed folder store. Empty prefixes default to "raw"
// and "processed".
func New(client *storage.Client, cfg Config, hasher jobs.Hasher) (*FolderStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	return &FolderStore{
		client: client,
		bucket: cfg.Bucket,
		prefixes: map[jobs.Destination]string{
			jobs.Raw:       normalizePrefix(cfg.RawPrefix, string(jobs.Raw)),
			jobs.Processed: normalizePrefix(cfg.ProcessedPrefix, string(jobs.Processed)),
		},
		hasher: hasher,
	}, nil
}

func normalizePrefix(prefix, fallback string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = fallback
	}
	return prefix + "/"
}

// EnsureFolders verifies the bucket is reachable. Prefixes need no creation.
func (s *FolderStore) EnsureFolders(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("failed to get GCS bucket '%s' attributes: %w", s.bucket, err)
	}
	return nil
}

// ObjectPath returns the object name used for a file called name in dest.
func (s *FolderStore) ObjectPath(dest jobs.Destination, name string) (string, error) {
	prefix, ok := s.prefixes[dest]
	if !ok {
		return "", fmt.Errorf("unknown destination %q", dest)
	}
	return path.Join(prefix, name), nil
}

// Save uploads record and returns a gs:// URI.
func (s *FolderStore) Save(ctx context.Context, record jobs.Record, source string, dest jobs.Destination) (string, error) {
	name, data, err := jobstorage.Encode(s.hasher, record, source)
	if err != nil {
		return "", err
	}
	objectPath, err := s.ObjectPath(dest, name)
	if err != nil {
		return "", err
	}

	writer := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectPath), nil
}

// LoadAll downloads and decodes every record object under dest.
func (s *FolderStore) LoadAll(ctx context.Context, dest jobs.Destination) ([]any, error) {
	prefix, ok := s.prefixes[dest]
	if !ok {
		return nil, fmt.Errorf("unknown destination %q", dest)
	}

	bucket := s.client.Bucket(s.bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	items := []any{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		if !jobstorage.IsObjectName(path.Base(attrs.Name)) {
			continue
		}
		data, err := s.read(ctx, bucket.Object(attrs.Name))
		if err != nil {
			return nil, err
		}
		decoded, err := jobstorage.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", attrs.Name, err)
		}
		items = append(items, decoded...)
	}
	return items, nil
}

func (s *FolderStore) read(ctx context.Context, obj *storage.ObjectHandle) ([]byte, error) {
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", obj.ObjectName(), err)
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", obj.ObjectName(), err)
	}
	return data, nil
}
