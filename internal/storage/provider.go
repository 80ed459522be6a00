// Package storage holds the file layout shared by every FolderStore
// implementation: how a record becomes a named object and how stored
// objects decode back into items.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// Extension is appended to every stored object name.
const Extension = ".json"

// Encode tags a copy of record with source and returns the object name
// ("<source>-<digest>.json") and its JSON payload. The digest covers the
// tagged record, so saving the same record twice yields the same name.
func Encode(hasher jobs.Hasher, record jobs.Record, source string) (string, []byte, error) {
	if hasher == nil {
		return "", nil, errors.New("hasher is required")
	}
	if strings.TrimSpace(source) == "" {
		return "", nil, errors.New("source tag is required")
	}
	tagged := record.Clone()
	tagged[jobs.FieldSource] = source

	data, err := json.Marshal(tagged)
	if err != nil {
		return "", nil, fmt.Errorf("marshal record: %w", err)
	}
	digest, err := hasher.Hash(data)
	if err != nil {
		return "", nil, fmt.Errorf("hash record: %w", err)
	}
	return source + "-" + digest + Extension, data, nil
}

// Decode turns one stored object into items. A JSON array expands into one
// item per element; a single object is one item.
func Decode(data []byte) ([]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	switch data[0] {
	case '[':
		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		return items, nil
	case '{':
		var item map[string]any
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		return []any{item}, nil
	default:
		return nil, fmt.Errorf("unsupported content starting with %q", data[0])
	}
}

// IsObjectName reports whether name looks like a stored record object.
func IsObjectName(name string) bool {
	return strings.HasSuffix(name, Extension) && !strings.HasPrefix(name, ".")
}
