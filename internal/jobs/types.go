// Package jobs defines core types shared across subsystems.
package jobs

import (
	"fmt"
	"time"
)

// Field names with meaning to the pipeline. Every other field is carried as-is.
const (
	FieldCompany    = "company"
	FieldTitle      = "title"
	FieldPrimaryKey = "primary_key"
	FieldSource     = "source"
)

// SourceLinkedIn tags records harvested from the LinkedIn jobs search API.
const SourceLinkedIn = "linkedinjobs"

// Record is a single job listing. The schema is open; only company and title
// are required downstream.
type Record map[string]any

// Field returns the named field, or "" when it is absent. Non-string
// values are formatted with fmt.Sprint.
func (r Record) Field(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Destination selects one of the two folders managed by a FolderStore.
type Destination string

// Destinations understood by every FolderStore implementation.
const (
	Raw       Destination = "raw"
	Processed Destination = "processed"
)

// PageTask identifies one page of one search.
type PageTask struct {
	SearchTerm string
	Location   string
	Page       int
}

// String renders the task for log lines and errors.
func (t PageTask) String() string {
	return fmt.Sprintf("%q in %q page %d", t.SearchTerm, t.Location, t.Page)
}

// PageOutcome is what a worker reports back for one PageTask.
type PageOutcome struct {
	Task           PageTask
	Records        []Record
	RecordsSaved   int
	RecordsUnsaved int
	Err            error
	Duration       time.Duration
}

// HarvestSummary counts page and record outcomes of one or more harvest calls.
type HarvestSummary struct {
	PagesSubmitted int `json:"pages_submitted"`
	PagesSucceeded int `json:"pages_succeeded"`
	PagesFailed    int `json:"pages_failed"`
	PagesEmpty     int `json:"pages_empty"`
	RecordsSaved   int `json:"records_saved"`
	RecordsUnsaved int `json:"records_unsaved"`
}

// Add folds other into s.
func (s *HarvestSummary) Add(other HarvestSummary) {
	s.PagesSubmitted += other.PagesSubmitted
	s.PagesSucceeded += other.PagesSucceeded
	s.PagesFailed += other.PagesFailed
	s.PagesEmpty += other.PagesEmpty
	s.RecordsSaved += other.RecordsSaved
	s.RecordsUnsaved += other.RecordsUnsaved
}

// CollisionPolicy decides what an upsert does when the primary key already exists.
type CollisionPolicy string

// Supported collision policies.
const (
	// CollisionOverwrite replaces the stored row (last write wins).
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionKeepFirst leaves the stored row untouched.
	CollisionKeepFirst CollisionPolicy = "keep_first"
)

// ParseCollisionPolicy maps a config value onto a CollisionPolicy.
func ParseCollisionPolicy(raw string) (CollisionPolicy, error) {
	switch CollisionPolicy(raw) {
	case "", CollisionOverwrite:
		return CollisionOverwrite, nil
	case CollisionKeepFirst:
		return CollisionKeepFirst, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q", raw)
	}
}

// UpsertResult counts per-record outcomes of a RecordStore upsert.
type UpsertResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Add folds other into r.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

// Written reports how many records reached the store.
func (r UpsertResult) Written() int {
	return r.Inserted + r.Updated + r.Unchanged
}
