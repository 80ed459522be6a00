package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateTable rejects table names that are unsafe to interpolate into SQL.
func ValidateTable(table string) error {
	if !validTableName.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

// Row is the relational shape of a keyed record. Data holds the full record.
type Row struct {
	PrimaryKey string    `db:"primary_key"`
	Company    string    `db:"company"`
	Title      string    `db:"title"`
	Source     string    `db:"source"`
	Data       string    `db:"data"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// NewRow flattens rec into a Row stamped with now.
func NewRow(rec jobs.Record, key string, now time.Time) (Row, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return Row{}, fmt.Errorf("marshal record %q: %w", key, err)
	}
	return Row{
		PrimaryKey: key,
		Company:    rec.Field(jobs.FieldCompany),
		Title:      rec.Field(jobs.FieldTitle),
		Source:     rec.Field(jobs.FieldSource),
		Data:       string(data),
		UpdatedAt:  now,
	}, nil
}

// Outcome is what happened to one record during an upsert.
type Outcome int

// Upsert outcomes.
const (
	Inserted Outcome = iota
	Updated
	Unchanged
)

// Record folds outcome into result.
func (o Outcome) Record(result *jobs.UpsertResult) {
	switch o {
	case Inserted:
		result.Inserted++
	case Updated:
		result.Updated++
	case Unchanged:
		result.Unchanged++
	}
}
