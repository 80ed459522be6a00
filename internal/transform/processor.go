// Package transform normalises raw listings into the canonical schema the
// loader expects and writes them to the processed folder.
package transform

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// SourceProcessed tags records written by the Processor.
const SourceProcessed = "processed"

// FieldOrigin keeps the source tag a record carried in the raw folder.
const FieldOrigin = "origin"

// Canonical field names beyond company and title.
const (
	FieldLocation   = "location"
	FieldURL        = "url"
	FieldPostedDate = "posted_date"
)

// aliases lists, per canonical field, the raw names it may arrive under in
// order of preference.
var aliases = []struct {
	canonical string
	names     []string
}{
	{jobs.FieldCompany, []string{"company_name", "company"}},
	{jobs.FieldTitle, []string{"job_title", "title"}},
	{FieldLocation, []string{"job_location", "location"}},
	{FieldURL, []string{"linkedin_job_url_cleaned", "job_url", "url"}},
	{FieldPostedDate, []string{"posted_date"}},
}

// Observer receives the counts of a finished run.
type Observer interface {
	ObserveTransform(written, dropped, failed int)
}

// Summary counts the outcome of one Run.
type Summary struct {
	Read    int `json:"read"`
	Written int `json:"written"`
	Dropped int `json:"dropped"`
	Failed  int `json:"failed"`
}

// TotalFailure reports whether records were read and every attempt to
// write one failed.
func (s Summary) TotalFailure() bool {
	return s.Failed > 0 && s.Written == 0
}

// Processor moves records from the raw to the processed folder.
type Processor struct {
	store    jobs.FolderStore
	observer Observer
	logger   *zap.Logger
}

// New builds a Processor. observer may be nil.
func New(store jobs.FolderStore, observer Observer, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{store: store, observer: observer, logger: logger}
}

// Run normalises every raw record. Only a failure to read the raw folder
// is returned as an error; per-record problems are counted.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	if err := p.store.EnsureFolders(ctx); err != nil {
		return summary, fmt.Errorf("ensure folders: %w", err)
	}
	items, err := p.store.LoadAll(ctx, jobs.Raw)
	if err != nil {
		return summary, fmt.Errorf("load raw records: %w", err)
	}
	summary.Read = len(items)
	p.logger.Info("processing raw records", zap.Int("records", len(items)))

	for i, item := range items {
		raw, ok := jobs.AsRecord(item)
		if !ok {
			p.logger.Warn("skipping non-object raw item", zap.Int("index", i), zap.Any("item", item))
			summary.Failed++
			continue
		}
		rec, ok := Normalize(raw)
		if !ok {
			p.logger.Debug("dropping record without company or title", zap.Int("index", i))
			summary.Dropped++
			continue
		}
		if _, err := p.store.Save(ctx, rec, SourceProcessed, jobs.Processed); err != nil {
			p.logger.Error("processed store save failed", zap.Int("index", i), zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Written++
	}

	if p.observer != nil {
		p.observer.ObserveTransform(summary.Written, summary.Dropped, summary.Failed)
	}
	p.logger.Info("processing completed",
		zap.Int("written", summary.Written),
		zap.Int("dropped", summary.Dropped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// Normalize maps raw field names onto the canonical schema. Fields without
// a canonical name are kept. It reports false when company or title is
// missing after mapping.
func Normalize(raw jobs.Record) (jobs.Record, bool) {
	out := raw.Clone()
	for _, alias := range aliases {
		var value string
		for _, name := range alias.names {
			if v := strings.TrimSpace(raw.Field(name)); v != "" && value == "" {
				value = v
			}
			if name != alias.canonical {
				delete(out, name)
			}
		}
		if value != "" {
			out[alias.canonical] = value
		} else {
			delete(out, alias.canonical)
		}
	}
	if origin := raw.Field(jobs.FieldSource); origin != "" {
		out[FieldOrigin] = origin
	}
	delete(out, jobs.FieldSource)
	delete(out, jobs.FieldPrimaryKey)

	if out.Field(jobs.FieldCompany) == "" || out.Field(jobs.FieldTitle) == "" {
		return nil, false
	}
	return out, true
}
