// Package harvest fetches every page of one search concurrently and
// persists each listing to the raw store as it arrives.
package harvest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// Default pool settings.
const (
	DefaultWorkers     = 4
	DefaultTaskTimeout = 60 * time.Second
)

// Observer is told about every finished page.
type Observer interface {
	ObservePage(outcome jobs.PageOutcome)
}

// Config sizes the worker pool.
type Config struct {
	Workers     int
	TaskTimeout time.Duration
	SourceTag   string
}

// Harvester runs page fetches on a bounded pool.
type Harvester struct {
	fetcher  jobs.Fetcher
	store    jobs.FolderStore
	cfg      Config
	observer Observer
	logger   *zap.Logger
}

// Result aggregates one Harvest call. Records holds the listings of every
// successful page in no particular order.
type Result struct {
	Records  []jobs.Record
	Summary  jobs.HarvestSummary
	Failures []*jobs.FetchError
}

// New builds a Harvester. observer may be nil.
func New(fetcher jobs.Fetcher, store jobs.FolderStore, cfg Config, observer Observer, logger *zap.Logger) *Harvester {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.SourceTag == "" {
		cfg.SourceTag = jobs.SourceLinkedIn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harvester{
		fetcher:  fetcher,
		store:    store,
		cfg:      cfg,
		observer: observer,
		logger:   logger,
	}
}

// Harvest fetches pages 0..pageCount-1 of searchTerm in location. A failing
// page is logged once and contributes nothing; its siblings are unaffected.
// The returned error is non-nil only for an invalid page count or when ctx
// ended before the harvest finished.
func (h *Harvester) Harvest(ctx context.Context, searchTerm, location string, pageCount int) (Result, error) {
	if pageCount < 0 {
		return Result{}, fmt.Errorf("%w: got %d", jobs.ErrInvalidPageCount, pageCount)
	}
	result := Result{Records: []jobs.Record{}}
	if pageCount == 0 {
		return result, nil
	}

	logger := h.logger.With(zap.String("search_term", searchTerm), zap.String("location", location))
	logger.Info("harvest started", zap.Int("pages", pageCount), zap.Int("workers", h.cfg.Workers))

	outcomes := make(chan jobs.PageOutcome, pageCount)
	go func() {
		var g errgroup.Group
		g.SetLimit(h.cfg.Workers)
		for page := 0; page < pageCount; page++ {
			task := jobs.PageTask{SearchTerm: searchTerm, Location: location, Page: page}
			g.Go(func() error {
				outcomes <- h.runTask(ctx, task, logger)
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	result.Summary.PagesSubmitted = pageCount
	for outcome := range outcomes {
		h.collect(&result, outcome, logger)
	}

	logger.Info("harvest finished",
		zap.Int("records", len(result.Records)),
		zap.Int("pages_failed", result.Summary.PagesFailed),
		zap.Int("pages_empty", result.Summary.PagesEmpty),
	)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("harvest interrupted: %w", err)
	}
	return result, nil
}

func (h *Harvester) collect(result *Result, outcome jobs.PageOutcome, logger *zap.Logger) {
	if h.observer != nil {
		h.observer.ObservePage(outcome)
	}
	if outcome.Err != nil {
		fetchErr := &jobs.FetchError{Task: outcome.Task, Err: outcome.Err}
		logger.Error("page fetch failed",
			zap.Int("page", outcome.Task.Page),
			zap.Duration("duration", outcome.Duration),
			zap.Error(outcome.Err),
		)
		result.Summary.PagesFailed++
		result.Failures = append(result.Failures, fetchErr)
		return
	}
	result.Summary.PagesSucceeded++
	if len(outcome.Records) == 0 {
		logger.Warn("page returned no listings", zap.Int("page", outcome.Task.Page))
		result.Summary.PagesEmpty++
		return
	}
	result.Summary.RecordsSaved += outcome.RecordsSaved
	result.Summary.RecordsUnsaved += outcome.RecordsUnsaved
	result.Records = append(result.Records, outcome.Records...)
}

// runTask fetches one page under its own deadline and saves its records.
// Fetch panics are converted into page errors.
func (h *Harvester) runTask(ctx context.Context, task jobs.PageTask, logger *zap.Logger) (outcome jobs.PageOutcome) {
	start := time.Now()
	outcome.Task = task
	defer func() {
		if r := recover(); r != nil {
			outcome.Records = nil
			outcome.Err = fmt.Errorf("page worker panic: %v", r)
		}
		outcome.Duration = time.Since(start)
	}()

	taskCtx, cancel := context.WithTimeout(ctx, h.cfg.TaskTimeout)
	defer cancel()

	records, err := h.fetch(taskCtx, task)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	for _, rec := range records {
		if err := h.save(ctx, rec); err != nil {
			logger.Warn("raw store save failed", zap.Int("page", task.Page), zap.Error(err))
			outcome.RecordsUnsaved++
			continue
		}
		outcome.RecordsSaved++
	}
	outcome.Records = records
	return outcome
}

// save stores one record. A panicking store counts as a failed save so a
// page never fails after some of its records were written.
func (h *Harvester) save(ctx context.Context, rec jobs.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("raw store panic: %v", r)
		}
	}()
	_, err = h.store.Save(ctx, rec, h.cfg.SourceTag, jobs.Raw)
	return err
}

type fetchResult struct {
	records []jobs.Record
	err     error
}

// fetch calls the fetcher but returns as soon as ctx ends, even if the
// fetcher itself ignores ctx.
func (h *Harvester) fetch(ctx context.Context, task jobs.PageTask) ([]jobs.Record, error) {
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("fetcher panic: %v", r)}
			}
		}()
		records, err := h.fetcher.Fetch(ctx, task)
		done <- fetchResult{records: records, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("page deadline: %w", ctx.Err())
	case res := <-done:
		return res.records, res.err
	}
}
