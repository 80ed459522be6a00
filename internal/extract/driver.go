// Package extract drives one extraction run: every configured position in
// every configured location, harvested pair by pair.
package extract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/config"
	"github.com/JakeFAU/jobhunter/internal/harvest"
	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// Harvester fetches all pages of one search.
type Harvester interface {
	Harvest(ctx context.Context, searchTerm, location string, pageCount int) (harvest.Result, error)
}

// LockFunc takes an exclusive hold on the raw folder and returns its release.
type LockFunc func(ctx context.Context) (release func() error, err error)

// Summary reports how far a run got.
type Summary struct {
	RunID          string              `json:"run_id"`
	Pairs          int                 `json:"pairs"`
	PairsCompleted int                 `json:"pairs_completed"`
	Records        int                 `json:"records"`
	Harvest        jobs.HarvestSummary `json:"harvest"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
	Error          string              `json:"error,omitempty"`
	Err            error               `json:"-"`
}

// Partial reports whether the run stopped before every pair was harvested
// or some pages failed.
func (s Summary) Partial() bool {
	return s.PairsCompleted < s.Pairs || s.Harvest.PagesFailed > 0
}

// TotalFailure reports whether the run produced nothing usable.
func (s Summary) TotalFailure() bool {
	if s.Err != nil && s.PairsCompleted == 0 {
		return true
	}
	return s.Harvest.PagesSubmitted > 0 && s.Harvest.PagesSucceeded == 0
}

// Driver runs the positions x locations loop.
type Driver struct {
	search    config.SearchConfig
	harvester Harvester
	store     jobs.FolderStore
	ids       jobs.IDGenerator
	clock     jobs.Clock
	lock      LockFunc
	logger    *zap.Logger
}

// New builds a Driver for search.
func New(
	search config.SearchConfig,
	harvester Harvester,
	store jobs.FolderStore,
	ids jobs.IDGenerator,
	clock jobs.Clock,
	logger *zap.Logger,
) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		search:    search,
		harvester: harvester,
		store:     store,
		ids:       ids,
		clock:     clock,
		logger:    logger,
	}
}

// WithLock makes Run hold lock for its whole duration.
func (d *Driver) WithLock(lock LockFunc) *Driver {
	d.lock = lock
	return d
}

// Run performs one extraction. Any error or panic escaping a pair abandons
// the remaining pairs; it is reported in Summary.Err as a *jobs.DriverError.
func (d *Driver) Run(ctx context.Context) (summary Summary) {
	summary.Pairs = len(d.search.Positions) * len(d.search.Locations)
	summary.StartedAt = d.now()
	summary.RunID = d.newRunID()

	logger := d.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("extraction started",
		zap.Strings("positions", d.search.Positions),
		zap.Strings("locations", d.search.Locations),
		zap.Int("pages", d.search.Pages),
	)
	defer func() {
		summary.FinishedAt = d.now()
		if summary.Err != nil {
			summary.Error = summary.Err.Error()
		}
		logger.Info("extraction completed",
			zap.Int("pairs_completed", summary.PairsCompleted),
			zap.Int("pairs", summary.Pairs),
			zap.Int("records", summary.Records),
			zap.Int("pages_failed", summary.Harvest.PagesFailed),
			zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
		)
	}()

	if d.lock != nil {
		release, err := d.lock(ctx)
		if err != nil {
			logger.Error("could not lock raw folder", zap.Error(err))
			summary.Err = fmt.Errorf("lock raw folder: %w", err)
			return summary
		}
		defer func() {
			if err := release(); err != nil {
				logger.Warn("failed to release raw folder lock", zap.Error(err))
			}
		}()
	}

	if err := d.store.EnsureFolders(ctx); err != nil {
		logger.Error("could not prepare storage folders", zap.Error(err))
		summary.Err = fmt.Errorf("ensure folders: %w", err)
		return summary
	}

	for _, position := range d.search.Positions {
		for _, location := range d.search.Locations {
			if err := d.runPair(ctx, position, location, &summary); err != nil {
				logger.Error("extraction aborted", zap.Error(err))
				summary.Err = err
				return summary
			}
			summary.PairsCompleted++
		}
	}
	return summary
}

func (d *Driver) runPair(ctx context.Context, position, location string, summary *Summary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &jobs.DriverError{Position: position, Location: location, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return &jobs.DriverError{Position: position, Location: location, Err: err}
	}
	result, err := d.harvester.Harvest(ctx, position, location, d.search.Pages)
	summary.Harvest.Add(result.Summary)
	summary.Records += len(result.Records)
	if err != nil {
		return &jobs.DriverError{Position: position, Location: location, Err: err}
	}
	return nil
}

func (d *Driver) newRunID() string {
	if d.ids == nil {
		return ""
	}
	id, err := d.ids.NewID()
	if err != nil {
		d.logger.Warn("failed to generate run id", zap.Error(err))
		return ""
	}
	return id
}

func (d *Driver) now() time.Time {
	if d.clock == nil {
		return time.Now().UTC()
	}
	return d.clock.Now()
}
