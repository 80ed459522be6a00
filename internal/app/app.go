// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubsubapi "cloud.google.com/go/pubsub/v2"
	gcsapi "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/clock/system"
	"github.com/JakeFAU/jobhunter/internal/config"
	"github.com/JakeFAU/jobhunter/internal/extract"
	"github.com/JakeFAU/jobhunter/internal/fetcher/rapidapi"
	"github.com/JakeFAU/jobhunter/internal/harvest"
	"github.com/JakeFAU/jobhunter/internal/hash/sha256"
	"github.com/JakeFAU/jobhunter/internal/id/uuid"
	"github.com/JakeFAU/jobhunter/internal/jobs"
	"github.com/JakeFAU/jobhunter/internal/load"
	"github.com/JakeFAU/jobhunter/internal/metrics"
	"github.com/JakeFAU/jobhunter/internal/policy/ratelimit"
	"github.com/JakeFAU/jobhunter/internal/policy/retry"
	memorypublisher "github.com/JakeFAU/jobhunter/internal/publisher/memory"
	"github.com/JakeFAU/jobhunter/internal/publisher/pubsub"
	"github.com/JakeFAU/jobhunter/internal/runlock"
	"github.com/JakeFAU/jobhunter/internal/storage/gcs"
	"github.com/JakeFAU/jobhunter/internal/storage/local"
	"github.com/JakeFAU/jobhunter/internal/storage/memory"
	"github.com/JakeFAU/jobhunter/internal/storage/postgres"
	"github.com/JakeFAU/jobhunter/internal/storage/sqlite"
	"github.com/JakeFAU/jobhunter/internal/transform"
)

// DefaultTopic receives run summaries when pubsub.topic is unset.
const DefaultTopic = "jobhunter-runs"

// App holds the shared services of one CLI invocation.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	folders   jobs.FolderStore
	metrics   *metrics.Recorder
	publisher jobs.Publisher
	clock     jobs.Clock
	ids       jobs.IDGenerator

	closers []func() error
}

// New builds the folder store, metrics recorder and publisher selected by
// cfg. Stage-specific services are built on demand by the accessors.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		clock:   system.New(),
		ids:     uuid.New(),
	}
	logger.Info("initializing application services",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("database", cfg.Database.Provider),
	)

	folders, err := a.newFolderStore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.folders = folders

	publisher, err := a.newPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}
	a.publisher = publisher
	return a, nil
}

func (a *App) newFolderStore(ctx context.Context) (jobs.FolderStore, error) {
	hasher := sha256.New()
	switch a.cfg.Storage.Provider {
	case "local":
		return local.New(local.Config{RawDir: a.cfg.Storage.RawPath, ProcessedDir: a.cfg.Storage.ProcessedPath}, hasher)
	case "gcs":
		client, err := gcsapi.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcs.New(client, gcs.Config{
			Bucket:          a.cfg.Storage.GCSBucket,
			RawPrefix:       a.cfg.Storage.RawPath,
			ProcessedPrefix: a.cfg.Storage.ProcessedPath,
		}, hasher)
	case "memory":
		a.logger.Warn("using in-memory storage; files are discarded on exit")
		return memory.NewFolderStore(hasher), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
}

func (a *App) newPublisher(ctx context.Context) (jobs.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" {
		return memorypublisher.New(), nil
	}
	client, err := pubsubapi.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("connect pubsub: %w", err)
	}
	pub := pubsub.New(client, map[string]string{"service": "jobhunter"})
	a.closers = append(a.closers, func() error {
		pub.Close()
		return client.Close()
	})
	a.logger.Info("publishing run summaries to Pub/Sub",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.topic()),
	)
	return pub, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Folders returns the raw/processed store.
func (a *App) Folders() jobs.FolderStore {
	return a.folders
}

// Metrics returns the run's metrics recorder.
func (a *App) Metrics() *metrics.Recorder {
	return a.metrics
}

// Publisher returns the run-summary publisher.
func (a *App) Publisher() jobs.Publisher {
	return a.publisher
}

// Extractor wires the fetcher, harvester and driver for an extraction run.
func (a *App) Extractor() (*extract.Driver, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: a.cfg.API.RequestsPerSecond,
		Burst:             a.cfg.API.Burst,
		OnDelay:           a.metrics.ObserveRateLimitDelay,
	})
	fetcher, err := rapidapi.New(rapidapi.Config{
		BaseURL:   a.cfg.API.BaseURL,
		Host:      a.cfg.API.Host,
		APIKey:    a.cfg.API.Key,
		UserAgent: a.cfg.API.UserAgent,
		Timeout:   a.cfg.RequestTimeout(),
	}, limiter, retry.NewExponentialPolicy(a.cfg.API.MaxRetries), a.logger.Named("fetcher"))
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}

	harvester := harvest.New(fetcher, a.folders, harvest.Config{
		Workers:     a.cfg.Harvest.Workers,
		TaskTimeout: a.cfg.TaskTimeout(),
		SourceTag:   a.cfg.Harvest.SourceTag,
	}, a.metrics, a.logger.Named("harvest"))

	driver := extract.New(a.cfg.Search, harvester, a.folders, a.ids, a.clock, a.logger.Named("extract"))
	if a.cfg.Storage.Lock && a.cfg.Storage.Provider == "local" {
		rawDir := a.cfg.Storage.RawPath
		driver.WithLock(func(ctx context.Context) (func() error, error) {
			lock, err := runlock.Acquire(ctx, rawDir, 0)
			if err != nil {
				return nil, err
			}
			return lock.Release, nil
		})
	}
	return driver, nil
}

// Processor wires the raw-to-processed normaliser.
func (a *App) Processor() *transform.Processor {
	return transform.New(a.folders, a.metrics, a.logger.Named("transform"))
}

// Loader opens the relational store and wires the loader. The store is
// closed by Close.
func (a *App) Loader(ctx context.Context) (*load.Loader, error) {
	records, err := a.newRecordStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, records.Close)
	return load.New(a.folders, records, a.metrics, a.logger.Named("load")), nil
}

func (a *App) newRecordStore(ctx context.Context) (jobs.RecordStore, error) {
	policy, err := jobs.ParseCollisionPolicy(a.cfg.Database.CollisionPolicy)
	if err != nil {
		return nil, err
	}
	logger := a.logger.Named("db")
	switch a.cfg.Database.Provider {
	case "sqlite":
		return sqlite.Open(ctx, sqlite.Config{
			Path:   a.cfg.Database.SQLitePath,
			Table:  a.cfg.Database.Table,
			Policy: policy,
		}, logger)
	case "postgres":
		return postgres.NewRecordStore(ctx, postgres.Config{
			DSN:      a.cfg.Database.DSN,
			Table:    a.cfg.Database.Table,
			Policy:   policy,
			MaxConns: a.cfg.Database.MaxConns,
		}, logger)
	case "memory":
		a.logger.Warn("using in-memory database; rows are discarded on exit")
		return memory.NewRecordStore(policy), nil
	default:
		return nil, fmt.Errorf("unknown database provider: %s", a.cfg.Database.Provider)
	}
}

// RunReport is the message published after every stage.
type RunReport struct {
	Stage      string    `json:"stage"`
	Succeeded  bool      `json:"succeeded"`
	FinishedAt time.Time `json:"finished_at"`
	Summary    any       `json:"summary"`
}

// Report publishes the stage summary and pushes metrics. Failures are logged
// and never change the outcome of the stage.
func (a *App) Report(ctx context.Context, stage string, succeeded bool, summary any) {
	now := a.clock.Now()
	if succeeded {
		a.metrics.MarkSuccess(stage, now)
	}
	report := RunReport{Stage: stage, Succeeded: succeeded, FinishedAt: now, Summary: summary}
	if id, err := a.publisher.Publish(ctx, a.topic(), report); err != nil {
		a.logger.Warn("failed to publish run summary", zap.String("stage", stage), zap.Error(err))
	} else {
		a.logger.Debug("published run summary", zap.String("stage", stage), zap.String("message_id", id))
	}
	if err := a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.JobName); err != nil {
		a.logger.Warn("failed to push metrics", zap.Error(err))
	}
}

func (a *App) topic() string {
	if a.cfg.PubSub.Topic != "" {
		return a.cfg.PubSub.Topic
	}
	return DefaultTopic
}

// Close releases every service in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error shutting down application services", zap.Error(err))
	}
	_ = a.logger.Sync()
}
