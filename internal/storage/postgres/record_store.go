// Package postgres provides a Postgres-backed RecordStore.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/clock/system"
	"github.com/JakeFAU/jobhunter/internal/jobs"
	"github.com/JakeFAU/jobhunter/internal/storage"
)

// Config controls the Postgres connection pool and destination table.
type Config struct {
	DSN             string
	Table           string
	Policy          jobs.CollisionPolicy
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore upserts keyed records into Postgres.
type RecordStore struct {
	pool   txPool
	table  string
	policy jobs.CollisionPolicy
	clock  jobs.Clock
	logger *zap.Logger
}

// NewRecordStore connects a pool using cfg.
func NewRecordStore(ctx context.Context, cfg Config, logger *zap.Logger) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRecordStoreWithPool(pool, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool txPool, cfg Config, logger *zap.Logger) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table := cfg.Table
	if table == "" {
		table = "jobs"
	}
	if err := storage.ValidateTable(table); err != nil {
		return nil, err
	}
	policy := cfg.Policy
	if policy == "" {
		policy = jobs.CollisionOverwrite
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{
		pool:   pool,
		table:  table,
		policy: policy,
		clock:  system.New(),
		logger: logger,
	}, nil
}

// EnsureSchema creates the table when missing.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	primary_key TEXT PRIMARY KEY,
	company     TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	data        JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// UpsertByKey writes each keyed record in its own transaction.
func (s *RecordStore) UpsertByKey(ctx context.Context, records []any) (jobs.UpsertResult, error) {
	var result jobs.UpsertResult
	for i, item := range records {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("upsert canceled: %w", err)
		}
		rec, key, err := jobs.KeyedRecord(item)
		if err != nil {
			s.logger.Warn("skipping record", zap.Int("index", i), zap.Error(err))
			result.Skipped++
			continue
		}
		outcome, err := s.upsertOne(ctx, rec, key)
		if err != nil {
			s.logger.Error("upsert failed", zap.String("primary_key", key), zap.Error(err))
			result.Failed++
			continue
		}
		outcome.Record(&result)
	}
	return result, nil
}

func (s *RecordStore) upsertOne(ctx context.Context, rec jobs.Record, key string) (storage.Outcome, error) {
	row, err := storage.NewRow(rec, key, s.clock.Now())
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE primary_key = $1)`, s.table)
	if err := tx.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check existing: %w", err)
	}

	outcome := storage.Inserted
	switch {
	case exists && s.policy == jobs.CollisionKeepFirst:
		return storage.Unchanged, nil
	case exists:
		outcome = storage.Updated
		query = fmt.Sprintf(`
UPDATE %s SET company = $2, title = $3, source = $4, data = $5, updated_at = $6
WHERE primary_key = $1`, s.table)
	default:
		query = fmt.Sprintf(`
INSERT INTO %s (primary_key, company, title, source, data, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`, s.table)
	}
	args := []any{row.PrimaryKey, row.Company, row.Title, row.Source, row.Data, row.UpdatedAt}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("write row: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return outcome, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
