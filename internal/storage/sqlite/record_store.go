// Package sqlite provides a RecordStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/jobhunter/internal/clock/system"
	"github.com/JakeFAU/jobhunter/internal/jobs"
	"github.com/JakeFAU/jobhunter/internal/storage"
)

// Config controls where and how records are stored.
type Config struct {
	Path   string
	Table  string
	Policy jobs.CollisionPolicy
}

// RecordStore upserts keyed records into one SQLite table.
type RecordStore struct {
	db     *sqlx.DB
	table  string
	policy jobs.CollisionPolicy
	clock  jobs.Clock
	logger *zap.Logger
}

// Open connects to the database file at cfg.Path, creating its directory.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*RecordStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database.sqlite_path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", cfg.Path)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(pingCtx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := New(db, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, cfg Config, logger *zap.Logger) (*RecordStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
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
		db:     db,
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
	data        TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
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

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	query := fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE primary_key = ?`, s.table)
	if err := tx.GetContext(ctx, &exists, query, key); err != nil {
		return 0, fmt.Errorf("check existing: %w", err)
	}

	outcome := storage.Inserted
	switch {
	case exists > 0 && s.policy == jobs.CollisionKeepFirst:
		return storage.Unchanged, nil
	case exists > 0:
		outcome = storage.Updated
		query = fmt.Sprintf(`
UPDATE %s SET company = :company, title = :title, source = :source, data = :data, updated_at = :updated_at
WHERE primary_key = :primary_key`, s.table)
	default:
		query = fmt.Sprintf(`
INSERT INTO %s (primary_key, company, title, source, data, updated_at)
VALUES (:primary_key, :company, :title, :source, :data, :updated_at)`, s.table)
	}
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return 0, fmt.Errorf("write row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return outcome, nil
}

// Get returns the stored record for key.
func (s *RecordStore) Get(ctx context.Context, key string) (storage.Row, bool, error) {
	var row storage.Row
	query := fmt.Sprintf(`SELECT primary_key, company, title, source, data FROM %s WHERE primary_key = ?`, s.table)
	err := s.db.GetContext(ctx, &row, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Row{}, false, nil
	}
	if err != nil {
		return storage.Row{}, false, fmt.Errorf("get %q: %w", key, err)
	}
	return row, true, nil
}

// Count returns the number of stored rows.
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(1) FROM %s`, s.table)); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *RecordStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
