// Package config loads and validates jobhunter configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Search   SearchConfig   `mapstructure:"search"`
	API      APIConfig      `mapstructure:"api"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// SearchConfig lists the searches an extraction run performs.
type SearchConfig struct {
	Positions []string `mapstructure:"positions"`
	Locations []string `mapstructure:"locations"`
	Pages     int      `mapstructure:"pages"`
}

// APIConfig configures the job search API client.
type APIConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	Host              string  `mapstructure:"host"`
	Key               string  `mapstructure:"key"`
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// HarvestConfig sizes the page worker pool.
type HarvestConfig struct {
	Workers            int    `mapstructure:"workers"`
	TaskTimeoutSeconds int    `mapstructure:"task_timeout_seconds"`
	SourceTag          string `mapstructure:"source_tag"`
}

// StorageConfig selects and configures the raw/processed folder store.
type StorageConfig struct {
	Provider      string `mapstructure:"provider"`
	RawPath       string `mapstructure:"raw_path"`
	ProcessedPath string `mapstructure:"processed_path"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	Lock          bool   `mapstructure:"lock"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Provider        string `mapstructure:"provider"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	CollisionPolicy string `mapstructure:"collision_policy"`
	MaxConns        int32  `mapstructure:"max_conns"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig points at an optional Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	JobName        string `mapstructure:"job_name"`
}

// PubSubConfig holds metadata for run-summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory is read first so RAPID_API_KEY can live outside the shell.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("JOBHUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.key", "RAPID_API_KEY", "JOBHUNTER_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind api key env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.positions", []string{"Data Engineer"})
	v.SetDefault("search.locations", []string{"Remote"})
	v.SetDefault("search.pages", 1)
	v.SetDefault("api.base_url", "https://linkedin-jobs-search.p.rapidapi.com/")
	v.SetDefault("api.host", "linkedin-jobs-search.p.rapidapi.com")
	v.SetDefault("api.user_agent", "jobhunter/0.1")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("api.max_retries", 2)
	v.SetDefault("api.requests_per_second", 2.0)
	v.SetDefault("api.burst", 1)
	v.SetDefault("harvest.workers", 4)
	v.SetDefault("harvest.task_timeout_seconds", 60)
	v.SetDefault("harvest.source_tag", jobs.SourceLinkedIn)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.raw_path", "data/raw")
	v.SetDefault("storage.processed_path", "data/processed")
	v.SetDefault("storage.lock", true)
	v.SetDefault("database.provider", "sqlite")
	v.SetDefault("database.sqlite_path", "data/jobhunter.db")
	v.SetDefault("database.table", "jobs")
	v.SetDefault("database.collision_policy", string(jobs.CollisionOverwrite))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.job_name", "jobhunter")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Search.Pages < 0 {
		return fmt.Errorf("search.pages must be >= 0")
	}
	if c.Harvest.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0")
	}
	if c.Harvest.TaskTimeoutSeconds <= 0 {
		return fmt.Errorf("harvest.task_timeout_seconds must be > 0")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be > 0")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must be >= 0")
	}
	switch c.Storage.Provider {
	case "local":
		if c.Storage.RawPath == "" || c.Storage.ProcessedPath == "" {
			return fmt.Errorf("storage.raw_path and storage.processed_path are required for local storage")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for gcs storage")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.Database.Provider {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database.provider %q", c.Database.Provider)
	}
	if _, err := jobs.ParseCollisionPolicy(c.Database.CollisionPolicy); err != nil {
		return fmt.Errorf("database.collision_policy: %w", err)
	}
	return nil
}

// RequireAPIKey reports whether extraction can authenticate.
func (c Config) RequireAPIKey() error {
	if strings.TrimSpace(c.API.Key) == "" {
		return fmt.Errorf("api key is required: set RAPID_API_KEY")
	}
	return nil
}

// TaskTimeout is the per-page fetch deadline.
func (c Config) TaskTimeout() time.Duration {
	return time.Duration(c.Harvest.TaskTimeoutSeconds) * time.Second
}

// RequestTimeout is the per-request HTTP deadline.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	out := c
	if out.API.Key != "" {
		out.API.Key = "[redacted]"
	}
	if out.Database.DSN != "" {
		out.Database.DSN = "[redacted]"
	}
	return out
}
