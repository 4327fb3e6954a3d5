// Package config provides configuration management for the harvester.
// It defines the runtime settings shared by every crawl session and
// their default values.
package config

import (
	"time"
)

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn or error
	File       string `mapstructure:"file" yaml:"file"`               // Log file path, empty disables file output
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Rotate the log file beyond this size
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files kept around
	Console    bool   `mapstructure:"console" yaml:"console"`         // Mirror log output to stdout
}

// Config holds harvester configuration.
type Config struct {
	// Target selection
	TargetsPath string `mapstructure:"targets_path" yaml:"targets_path"` // Path to the targets YAML file

	// Pagination parameters
	Strategy       string `mapstructure:"strategy" yaml:"strategy"`                 // auto, sequential, batch or streaming
	Workers        int    `mapstructure:"workers" yaml:"workers"`                   // Concurrent page fetches per session
	DetailWorkers  int    `mapstructure:"detail_workers" yaml:"detail_workers"`     // Concurrent detail fetches per page
	BatchSize      int    `mapstructure:"batch_size" yaml:"batch_size"`             // Pages per batch window, 0 uses workers
	StartPage      int    `mapstructure:"start_page" yaml:"start_page"`             // First page number to fetch
	PageSize       int    `mapstructure:"page_size" yaml:"page_size"`               // Fallback page size for targets that omit one
	EmptyPageLimit int    `mapstructure:"empty_page_limit" yaml:"empty_page_limit"` // Consecutive empty pages that end a session

	// HTTP parameters
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // Per-attempt HTTP timeout
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`     // Minimum spacing between requests per host
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header

	// Retry backoff: delay = min(base^attempt + jitter, cap)
	BackoffBase   float64       `mapstructure:"backoff_base" yaml:"backoff_base"`     // Exponent base in seconds
	BackoffJitter time.Duration `mapstructure:"backoff_jitter" yaml:"backoff_jitter"` // Upper bound of the random jitter
	BackoffCap    time.Duration `mapstructure:"backoff_cap" yaml:"backoff_cap"`       // Hard ceiling on a single delay

	// Business-failure detection
	FailureKeywords []string `mapstructure:"failure_keywords" yaml:"failure_keywords"` // Extra keywords scanned in response messages

	// Output
	Format       string `mapstructure:"format" yaml:"format"`               // csv, jsonl or sqlite
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`       // Directory for file-based sinks
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // SQLite file for the sqlite sink

	// Observability
	StatusFile  string `mapstructure:"status_file" yaml:"status_file"`   // Progress snapshot path, empty disables
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"` // Prometheus listen address, empty disables

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		TargetsPath:    "./targets.yml",
		Strategy:       "auto",
		Workers:        2,
		DetailWorkers:  2,
		BatchSize:      0, // follows workers
		StartPage:      1,
		PageSize:       20,
		EmptyPageLimit: 3,
		RequestTimeout: 30 * time.Second,
		RequestDelay:   0,
		UserAgent:      "apiharvest/1.0",
		BackoffBase:    3,
		BackoffJitter:  10 * time.Second,
		BackoffCap:     10 * time.Minute,
		Format:         "csv",
		OutputDir:      "./out",
		DatabasePath:   "./apiharvest.db",
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Console:    true,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TargetsPath == "" {
		return ErrEmptyTargetsPath
	}

	switch c.Strategy {
	case "auto", "sequential", "batch", "streaming":
	default:
		return ErrInvalidStrategy
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.DetailWorkers <= 0 {
		return ErrInvalidDetailWorkers
	}
	if c.BatchSize < 0 {
		return ErrInvalidBatchSize
	}
	if c.StartPage < 1 {
		return ErrInvalidStartPage
	}
	if c.PageSize <= 0 {
		return ErrInvalidPageSize
	}
	if c.EmptyPageLimit <= 0 {
		return ErrInvalidEmptyLimit
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RequestDelay < 0 {
		return ErrInvalidDelay
	}

	if c.BackoffBase < 1 || c.BackoffJitter < 0 || c.BackoffCap <= 0 {
		return ErrInvalidBackoff
	}

	switch c.Format {
	case "csv", "jsonl":
		if c.OutputDir == "" {
			return ErrEmptyOutputDir
		}
	case "sqlite":
		if c.DatabasePath == "" {
			return ErrEmptyDatabasePath
		}
	default:
		return ErrInvalidFormat
	}

	return nil
}

// EffectiveBatchSize returns the batch window size, falling back to the
// worker count when none is configured.
func (c *Config) EffectiveBatchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return c.Workers
}
