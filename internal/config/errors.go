package config

import "errors"

var (
	// ErrEmptyTargetsPath is returned when no targets file is configured
	ErrEmptyTargetsPath = errors.New("targets_path cannot be empty")
	// ErrInvalidStrategy is returned for an unknown pagination strategy
	ErrInvalidStrategy = errors.New("strategy must be auto, sequential, batch or streaming")
	// ErrInvalidWorkers is returned when workers is not greater than 0
	ErrInvalidWorkers = errors.New("workers must be greater than 0")
	// ErrInvalidDetailWorkers is returned when detail_workers is not greater than 0
	ErrInvalidDetailWorkers = errors.New("detail_workers must be greater than 0")
	// ErrInvalidBatchSize is returned when batch_size is negative
	ErrInvalidBatchSize = errors.New("batch_size cannot be negative")
	// ErrInvalidStartPage is returned when start_page is below 1
	ErrInvalidStartPage = errors.New("start_page must be at least 1")
	// ErrInvalidPageSize is returned when page_size is not greater than 0
	ErrInvalidPageSize = errors.New("page_size must be greater than 0")
	// ErrInvalidEmptyLimit is returned when empty_page_limit is not greater than 0
	ErrInvalidEmptyLimit = errors.New("empty_page_limit must be greater than 0")
	// ErrInvalidTimeout is returned when request_timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidDelay is returned when request_delay is negative
	ErrInvalidDelay = errors.New("request_delay cannot be negative")
	// ErrInvalidBackoff is returned when the backoff parameters are out of range
	ErrInvalidBackoff = errors.New("backoff_base must be at least 1, backoff_jitter non-negative and backoff_cap positive")
	// ErrInvalidFormat is returned for an unknown output format
	ErrInvalidFormat = errors.New("format must be csv, jsonl or sqlite")
	// ErrEmptyOutputDir is returned when a file sink has no output directory
	ErrEmptyOutputDir = errors.New("output_dir cannot be empty")
	// ErrEmptyDatabasePath is returned when the sqlite sink has no database path
	ErrEmptyDatabasePath = errors.New("database_path cannot be empty")
)
