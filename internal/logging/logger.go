// Package logging configures the structured logger used across the
// harvester: JSON output to stdout and/or a size-rotated log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config represents the logging configuration.
type Config struct {
	Level      string // debug, info, warn or error
	File       string // log file path, empty disables file output
	MaxSizeMB  int    // rotate the file beyond this size
	MaxBackups int    // rotated files kept around
	Console    bool   // mirror output to stdout
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds the logger, installs it as slog.Default and returns it
// together with a closer for the log file, if any.
func Setup(cfg Config) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	closer := io.Closer(nopCloser{})

	if cfg.Console {
		writers = append(writers, os.Stdout)
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return nil, nil, err
		}
		maxBytes := int64(cfg.MaxSizeMB) * 1024 * 1024
		rw, err := NewRotatingWriter(cfg.File, maxBytes, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, rw)
		closer = rw
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}))
	slog.SetDefault(logger)
	return logger, closer, nil
}
