// Package logging builds the process logger. Playback takes over the
// terminal, so logs never go to stdout or stderr: they are written as JSON to
// a size-rotated file when one is configured, and otherwise kept in memory.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Defaults applied when [Config] leaves a field unset.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxFiles   = 5
	DefaultRingLength = 1000
)

// Config describes where logs go.
type Config struct {
	Level slog.Level
	// File is the log file path. Empty keeps logs in memory.
	File      string
	MaxSizeMB int
	// MaxFiles is the number of rotated backups kept. Negative means the
	// default; zero keeps none.
	MaxFiles int
	// RingLength bounds the in-memory buffer used when File is empty.
	RingLength int
}

// Logger is a configured logger plus the resources behind it.
type Logger struct {
	*slog.Logger

	// Ring is set when logs are kept in memory.
	Ring *RingHandler

	closer io.Closer
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	if cfg.File == "" {
		n := cfg.RingLength
		if n <= 0 {
			n = DefaultRingLength
		}
		ring := NewRingHandler(n, cfg.Level)
		return &Logger{Logger: slog.New(ring), Ring: ring}, nil
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeMB
	}
	maxFiles := cfg.MaxFiles
	if maxFiles < 0 {
		maxFiles = DefaultMaxFiles
	}
	w, err := NewRotatingFileWriter(cfg.File, maxSize, maxFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
	}
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})),
		closer: w,
	}, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel accepts debug, info, warn and error, case-insensitively. The
// empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}
