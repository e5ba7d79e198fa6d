package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where launcher logs go. Console output is always on;
// File adds a rotating copy. Rotation parameters follow lumberjack semantics.
type Config struct {
	Level      string // debug, info, warn, error (default info)
	Color      bool   // ANSI level colors on the console
	File       string // optional log file path
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // Gzip rotated files
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Writer returns a rotating writer for c.File, or nil when no file is set.
func (c Config) Writer() io.WriteCloser {
	if c.File == "" {
		return nil
	}
	_ = os.MkdirAll(filepath.Dir(c.File), 0o750)
	return &lj.Logger{
		Filename:   c.File,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// New builds a logger writing to console and, if configured, to the log
// file. The returned closer releases the file and is never nil.
// Colors are only used when no file is configured so the file stays plain.
func New(c Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, nil, err
	}
	if console == nil {
		console = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	fw := c.Writer()
	if fw == nil {
		var h slog.Handler
		if c.Color {
			h = NewColorTextHandler(console, opts, true)
		} else {
			h = slog.NewTextHandler(console, opts)
		}
		return slog.New(h), nopCloser{}, nil
	}
	h := slog.NewTextHandler(io.MultiWriter(console, fw), opts)
	return slog.New(h), fw, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
