// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured component logger used by hostblock.
//
// A Logger wraps log/slog. Console output goes through charmbracelet/log,
// JSON output through slog's JSON handler. Every long-lived component takes
// a child logger from WithComponent so lines can be filtered by subsystem.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/rbmk-project/common/errclass"
)

// Level is a logging severity.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Config controls logger construction.
type Config struct {
	Level  Level
	Output io.Writer
	JSON   bool
	// Timestamps is ignored for JSON output, which always carries time.
	Timestamps bool
}

// DefaultConfig logs at info level to stderr with timestamps.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Output:     os.Stderr,
		Timestamps: true,
	}
}

// Logger is a component-aware structured logger.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.Level})
	} else {
		h = charmlog.NewWithOptions(out, charmlog.Options{
			Level:           charmlog.Level(cfg.Level),
			ReportTimestamp: cfg.Timestamps,
			TimeFormat:      time.DateTime,
		})
	}
	return &Logger{Logger: slog.New(h)}
}

// WithComponent returns a child logger tagged with component=name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// With returns a child logger with the given key/value pairs attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithError attaches err and its errclass classification.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{Logger: l.Logger.With("error", err.Error(), "err_class", errclass.New(err))}
}

// ParseLevel maps debug/info/warn/error (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New(DefaultConfig()))
}

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// WithComponent returns a child of the default logger.
func WithComponent(name string) *Logger {
	return Default().WithComponent(name)
}

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
