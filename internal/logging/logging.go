// Package logging sets up the process-wide structured logger: an
// append-only, timestamped log file plus an optional console mirror.
//
// The logger is created once at startup with Open and must be closed at exit
// so the file is synced. Components receive the *slog.Logger explicitly.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Config describes where log records go.
type Config struct {
	File    string // append-only log file; empty disables file output
	Level   string // debug, info, warn, error
	Console bool   // mirror records to ConsoleWriter

	// ConsoleWriter defaults to os.Stderr.
	ConsoleWriter io.Writer
	// ConsoleLevel overrides Level for the console mirror when non-empty.
	ConsoleLevel string
}

// Output owns the logger and the file behind it.
type Output struct {
	Logger *slog.Logger
	file   *os.File
}

// Open creates the logger described by cfg.
func Open(cfg Config) (*Output, error) {
	level := ParseLevel(cfg.Level)

	var handlers []slog.Handler
	out := &Output{}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out.file = f
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}

	if cfg.Console {
		w := cfg.ConsoleWriter
		if w == nil {
			w = os.Stderr
		}
		consoleLevel := level
		if cfg.ConsoleLevel != "" {
			consoleLevel = ParseLevel(cfg.ConsoleLevel)
		}
		handlers = append(handlers, tint.NewHandler(w, &tint.Options{
			Level:      consoleLevel,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		}))
	}

	switch len(handlers) {
	case 0:
		out.Logger = Discard()
	case 1:
		out.Logger = slog.New(handlers[0])
	default:
		out.Logger = slog.New(newMultiHandler(handlers...))
	}

	return out, nil
}

// Close syncs and closes the log file.
func (o *Output) Close() error {
	if o == nil || o.file == nil {
		return nil
	}
	_ = o.file.Sync()
	err := o.file.Close()
	o.file = nil
	return err
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
