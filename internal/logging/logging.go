// Package logging builds the slog loggers used by curloc. Long-running
// commands log JSON to a rotated file under the curloc home; one-shot CLI
// commands discard logs unless debug output was requested.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names attached to log records.
const (
	CompWM     = "wm"
	CompEngine = "engine"
	CompIPC    = "ipc"
	CompDaemon = "daemon"
	CompMCP    = "mcp"
)

// FileName is the log file created inside Config.Dir.
const FileName = "curloc.log"

// Config holds logging configuration.
type Config struct {
	// Dir enables file logging to Dir/curloc.log when non-empty.
	Dir string

	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string

	// Format is "json" (default) or "text".
	Format string

	// MaxSizeMB is the size in MB before rotation (default: 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default: 3).
	MaxBackups int

	// Debug forces debug level and mirrors records to Stderr.
	Debug bool

	// Stderr receives debug output; defaults to os.Stderr.
	Stderr io.Writer
}

// New returns a logger for cfg and a function that flushes and closes any
// file it opened.
func New(cfg Config) (*slog.Logger, func() error) {
	noop := func() error { return nil }

	if cfg.Dir == "" && !cfg.Debug {
		return slog.New(slog.DiscardHandler), noop
	}
	cfg = cfg.withDefaults()

	level := ParseLevel(cfg.Level)
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Dir == "" {
		return slog.New(slog.NewTextHandler(cfg.Stderr, opts)), noop
	}

	lj := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, FileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	var w io.Writer = lj
	if cfg.Debug {
		w = io.MultiWriter(lj, cfg.Stderr)
	}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h), lj.Close
}

// withDefaults fills unset sizes and writers. Zero backups would make
// lumberjack keep every rotated file, so it falls back to the default too.
func (cfg Config) withDefaults() Config {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return cfg
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ForComponent returns a sub-logger with the component field set.
func ForComponent(l *slog.Logger, name string) *slog.Logger {
	return l.With("component", name)
}
