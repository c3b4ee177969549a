// Package shared holds the context passed to all CLI commands.
package shared

import (
	"io"

	"github.com/go-ports/curloc/internal/config"
	"github.com/go-ports/curloc/internal/logging"
	"github.com/go-ports/curloc/internal/service"
)

// ActivePIDEnv supplies --active-pid when the flag is not given.
const ActivePIDEnv = "CURLOC_ACTIVE_PID"

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// Home overrides the curloc home directory.
	// When empty, resolution falls through to CURLOC_HOME env var → persisted config → XDG state dir.
	Home string

	// ActivePID names the process standing in for the focused window and
	// selects the static backend.
	ActivePID int

	// Debug mirrors debug logs to stderr.
	Debug bool

	// Stderr receives debug logs; set by the root command.
	Stderr io.Writer
}

// HomeDir returns the effective curloc home.
func (c *Context) HomeDir() string {
	if c.Home != "" {
		return c.Home
	}
	return config.GetHome()
}

// Options returns service options for one-shot commands, which only log
// when --debug is set.
func (c *Context) Options() (service.Options, func() error) {
	log, closeLog := logging.New(logging.Config{Debug: c.Debug, Stderr: c.Stderr})
	return service.Options{Home: c.HomeDir(), ActivePID: c.ActivePID, Log: log}, closeLog
}

// LongRunningOptions returns service options for watch and daemon, which
// log to the rotated file under the home as configured by cfg.Log.
func (c *Context) LongRunningOptions(cfg *config.Config) (service.Options, func() error) {
	home := c.HomeDir()
	log, closeLog := logging.New(logging.Config{
		Dir:        home,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Debug:      c.Debug,
		Stderr:     c.Stderr,
	})
	return service.Options{Home: home, ActivePID: c.ActivePID, Log: log}, closeLog
}
