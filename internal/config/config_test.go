package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/curloc/internal/config"
)

func TestDefault_HappyPath(t *testing.T) {
	c := qt.New(t)
	cfg := config.Default()
	c.Assert(cfg, qt.IsNotNil)
	c.Assert(cfg.Mode, qt.Equals, config.ModeAuto)
	c.Assert(cfg.WM.Backend, qt.Equals, "auto")
	c.Assert(cfg.Reconnect.Initial, qt.Equals, 100*time.Millisecond)
	c.Assert(cfg.Reconnect.Max, qt.Equals, 5*time.Second)
	c.Assert(cfg.Reconnect.Multiplier, qt.Equals, 2.0)
	c.Assert(cfg.Reconnect.Attempts, qt.Equals, 8)
	c.Assert(cfg.Daemon.Persist, qt.IsFalse)
	c.Assert(cfg.Log.Level, qt.Equals, "info")
}

func TestLoad_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Run("non-existent file returns defaults without error", func(c *qt.C) {
		cfg, err := config.Load("/nonexistent/config.yaml")
		c.Assert(err, qt.IsNil)
		c.Assert(cfg, qt.IsNotNil)
		c.Assert(cfg.Mode, qt.Equals, config.ModeAuto)
		c.Assert(cfg.WM.Backend, qt.Equals, "auto")
	})

	tests := []struct {
		name         string
		yaml         string
		wantMode     string
		wantBackend  string
		wantInitial  time.Duration
		wantMax      time.Duration
		wantAttempts int
		wantPersist  bool
		wantSocket   string
	}{
		{
			name:         "mode local",
			yaml:         "mode: local\n",
			wantMode:     config.ModeLocal,
			wantBackend:  "auto",
			wantInitial:  100 * time.Millisecond,
			wantMax:      5 * time.Second,
			wantAttempts: 8,
		},
		{
			name:         "static backend",
			yaml:         "wm:\n  backend: static\n",
			wantMode:     config.ModeAuto,
			wantBackend:  "static",
			wantInitial:  100 * time.Millisecond,
			wantMax:      5 * time.Second,
			wantAttempts: 8,
		},
		{
			name:         "reconnect overrides",
			yaml:         "reconnect:\n  initial: 50ms\n  max: 2s\n  attempts: 3\n  multiplier: 3\n",
			wantMode:     config.ModeAuto,
			wantBackend:  "auto",
			wantInitial:  50 * time.Millisecond,
			wantMax:      2 * time.Second,
			wantAttempts: 3,
		},
		{
			name:         "daemon section",
			yaml:         "mode: daemon\ndaemon:\n  socket: /run/x/curloc.sock\n  persist: true\n",
			wantMode:     config.ModeDaemon,
			wantBackend:  "auto",
			wantInitial:  100 * time.Millisecond,
			wantMax:      5 * time.Second,
			wantAttempts: 8,
			wantPersist:  true,
			wantSocket:   "/run/x/curloc.sock",
		},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			c.Assert(os.WriteFile(path, []byte(tt.yaml), 0o600), qt.IsNil)

			cfg, err := config.Load(path)
			c.Assert(err, qt.IsNil)
			c.Assert(cfg.Mode, qt.Equals, tt.wantMode)
			c.Assert(cfg.WM.Backend, qt.Equals, tt.wantBackend)
			c.Assert(cfg.Reconnect.Initial, qt.Equals, tt.wantInitial)
			c.Assert(cfg.Reconnect.Max, qt.Equals, tt.wantMax)
			c.Assert(cfg.Reconnect.Attempts, qt.Equals, tt.wantAttempts)
			c.Assert(cfg.Daemon.Persist, qt.Equals, tt.wantPersist)
			c.Assert(cfg.Daemon.Socket, qt.Equals, tt.wantSocket)
		})
	}
}

func TestLoad_FailurePath(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown mode", "mode: cloud\n"},
		{"bad duration", "reconnect:\n  initial: soon\n"},
		{"malformed yaml", "mode: [unterminated\n"},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			c.Assert(os.WriteFile(path, []byte(tt.yaml), 0o600), qt.IsNil)
			_, err := config.Load(path)
			c.Assert(err, qt.IsNotNil)
		})
	}
}

func TestResolveHome_EnvOverride(t *testing.T) {
	c := qt.New(t)

	tmp := t.TempDir()
	t.Setenv("CURLOC_HOME", tmp)

	path, source := config.ResolveHome()
	c.Assert(source, qt.Equals, "env")
	c.Assert(path, qt.Equals, tmp)
}

func TestResolveHome_Default(t *testing.T) {
	c := qt.New(t)

	t.Setenv("CURLOC_HOME", "")
	t.Setenv("HOME", t.TempDir())
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	path, source := config.ResolveHome()
	c.Assert(source, qt.Equals, "default")
	c.Assert(path, qt.Equals, filepath.Join(state, "curloc"))
}

func TestPersistedHome_RoundTrip(t *testing.T) {
	c := qt.New(t)

	t.Setenv("CURLOC_HOME", "")
	t.Setenv("HOME", t.TempDir())

	_, ok, err := config.GetPersistedHome()
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	target := t.TempDir()
	got, err := config.SetPersistedHome(target)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, target)

	path, source := config.ResolveHome()
	c.Assert(source, qt.Equals, "config")
	c.Assert(path, qt.Equals, target)

	changed, err := config.ClearPersistedHome()
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsTrue)

	changed, err = config.ClearPersistedHome()
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsFalse)
}

func TestSocketPath(t *testing.T) {
	c := qt.New(t)

	c.Run("explicit socket wins", func(c *qt.C) {
		cfg := config.Default()
		cfg.Daemon.Socket = "/tmp/x/curloc.sock"
		p, err := config.SocketPath(cfg)
		c.Assert(err, qt.IsNil)
		c.Assert(p, qt.Equals, "/tmp/x/curloc.sock")
	})

	c.Run("runtime dir override", func(c *qt.C) {
		dir := t.TempDir()
		cfg := config.Default()
		cfg.WM.RuntimeDir = dir
		p, err := config.SocketPath(cfg)
		c.Assert(err, qt.IsNil)
		c.Assert(p, qt.Equals, filepath.Join(dir, "curloc.sock"))
	})

	c.Run("XDG_RUNTIME_DIR", func(c *qt.C) {
		dir := t.TempDir()
		c.Setenv("XDG_RUNTIME_DIR", dir)
		p, err := config.SocketPath(config.Default())
		c.Assert(err, qt.IsNil)
		c.Assert(p, qt.Equals, filepath.Join(dir, "curloc.sock"))
	})
}
