// Package config handles configuration loading and curloc home resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// Deployment modes.
const (
	ModeAuto   = "auto"   // use the daemon when it answers, else local
	ModeDaemon = "daemon" // always talk to the daemon
	ModeLocal  = "local"  // always use the SQLite registry directly
)

// WMConfig selects and configures the window manager backend.
type WMConfig struct {
	Backend           string `yaml:"backend"`            // "auto" | "hyprland" | "static"
	HyprlandSignature string `yaml:"hyprland_signature"` // overrides $HYPRLAND_INSTANCE_SIGNATURE
	RuntimeDir        string `yaml:"runtime_dir"`        // overrides $XDG_RUNTIME_DIR for socket lookup
}

// ReconnectConfig bounds retries against the window manager.
type ReconnectConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Attempts   int           `yaml:"attempts"`
}

// DaemonConfig controls the long-lived registry process.
type DaemonConfig struct {
	Socket  string `yaml:"socket"`  // defaults to <runtime dir>/curloc.sock
	Persist bool   `yaml:"persist"` // back the daemon registry with SQLite
}

// LogConfig controls structured logging for long-running commands.
type LogConfig struct {
	Level      string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format     string `yaml:"format"` // "json" | "text"
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Config is the root configuration.
type Config struct {
	Mode      string          `yaml:"mode"`
	WM        WMConfig        `yaml:"wm"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Mode: ModeAuto,
		WM: WMConfig{
			Backend: "auto",
		},
		Reconnect: ReconnectConfig{
			Initial:    100 * time.Millisecond,
			Max:        5 * time.Second,
			Multiplier: 2,
			Attempts:   8,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads config.yaml from path.
// If the file does not exist it returns Default() with no error.
// Missing keys retain their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Unmarshal into a plain map so we can apply only the keys that are present.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if v, ok := raw["mode"].(string); ok && v != "" {
		switch v {
		case ModeAuto, ModeDaemon, ModeLocal:
			cfg.Mode = v
		default:
			return nil, fmt.Errorf("config: unknown mode %q", v)
		}
	}

	if wm, ok := raw["wm"].(map[string]any); ok {
		if v, ok := wm["backend"].(string); ok && v != "" {
			cfg.WM.Backend = v
		}
		if v, ok := wm["hyprland_signature"].(string); ok {
			cfg.WM.HyprlandSignature = v
		}
		if v, ok := wm["runtime_dir"].(string); ok {
			cfg.WM.RuntimeDir = v
		}
	}

	if rc, ok := raw["reconnect"].(map[string]any); ok {
		if err := durationKey(rc, "initial", &cfg.Reconnect.Initial); err != nil {
			return nil, err
		}
		if err := durationKey(rc, "max", &cfg.Reconnect.Max); err != nil {
			return nil, err
		}
		switch v := rc["multiplier"].(type) {
		case float64:
			cfg.Reconnect.Multiplier = v
		case int:
			cfg.Reconnect.Multiplier = float64(v)
		}
		if v, ok := rc["attempts"].(int); ok && v > 0 {
			cfg.Reconnect.Attempts = v
		}
	}

	if d, ok := raw["daemon"].(map[string]any); ok {
		if v, ok := d["socket"].(string); ok {
			cfg.Daemon.Socket = v
		}
		if v, ok := d["persist"].(bool); ok {
			cfg.Daemon.Persist = v
		}
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v, ok := lg["level"].(string); ok && v != "" {
			cfg.Log.Level = v
		}
		if v, ok := lg["format"].(string); ok && v != "" {
			cfg.Log.Format = v
		}
		if v, ok := lg["max_size_mb"].(int); ok && v > 0 {
			cfg.Log.MaxSizeMB = v
		}
		if v, ok := lg["max_backups"].(int); ok && v >= 0 {
			cfg.Log.MaxBackups = v
		}
	}

	return cfg, nil
}

// durationKey parses m[key] as a Go duration string ("250ms", "5s") into dst.
func durationKey(m map[string]any, key string, dst *time.Duration) error {
	v, ok := m[key].(string)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: reconnect.%s: %w", key, err)
	}
	*dst = d
	return nil
}

// ---------------------------------------------------------------------------
// Runtime paths
// ---------------------------------------------------------------------------

// RuntimeDir returns the per-user runtime directory used for IPC sockets.
// Priority: override → $XDG_RUNTIME_DIR → /run/user/<uid> → /tmp/curloc-<uid>.
func RuntimeDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}
	uid := os.Getuid()
	runUser := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUser); err == nil && info.IsDir() {
		return runUser, nil
	}
	tmp := fmt.Sprintf("/tmp/curloc-%d", uid)
	if err := os.MkdirAll(tmp, 0o700); err != nil {
		return "", fmt.Errorf("create runtime dir: %w", err)
	}
	return tmp, nil
}

// SocketPath returns the daemon socket path for cfg.
func SocketPath(cfg *Config) (string, error) {
	if cfg.Daemon.Socket != "" {
		return normalizePath(cfg.Daemon.Socket)
	}
	dir, err := RuntimeDir(cfg.WM.RuntimeDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "curloc.sock"), nil
}

// ---------------------------------------------------------------------------
// Home resolution
// ---------------------------------------------------------------------------

// globalConfigPath returns the path to the global curloc config file.
// This file stores only home (and future global settings).
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "curloc", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// defaultHome returns $XDG_STATE_HOME/curloc or ~/.local/state/curloc.
func defaultHome() string {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "curloc")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "curloc")
}

// ResolveHome returns the curloc home path and the source of the resolution.
// Priority: CURLOC_HOME env → persisted global config → XDG state dir.
// source is one of "env", "config", or "default".
func ResolveHome() (path, source string) {
	if env := os.Getenv("CURLOC_HOME"); env != "" {
		p, err := normalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedHome(); ok {
		return persisted, "config"
	}

	return defaultHome(), "default"
}

// GetHome returns the resolved curloc home path.
func GetHome() string {
	path, _ := ResolveHome()
	return path
}

// GetPersistedHome reads home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedHome() (string, bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", false, nil
	}

	val, _ := raw["home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", err
	}

	// Read existing global config, preserving any other keys.
	var raw map[string]any
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["home"] = normalized

	out, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedHome removes home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedHome() (bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false, nil
	}

	if _, ok := raw["home"]; !ok {
		return false, nil
	}
	delete(raw, "home")

	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return true, nil
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(cfgPath, out, 0o600)
}
