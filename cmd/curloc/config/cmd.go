// Package configcmd implements the `curloc config` command group.
package configcmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/config"
	"github.com/go-ports/curloc/internal/service"
)

const configTemplate = `# curloc configuration

# auto: use the daemon when its socket answers, otherwise the local registry.
mode: auto                      # auto | daemon | local

wm:
  backend: auto                 # auto | hyprland | static
  # hyprland_signature: ...     # default: $HYPRLAND_INSTANCE_SIGNATURE
  # runtime_dir: /run/user/1000 # default: $XDG_RUNTIME_DIR

# Retries against the compositor. The first attempt is immediate.
reconnect:
  initial: 100ms
  max: 5s
  multiplier: 2
  attempts: 8

daemon:
  # socket: /run/user/1000/curloc.sock
  persist: false                # keep daemon entries in registry.db across restarts

# Logs of watch and daemon, written to curloc.log in the home directory.
log:
  level: info                   # debug | info | warn | error
  format: json                  # json | text
  max_size_mb: 10
  max_backups: 3
`

// Command implements `curloc config`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the config command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		Args:  cobra.NoArgs,
		RunE:  c.runShow,
	}
	c.cmd.AddCommand(
		newConfigInit(ctx),
		newSetHome(ctx),
		newClearHome(ctx),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) runShow(cmd *cobra.Command, _ []string) error {
	home, source := config.ResolveHome()
	if c.ctx.Home != "" {
		home = c.ctx.Home
		source = "flag"
	}
	cfg, err := service.LoadConfig(home)
	if err != nil {
		return err
	}
	socket, err := config.SocketPath(cfg)
	if err != nil {
		socket = fmt.Sprintf("<%v>", err)
	}
	data := map[string]any{
		"mode": cfg.Mode,
		"wm": map[string]any{
			"backend":            cfg.WM.Backend,
			"hyprland_signature": cfg.WM.HyprlandSignature,
			"runtime_dir":        cfg.WM.RuntimeDir,
		},
		"reconnect": map[string]any{
			"initial":    cfg.Reconnect.Initial.String(),
			"max":        cfg.Reconnect.Max.String(),
			"multiplier": cfg.Reconnect.Multiplier,
			"attempts":   cfg.Reconnect.Attempts,
		},
		"daemon": map[string]any{
			"socket":  socket,
			"persist": cfg.Daemon.Persist,
		},
		"log": map[string]any{
			"level":       cfg.Log.Level,
			"format":      cfg.Log.Format,
			"max_size_mb": cfg.Log.MaxSizeMB,
			"max_backups": cfg.Log.MaxBackups,
		},
		"home":        home,
		"home_source": source,
	}
	b, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(b))
	return nil
}

// ---------------------------------------------------------------------------
// config init
// ---------------------------------------------------------------------------

func newConfigInit(ctx *shared.Context) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home := ctx.HomeDir()
			cfgPath := filepath.Join(home, "config.yaml")
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				fmt.Fprintf(out, "Config already exists at %s\n", cfgPath)
				fmt.Fprintln(out, "Use --force to overwrite.")
				return nil
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, []byte(configTemplate), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")
	return cmd
}

// ---------------------------------------------------------------------------
// config set-home
// ---------------------------------------------------------------------------

func newSetHome(_ *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "set-home <path>",
		Short: "Persist the curloc home location (used when CURLOC_HOME is unset)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := config.SetPersistedHome(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(resolved, 0o700); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Persisted curloc home: %s\n", resolved)
			fmt.Fprintln(out, "Override anytime with CURLOC_HOME.")
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// config clear-home
// ---------------------------------------------------------------------------

func newClearHome(_ *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-home",
		Short: "Remove the persisted curloc home location from global config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			changed, err := config.ClearPersistedHome()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if changed {
				fmt.Fprintln(out, "Cleared persisted curloc home setting.")
			} else {
				fmt.Fprintln(out, "No persisted curloc home setting was found.")
			}
			return nil
		},
	}
}
