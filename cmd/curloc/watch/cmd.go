// Package watchcmd implements the `curloc watch` command.
package watchcmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/service"
)

// Command implements `curloc watch`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the watch command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "watch",
		Short: "Evict locations of closed windows from the local registry",
		Long: `Subscribe to compositor window events and evict the entry of every window
that closes, until interrupted. Use this instead of the daemon when writers
and readers open the SQLite registry directly (mode: local).`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	cfg, err := service.LoadConfig(c.ctx.HomeDir())
	if err != nil {
		return err
	}
	opts, closeLog := c.ctx.LongRunningOptions(cfg)
	defer closeLog()

	local, err := service.OpenLocal(opts)
	if err != nil {
		return err
	}
	defer local.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching window events (registry %s)\n", local.Home)
	if err := local.Watch(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
