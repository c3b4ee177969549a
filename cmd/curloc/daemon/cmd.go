// Package daemoncmd implements the `curloc daemon` command.
package daemoncmd

import (
	"github.com/spf13/cobra"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/service"
)

// Command implements `curloc daemon`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the daemon command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "daemon",
		Short: "Serve the registry on a unix socket and follow window events",
		Long: `Run the registry in this process, serve writers and readers over the
daemon socket and evict entries as windows close. Exits when interrupted or
when the compositor stays unreachable past the reconnect budget.`,
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
	return service.RunDaemon(cmd.Context(), opts)
}
