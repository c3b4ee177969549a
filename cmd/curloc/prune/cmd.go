// Package prunecmd implements the `curloc prune` command.
package prunecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/service"
)

// Command implements `curloc prune`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the prune command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "prune",
		Short: "Drop locations of windows that no longer exist",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	opts, closeLog := c.ctx.Options()
	defer closeLog()
	reg, err := service.Open(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer reg.Close()

	evicted, err := reg.Prune(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range evicted {
		fmt.Fprintf(out, "Evicted %s (%s)\n", e.Window, e.Location)
	}
	fmt.Fprintf(out, "Pruned %d entries.\n", len(evicted))
	return nil
}
