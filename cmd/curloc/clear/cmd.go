// Package clearcmd implements the `curloc clear` command.
package clearcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/service"
)

// Command implements `curloc clear`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the clear command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "clear",
		Short: "Forget every registered location",
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

	if err := reg.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cleared all registered locations.")
	return nil
}
