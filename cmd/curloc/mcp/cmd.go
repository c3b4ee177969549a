// Package mcpcmd implements the `curloc mcp` command.
package mcpcmd

import (
	"github.com/spf13/cobra"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	internalmcp "github.com/go-ports/curloc/internal/mcp"
)

// Command implements `curloc mcp`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the mcp command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "mcp",
		Short: "Start the curloc MCP server (stdio transport)",
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
	return internalmcp.Serve(cmd.Context(), opts)
}
