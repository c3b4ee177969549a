// Package getcmd implements the `curloc get` command.
package getcmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/service"
)

// Command implements `curloc get`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	jsonOut bool
}

// New creates the get command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "get",
		Short: "Print the location of the focused window",
		Long: `Print the location registered for the focused window, or the working
directory of the nearest ancestor of its process when none was registered.
On failure nothing is printed on stdout and the exit code names the reason.`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	c.cmd.Flags().BoolVar(&c.jsonOut, "json", false, "Print window, location and source as JSON")
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

	res, err := reg.Get(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.jsonOut {
		b, err := json.Marshal(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	fmt.Fprintln(out, res.Location)
	return nil
}
