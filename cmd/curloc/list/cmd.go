// Package listcmd implements the `curloc list` command.
package listcmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/models"
	"github.com/go-ports/curloc/internal/service"
)

// Command implements `curloc list`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	jsonOut bool
}

// New creates the list command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "list",
		Short: "List registered window locations",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	c.cmd.Flags().BoolVar(&c.jsonOut, "json", false, "Print entries as JSON")
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

	entries, err := reg.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.jsonOut {
		if entries == nil {
			entries = []models.Entry{}
		}
		b, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No registered locations.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tLOCATION\tPROGRAM\tPID\tREGISTERED")
	for _, e := range entries {
		program := e.Program
		if program == "" {
			program = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.Window, e.Location, program, e.WriterPID, e.RegisteredAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
