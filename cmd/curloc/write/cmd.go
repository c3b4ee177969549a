// Package writecmd implements the `curloc write` command.
package writecmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/models"
	"github.com/go-ports/curloc/internal/service"
)

// Command implements `curloc write`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	pid     int
	window  string
	program  string
	nvimPipe string
	verbose  bool
}

// New creates the write command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "write <location>",
		Short: "Register the location of the window that owns a process",
		Long: `Register <location> for the window that owns --pid (default: the process
that ran curloc, usually the calling shell or editor). The owner is the
nearest ancestor of the process that the compositor reports a window for.
--window registers for an explicit window id without asking the compositor.`,
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}

	f := c.cmd.Flags()
	f.IntVar(&c.pid, "pid", 0, "Process whose window owns the location (default: parent of curloc)")
	f.StringVar(&c.window, "window", "", "Explicit window id; skips owner lookup")
	f.StringVar(&c.program, "program", "", "Name of the registering program (e.g. zsh, nvim)")
	f.StringVar(&c.nvimPipe, "nvim-pipe", "", "RPC address of the writing Neovim (v:servername)")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "Print the window the location was registered for")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	pid := c.pid
	if pid <= 0 && c.window == "" {
		pid = os.Getppid()
	}

	opts, closeLog := c.ctx.Options()
	defer closeLog()
	reg, err := service.Open(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer reg.Close()

	window, err := reg.Write(cmd.Context(), models.WriteRequest{
		Location: models.Location(args[0]),
		PID:      pid,
		Window:   models.WindowID(c.window),
		Program:  c.program,
		NvimPipe: c.nvimPipe,
	})
	if err != nil {
		return err
	}
	if c.verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", window, args[0])
	}
	return nil
}
