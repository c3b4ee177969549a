// Package rootcmd wires the root cobra.Command for the curloc CLI binary.
package rootcmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	clearcmd "github.com/go-ports/curloc/cmd/curloc/clear"
	configcmd "github.com/go-ports/curloc/cmd/curloc/config"
	daemoncmd "github.com/go-ports/curloc/cmd/curloc/daemon"
	getcmd "github.com/go-ports/curloc/cmd/curloc/get"
	listcmd "github.com/go-ports/curloc/cmd/curloc/list"
	mcpcmd "github.com/go-ports/curloc/cmd/curloc/mcp"
	prunecmd "github.com/go-ports/curloc/cmd/curloc/prune"
	setupcmd "github.com/go-ports/curloc/cmd/curloc/setup"
	"github.com/go-ports/curloc/cmd/curloc/shared"
	uninstallcmd "github.com/go-ports/curloc/cmd/curloc/uninstall"
	watchcmd "github.com/go-ports/curloc/cmd/curloc/watch"
	writecmd "github.com/go-ports/curloc/cmd/curloc/write"
	"github.com/go-ports/curloc/internal/buildinfo"
	"github.com/go-ports/curloc/internal/models"
)

// New creates and returns the root cobra.Command for the curloc CLI.
func New() *cobra.Command {
	ctx := &shared.Context{}

	root := &cobra.Command{
		Use:           "curloc",
		Short:         "curloc — where is the user working right now",
		Long:          "curloc remembers the directory each desktop window works in and resolves\nthe location of the focused window for tools launched from the desktop.",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx.Stderr = cmd.ErrOrStderr()
			if cmd.Flags().Changed("active-pid") {
				return nil
			}
			env := os.Getenv(shared.ActivePIDEnv)
			if env == "" {
				return nil
			}
			pid, err := strconv.Atoi(env)
			if err != nil {
				return fmt.Errorf("%s=%q: not a pid", shared.ActivePIDEnv, env)
			}
			ctx.ActivePID = pid
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&ctx.Home, "home", "",
		"Override curloc home directory (default: $CURLOC_HOME env → persisted config → $XDG_STATE_HOME/curloc)")
	pf.IntVar(&ctx.ActivePID, "active-pid", 0,
		"Treat this process as the focused window, bypassing the compositor (env "+shared.ActivePIDEnv+")")
	pf.BoolVar(&ctx.Debug, "debug", false, "Write debug logs to stderr")

	root.AddCommand(
		writecmd.New(ctx).Cmd(),
		getcmd.New(ctx).Cmd(),
		listcmd.New(ctx).Cmd(),
		clearcmd.New(ctx).Cmd(),
		prunecmd.New(ctx).Cmd(),
		watchcmd.New(ctx).Cmd(),
		daemoncmd.New(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		setupcmd.New(ctx).Cmd(),
		uninstallcmd.New(ctx).Cmd(),
	)

	return root
}

// Execute runs the CLI with args and returns the process exit code. Failures
// are reported on stderr as "error[<Kind>]: <message>" and never on stdout.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := New()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return models.ExitOK
	}
	fmt.Fprintln(stderr, FormatError(err))
	return models.ExitCode(err)
}

// FormatError renders err with its kind prefix.
func FormatError(err error) string {
	if kind := models.KindOf(err); kind != "" {
		return fmt.Sprintf("error[%s]: %v", kind, err)
	}
	return fmt.Sprintf("error: %v", err)
}
