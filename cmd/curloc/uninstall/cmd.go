// Package uninstallcmd implements the `curloc uninstall` command group.
package uninstallcmd

import (
	"github.com/spf13/cobra"

	setupcmd "github.com/go-ports/curloc/cmd/curloc/setup"
	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/setup"
)

// Command implements `curloc uninstall`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the uninstall command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Remove a curloc writer hook",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		newRCCommand("zsh", setup.UninstallZsh),
		newRCCommand("bash", setup.UninstallBash),
		newDirCommand("fish", setup.UninstallFish),
		newDirCommand("nvim", setup.UninstallNvim),
		newUninstallClaudeCode(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func newRCCommand(name string, fn func(string) setup.Result) *cobra.Command {
	var rcFile string
	cmd := &cobra.Command{
		Use:   name,
		Short: "Remove the curloc hook from the " + name + " rc file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return setupcmd.Report(cmd, fn(rcFile))
		},
	}
	cmd.Flags().StringVar(&rcFile, "rc-file", "", "Path to the shell rc file")
	return cmd
}

func newDirCommand(name string, fn func(string) setup.Result) *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   name,
		Short: "Remove the curloc hook from " + name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return setupcmd.Report(cmd, fn(configDir))
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to the "+name+" configuration directory")
	return cmd
}

func newUninstallClaudeCode() *cobra.Command {
	var configDir string
	var project bool
	cmd := &cobra.Command{
		Use:   "claude-code",
		Short: "Remove the curloc MCP server from Claude Code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := setupcmd.ResolveConfigDir(".claude", configDir, project)
			return setupcmd.Report(cmd, setup.UninstallClaudeCode(target, project))
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to .claude directory")
	cmd.Flags().BoolVar(&project, "project", false, "Uninstall from current project instead of globally")
	return cmd
}
