// Package setupcmd implements the `curloc setup` command group.
package setupcmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-ports/curloc/cmd/curloc/shared"
	"github.com/go-ports/curloc/internal/setup"
)

// Command implements `curloc setup`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the setup command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "setup",
		Short: "Install a curloc writer hook for a shell, editor or agent",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		newRCCommand("zsh", "Register the directory on every cd in zsh", setup.SetupZsh),
		newRCCommand("bash", "Register the directory on every prompt after a cd in bash", setup.SetupBash),
		newDirCommand("fish", "Install conf.d/curloc.fish", setup.SetupFish),
		newDirCommand("nvim", "Install plugin/curloc.lua for nvim", setup.SetupNvim),
		newSetupClaudeCode(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func newRCCommand(name, short string, fn func(string) setup.Result) *cobra.Command {
	var rcFile string
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Report(cmd, fn(rcFile))
		},
	}
	cmd.Flags().StringVar(&rcFile, "rc-file", "", "Path to the shell rc file")
	return cmd
}

func newDirCommand(name, short string, fn func(string) setup.Result) *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Report(cmd, fn(configDir))
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to the "+name+" configuration directory")
	return cmd
}

func newSetupClaudeCode() *cobra.Command {
	var configDir string
	var project bool
	cmd := &cobra.Command{
		Use:   "claude-code",
		Short: "Register the curloc MCP server with Claude Code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := ResolveConfigDir(".claude", configDir, project)
			return Report(cmd, setup.SetupClaudeCode(target, project))
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to .claude directory")
	cmd.Flags().BoolVar(&project, "project", false, "Install in current project instead of globally")
	return cmd
}

// Report prints result and turns a failed result into an error.
func Report(cmd *cobra.Command, result setup.Result) error {
	if result.Failed() {
		return errors.New(result.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	return nil
}

// ResolveConfigDir picks configDir, the project's dotDir or the user's dotDir.
//
//revive:disable:flag-parameter
func ResolveConfigDir(dotDir, configDir string, project bool) string {
	if configDir != "" {
		return configDir
	}
	if project {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, dotDir)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dotDir)
}

//revive:enable:flag-parameter
