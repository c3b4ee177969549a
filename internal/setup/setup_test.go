package setup_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/curloc/internal/checkers"
	"github.com/go-ports/curloc/internal/setup"
)

// ---------------------------------------------------------------------------
// Shell rc hooks
// ---------------------------------------------------------------------------

func TestSetupShells(t *testing.T) {
	c := qt.New(t)

	shells := []struct {
		name      string
		setup     func(string) setup.Result
		uninstall func(string) setup.Result
		hookLine  string
	}{
		{"zsh", setup.SetupZsh, setup.UninstallZsh, "add-zsh-hook chpwd _curloc_chpwd"},
		{"bash", setup.SetupBash, setup.UninstallBash, "_curloc_prompt"},
	}

	for _, sh := range shells {
		c.Run(sh.name+" install appends a marked block", func(c *qt.C) {
			rc := filepath.Join(t.TempDir(), "rc")

			result := sh.setup(rc)
			c.Assert(result.Status, qt.Equals, "ok")
			c.Assert(result.Message, qt.Contains, "Installed")

			data, err := os.ReadFile(rc)
			c.Assert(err, qt.IsNil)
			c.Assert(string(data), qt.Contains, sh.hookLine)
			c.Assert(string(data), qt.Contains, "curloc write --program "+sh.name)
		})

		c.Run(sh.name+" second install is idempotent", func(c *qt.C) {
			rc := filepath.Join(t.TempDir(), "rc")

			sh.setup(rc)
			result := sh.setup(rc)
			c.Assert(result.Message, qt.Equals, "Already installed")

			data, err := os.ReadFile(rc)
			c.Assert(err, qt.IsNil)
			c.Assert(strings.Count(string(data), "# >>> curloc >>>"), qt.Equals, 1)
		})

		c.Run(sh.name+" uninstall preserves surrounding content", func(c *qt.C) {
			rc := filepath.Join(t.TempDir(), "rc")
			err := os.WriteFile(rc, []byte("export EDITOR=nvim"), 0o600)
			c.Assert(err, qt.IsNil)

			sh.setup(rc)
			f, err := os.OpenFile(rc, os.O_APPEND|os.O_WRONLY, 0o600)
			c.Assert(err, qt.IsNil)
			_, err = f.WriteString("alias ll='ls -l'\n")
			c.Assert(err, qt.IsNil)
			c.Assert(f.Close(), qt.IsNil)

			result := sh.uninstall(rc)
			c.Assert(result.Status, qt.Equals, "ok")
			c.Assert(result.Message, qt.Contains, "Removed")

			data, err := os.ReadFile(rc)
			c.Assert(err, qt.IsNil)
			content := string(data)
			c.Assert(content, qt.Contains, "export EDITOR=nvim")
			c.Assert(content, qt.Contains, "alias ll='ls -l'")
			c.Assert(strings.Contains(content, "curloc"), qt.IsFalse)
		})

		c.Run(sh.name+" nothing to remove when not installed", func(c *qt.C) {
			rc := filepath.Join(t.TempDir(), "rc")

			result := sh.uninstall(rc)
			c.Assert(result.Message, qt.Equals, "Nothing to remove")
			_, err := os.Stat(rc)
			c.Assert(os.IsNotExist(err), qt.IsTrue)
		})
	}
}

// ---------------------------------------------------------------------------
// fish / nvim owned files
// ---------------------------------------------------------------------------

func TestSetupFish(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.d", "curloc.fish")

	result := setup.SetupFish(dir)
	c.Assert(result.Status, qt.Equals, "ok")
	c.Assert(result.Message, qt.Contains, "Installed")
	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, "--on-variable PWD")
	c.Assert(string(data), qt.Contains, "--pid $fish_pid")

	c.Assert(setup.SetupFish(dir).Message, qt.Equals, "Already installed")

	result = setup.UninstallFish(dir)
	c.Assert(result.Message, qt.Contains, "Removed")
	_, err = os.Stat(path)
	c.Assert(os.IsNotExist(err), qt.IsTrue)

	c.Assert(setup.UninstallFish(dir).Message, qt.Equals, "Nothing to remove")
}

func TestSetupNvim(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin", "curloc.lua")

	result := setup.SetupNvim(dir)
	c.Assert(result.Message, qt.Contains, "Installed")
	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, `"DirChanged"`)
	c.Assert(string(data), qt.Contains, `"--program", "nvim"`)
	c.Assert(string(data), qt.Contains, `"--nvim-pipe", vim.v.servername`)

	c.Run("a modified plugin is rewritten", func(c *qt.C) {
		err := os.WriteFile(path, []byte("-- stale\n"), 0o600)
		c.Assert(err, qt.IsNil)
		c.Assert(setup.SetupNvim(dir).Message, qt.Contains, "Installed")
	})

	c.Assert(setup.UninstallNvim(dir).Message, qt.Contains, "Removed")
	c.Assert(setup.UninstallNvim(dir).Message, qt.Equals, "Nothing to remove")
}

// ---------------------------------------------------------------------------
// SetupClaudeCode / UninstallClaudeCode
// ---------------------------------------------------------------------------

func TestSetupClaudeCode_HappyPath(t *testing.T) {
	c := qt.New(t)

	// project=true writes filepath.Dir(claudeHome)/.mcp.json, which keeps
	// every case inside a temp dir.

	c.Run("first install creates .mcp.json with curloc entry", func(c *qt.C) {
		tmp := t.TempDir()
		claudeHome := filepath.Join(tmp, ".claude")

		result := setup.SetupClaudeCode(claudeHome, true)
		c.Assert(result.Status, qt.Equals, "ok")
		c.Assert(result.Message, qt.Contains, "Installed")

		data, err := os.ReadFile(filepath.Join(tmp, ".mcp.json"))
		c.Assert(err, qt.IsNil)
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.curloc.command"), "curloc")
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.curloc.args"), []any{"mcp"})
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.curloc.type"), "stdio")
	})

	c.Run("second install is idempotent", func(c *qt.C) {
		tmp := t.TempDir()
		claudeHome := filepath.Join(tmp, ".claude")

		setup.SetupClaudeCode(claudeHome, true)
		result := setup.SetupClaudeCode(claudeHome, true)
		c.Assert(result.Status, qt.Equals, "ok")
		c.Assert(result.Message, qt.Equals, "Already installed")
	})

	c.Run("other servers are kept", func(c *qt.C) {
		tmp := t.TempDir()
		claudeHome := filepath.Join(tmp, ".claude")
		mcpPath := filepath.Join(tmp, ".mcp.json")
		err := os.WriteFile(mcpPath, []byte(`{"mcpServers":{"other":{"command":"other"}}}`), 0o600)
		c.Assert(err, qt.IsNil)

		setup.SetupClaudeCode(claudeHome, true)
		data, err := os.ReadFile(mcpPath)
		c.Assert(err, qt.IsNil)
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.other.command"), "other")
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.curloc.command"), "curloc")

		setup.UninstallClaudeCode(claudeHome, true)
		data, err = os.ReadFile(mcpPath)
		c.Assert(err, qt.IsNil)
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.other.command"), "other")
		c.Assert(strings.Contains(string(data), "curloc"), qt.IsFalse)
	})
}

func TestUninstallClaudeCode_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Run("installed entry is removed with the file it created", func(c *qt.C) {
		tmp := t.TempDir()
		claudeHome := filepath.Join(tmp, ".claude")

		setup.SetupClaudeCode(claudeHome, true)
		result := setup.UninstallClaudeCode(claudeHome, true)
		c.Assert(result.Status, qt.Equals, "ok")
		c.Assert(result.Message, qt.Contains, "Removed")

		_, err := os.Stat(filepath.Join(tmp, ".mcp.json"))
		c.Assert(os.IsNotExist(err), qt.IsTrue)
	})

	c.Run("nothing to remove when not installed", func(c *qt.C) {
		tmp := t.TempDir()
		claudeHome := filepath.Join(tmp, ".claude")

		result := setup.UninstallClaudeCode(claudeHome, true)
		c.Assert(result.Status, qt.Equals, "ok")
		c.Assert(result.Message, qt.Equals, "Nothing to remove")
	})

	c.Run("reinstall succeeds after uninstall", func(c *qt.C) {
		tmp := t.TempDir()
		claudeHome := filepath.Join(tmp, ".claude")

		setup.SetupClaudeCode(claudeHome, true)
		setup.UninstallClaudeCode(claudeHome, true)
		result := setup.SetupClaudeCode(claudeHome, true)
		c.Assert(result.Message, qt.Contains, "Installed")
	})
}

func TestSetup_Failure(t *testing.T) {
	c := qt.New(t)
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "file")
	err := os.WriteFile(blocker, []byte("x"), 0o600)
	c.Assert(err, qt.IsNil)

	// A regular file where a directory is expected.
	result := setup.SetupNvim(blocker)
	c.Assert(result.Failed(), qt.IsTrue)
	c.Assert(result.Status, qt.Equals, "error")
}
