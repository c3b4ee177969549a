// Package setup installs and uninstalls the curloc writer hooks for shells
// and editors (zsh, bash, fish, nvim) and the MCP server entry for Claude Code.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Result is the return value from all Setup/Uninstall functions.
type Result struct {
	Status  string // "ok" or "error"
	Message string
}

func ok(msg string) Result          { return Result{Status: "ok", Message: msg} }
func okf(f string, a ...any) Result { return ok(fmt.Sprintf(f, a...)) }

func failf(f string, a ...any) Result {
	return Result{Status: "error", Message: fmt.Sprintf(f, a...)}
}

// Failed reports whether the operation did not complete.
func (r Result) Failed() bool { return r.Status == "error" }

// ---------------------------------------------------------------------------
// Hook content
// ---------------------------------------------------------------------------

const (
	beginMarker = "# >>> curloc >>>"
	endMarker   = "# <<< curloc <<<"
)

const zshHook = beginMarker + `
_curloc_chpwd() {
  command curloc write --program zsh --pid $$ -- "$PWD" >/dev/null 2>&1 &!
}
autoload -Uz add-zsh-hook
add-zsh-hook chpwd _curloc_chpwd
_curloc_chpwd
` + endMarker + "\n"

const bashHook = beginMarker + `
_curloc_last=
_curloc_prompt() {
  if [ "$PWD" != "$_curloc_last" ]; then
    _curloc_last=$PWD
    (command curloc write --program bash --pid $$ -- "$PWD" >/dev/null 2>&1 &)
  fi
}
case ";${PROMPT_COMMAND};" in
  *";_curloc_prompt;"*) ;;
  *) PROMPT_COMMAND="_curloc_prompt${PROMPT_COMMAND:+;$PROMPT_COMMAND}" ;;
esac
` + endMarker + "\n"

const fishHook = `# Installed by curloc setup fish.
function __curloc_pwd --on-variable PWD
    command curloc write --program fish --pid $fish_pid -- $PWD >/dev/null 2>&1 &
end
__curloc_pwd
`

const nvimHook = `-- Installed by curloc setup nvim.
local function register()
  vim.fn.jobstart({
    "curloc", "write", "--program", "nvim",
    "--pid", tostring(vim.fn.getpid()),
    "--nvim-pipe", vim.v.servername,
    "--", vim.fn.getcwd(),
  }, { detach = true })
end

vim.api.nvim_create_autocmd({ "VimEnter", "DirChanged" }, {
  group = vim.api.nvim_create_augroup("curloc", { clear = true }),
  callback = register,
})
`

var mcpConfig = map[string]any{
	"command": "curloc",
	"args":    []any{"mcp"},
	"type":    "stdio",
}

// ---------------------------------------------------------------------------
// Default path helpers
// ---------------------------------------------------------------------------

func userHome() string {
	home, _ := os.UserHomeDir()
	return home
}

func xdgConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(userHome(), ".config")
}

// DefaultZshrc returns $ZDOTDIR/.zshrc, or ~/.zshrc.
func DefaultZshrc() string {
	if dir := os.Getenv("ZDOTDIR"); dir != "" {
		return filepath.Join(dir, ".zshrc")
	}
	return filepath.Join(userHome(), ".zshrc")
}

// DefaultBashrc returns ~/.bashrc.
func DefaultBashrc() string { return filepath.Join(userHome(), ".bashrc") }

// DefaultFishConfig returns the fish configuration directory.
func DefaultFishConfig() string { return filepath.Join(xdgConfigHome(), "fish") }

// DefaultNvimConfig returns the nvim configuration directory.
func DefaultNvimConfig() string { return filepath.Join(xdgConfigHome(), "nvim") }

// DefaultClaudeHome returns the default ~/.claude directory.
func DefaultClaudeHome() string { return filepath.Join(userHome(), ".claude") }

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func readJSON(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return make(map[string]any)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return make(map[string]any)
	}
	return m
}

func writeJSON(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644) // #nosec G306 -- MCP server entries do not contain secrets
}

// ---------------------------------------------------------------------------
// Marked block helpers (shell rc files)
// ---------------------------------------------------------------------------

func hasBlock(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), beginMarker)
}

func appendBlock(path, block string) (bool, error) {
	if hasBlock(path) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()
	prefix := ""
	if len(existing) > 0 {
		prefix = "\n"
		if !strings.HasSuffix(string(existing), "\n") {
			prefix = "\n\n"
		}
	}
	_, err = f.WriteString(prefix + block)
	return err == nil, err
}

func removeBlock(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	content := string(data)
	if !strings.Contains(content, beginMarker) {
		return false, nil
	}
	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines))
	inBlock := false
	for _, line := range lines {
		switch strings.TrimSpace(line) {
		case beginMarker:
			inBlock = true
			continue
		case endMarker:
			if inBlock {
				inBlock = false
				continue
			}
		}
		if !inBlock {
			result = append(result, line)
		}
	}
	cleaned := strings.TrimRight(strings.Join(result, "\n"), "\n")
	if cleaned != "" {
		cleaned += "\n"
	}
	return true, os.WriteFile(path, []byte(cleaned), 0o644) // #nosec G306 -- shell rc files are user-readable by convention
}

// ---------------------------------------------------------------------------
// Owned file helpers (fish conf.d, nvim plugin)
// ---------------------------------------------------------------------------

func installFile(path, content string) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && string(existing) == content {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	return true, os.WriteFile(path, []byte(content), 0o644) // #nosec G306 -- hook scripts do not contain secrets
}

func uninstallFile(path string) (bool, error) {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// ---------------------------------------------------------------------------
// JSON mcpServers helpers (Claude Code)
// ---------------------------------------------------------------------------

func installMCPServers(path string) (bool, error) {
	data := readJSON(path)
	servers, _ := data["mcpServers"].(map[string]any)
	if servers == nil {
		servers = make(map[string]any)
		data["mcpServers"] = servers
	}
	if _, exists := servers["curloc"]; exists {
		return false, nil
	}
	servers["curloc"] = mcpConfig
	return true, writeJSON(path, data)
}

func uninstallMCPServers(path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	data := readJSON(path)
	servers, _ := data["mcpServers"].(map[string]any)
	if _, exists := servers["curloc"]; !exists {
		return false, nil
	}
	delete(servers, "curloc")
	if len(servers) == 0 {
		delete(data, "mcpServers")
	}
	if len(data) == 0 {
		return true, os.Remove(path)
	}
	return true, writeJSON(path, data)
}

//revive:disable:flag-parameter
func claudeMCPPath(claudeHome string, project bool) string {
	if project {
		return filepath.Join(filepath.Dir(claudeHome), ".mcp.json")
	}
	return filepath.Join(userHome(), ".claude.json")
}

//revive:enable:flag-parameter

// ---------------------------------------------------------------------------
// Shells
// ---------------------------------------------------------------------------

func setupBlock(path, block string) Result {
	added, err := appendBlock(path, block)
	if err != nil {
		return failf("Install %s: %v", path, err)
	}
	if !added {
		return ok("Already installed")
	}
	return okf("Installed: hook in %s", path)
}

func uninstallBlock(path string) Result {
	removed, err := removeBlock(path)
	if err != nil {
		return failf("Remove from %s: %v", path, err)
	}
	if !removed {
		return ok("Nothing to remove")
	}
	return okf("Removed: hook from %s", path)
}

// SetupZsh appends the chpwd hook to rcPath (default DefaultZshrc).
func SetupZsh(rcPath string) Result {
	if rcPath == "" {
		rcPath = DefaultZshrc()
	}
	return setupBlock(rcPath, zshHook)
}

// UninstallZsh removes the hook block from rcPath.
func UninstallZsh(rcPath string) Result {
	if rcPath == "" {
		rcPath = DefaultZshrc()
	}
	return uninstallBlock(rcPath)
}

// SetupBash appends the PROMPT_COMMAND hook to rcPath (default DefaultBashrc).
func SetupBash(rcPath string) Result {
	if rcPath == "" {
		rcPath = DefaultBashrc()
	}
	return setupBlock(rcPath, bashHook)
}

// UninstallBash removes the hook block from rcPath.
func UninstallBash(rcPath string) Result {
	if rcPath == "" {
		rcPath = DefaultBashrc()
	}
	return uninstallBlock(rcPath)
}

func fishHookPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultFishConfig()
	}
	return filepath.Join(configDir, "conf.d", "curloc.fish")
}

// SetupFish writes conf.d/curloc.fish under configDir (default DefaultFishConfig).
func SetupFish(configDir string) Result {
	path := fishHookPath(configDir)
	added, err := installFile(path, fishHook)
	if err != nil {
		return failf("Install %s: %v", path, err)
	}
	if !added {
		return ok("Already installed")
	}
	return okf("Installed: %s", path)
}

// UninstallFish removes conf.d/curloc.fish.
func UninstallFish(configDir string) Result {
	path := fishHookPath(configDir)
	removed, err := uninstallFile(path)
	if err != nil {
		return failf("Remove %s: %v", path, err)
	}
	if !removed {
		return ok("Nothing to remove")
	}
	return okf("Removed: %s", path)
}

// ---------------------------------------------------------------------------
// Editors
// ---------------------------------------------------------------------------

func nvimHookPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultNvimConfig()
	}
	return filepath.Join(configDir, "plugin", "curloc.lua")
}

// SetupNvim writes plugin/curloc.lua under configDir (default DefaultNvimConfig).
func SetupNvim(configDir string) Result {
	path := nvimHookPath(configDir)
	added, err := installFile(path, nvimHook)
	if err != nil {
		return failf("Install %s: %v", path, err)
	}
	if !added {
		return ok("Already installed")
	}
	return okf("Installed: %s", path)
}

// UninstallNvim removes plugin/curloc.lua.
func UninstallNvim(configDir string) Result {
	path := nvimHookPath(configDir)
	removed, err := uninstallFile(path)
	if err != nil {
		return failf("Remove %s: %v", path, err)
	}
	if !removed {
		return ok("Nothing to remove")
	}
	return okf("Removed: %s", path)
}

// ---------------------------------------------------------------------------
// Claude Code
// ---------------------------------------------------------------------------

// SetupClaudeCode registers the curloc MCP server with Claude Code.
// claudeHome defaults to ~/.claude when empty.
//
//revive:disable:flag-parameter
func SetupClaudeCode(claudeHome string, project bool) Result {
	if claudeHome == "" {
		claudeHome = DefaultClaudeHome()
	}
	mcpPath := claudeMCPPath(claudeHome, project)
	added, err := installMCPServers(mcpPath)
	if err != nil {
		return failf("Install %s: %v", mcpPath, err)
	}
	if !added {
		return ok("Already installed")
	}
	scope := ".mcp.json"
	if !project {
		scope = "~/.claude.json"
	}
	return okf("Installed: mcpServers in %s", scope)
}

// UninstallClaudeCode removes the curloc MCP server from Claude Code.
func UninstallClaudeCode(claudeHome string, project bool) Result {
	if claudeHome == "" {
		claudeHome = DefaultClaudeHome()
	}
	mcpPath := claudeMCPPath(claudeHome, project)
	removed, err := uninstallMCPServers(mcpPath)
	if err != nil {
		return failf("Remove from %s: %v", mcpPath, err)
	}
	if !removed {
		return ok("Nothing to remove")
	}
	return ok("Removed: mcpServers entry")
}

//revive:enable:flag-parameter
