// Package mcp provides the stdio MCP server that lets coding agents read and
// register the location of the window they run in.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/curloc/internal/buildinfo"
	"github.com/go-ports/curloc/internal/models"
	"github.com/go-ports/curloc/internal/service"
)

const currentDescription = `Return the filesystem location the user is working in right now: the location registered for the focused window, or the working directory of that window's process when nothing was registered. Call this before resolving relative paths the user mentions.` //nolint:lll

const registerDescription = `Register the location the agent is working in for the window it runs in, so that other tools opened from the desktop resolve to the same place. Call this after changing the project or directory you work in.` //nolint:lll

const listDescription = `List every registered window location with the writer pid, program and registration time.`

// NewServer creates and registers all curloc tools on a new MCP server.
// callerPID attributes register_location calls that pass no pid; it is
// normally the agent process that spawned the server.
func NewServer(reg service.Registry, callerPID int) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("curloc", buildinfo.Version)
	registerTools(s, reg, callerPID)
	return s
}

// Serve starts the stdio MCP server, blocking until stdin closes.
func Serve(ctx context.Context, opts service.Options) error {
	reg, err := service.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("mcp: open registry: %w", err)
	}
	defer reg.Close()

	return mcpserver.ServeStdio(NewServer(reg, os.Getppid()))
}

func registerTools(s *mcpserver.MCPServer, reg service.Registry, callerPID int) {
	s.AddTool(mcp.NewTool("current_location",
		mcp.WithDescription(currentDescription),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := reg.Get(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(res)
	})

	s.AddTool(mcp.NewTool("register_location",
		mcp.WithDescription(registerDescription),
		mcp.WithString("location",
			mcp.Description("Absolute path to register."),
			mcp.Required(),
		),
		mcp.WithString("window",
			mcp.Description("Explicit window id. Omit to attribute by process ancestry."),
		),
		mcp.WithNumber("pid",
			mcp.Description("Process whose window owns the location. Defaults to the agent process."),
		),
		mcp.WithString("program",
			mcp.Description("Name of the registering program."),
		),
		mcp.WithString("nvim_pipe",
			mcp.Description("RPC address of the Neovim instance editing the location, if any."),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pid := req.GetInt("pid", 0)
		if pid <= 0 {
			pid = callerPID
		}
		wr := models.WriteRequest{
			Location: models.Location(req.GetString("location", "")),
			Window:   models.WindowID(req.GetString("window", "")),
			PID:      pid,
			Program:  req.GetString("program", "mcp"),
			NvimPipe: req.GetString("nvim_pipe", ""),
		}
		window, err := reg.Write(ctx, wr)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(map[string]any{
			"window":   window,
			"location": wr.Location,
		})
	})

	s.AddTool(mcp.NewTool("list_locations",
		mcp.WithDescription(listDescription),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := reg.List(ctx)
		if err != nil {
			return toolError(err), nil
		}
		if entries == nil {
			entries = []models.Entry{}
		}
		return jsonResult(map[string]any{
			"total":   len(entries),
			"entries": entries,
		})
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// toolError renders err with its kind so agents can branch on it.
func toolError(err error) *mcp.CallToolResult {
	if kind := models.KindOf(err); kind != "" {
		return mcp.NewToolResultError(fmt.Sprintf("error[%s]: %v", kind, err))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
