package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/devsettings/internal/mirror"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Mirror  Toggler
	Version string
}

// NewMCPServer creates an MCP server exposing the device toggles.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"devsettings",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("devsettings: read and change device display, vibration, audio and 5G settings."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_settings",
			mcp.WithDescription("List every device setting with its current value and whether it can be changed."),
		),
		mcpListSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("set_setting",
			mcp.WithDescription("Change one device setting. Booleans take true/false, vib_strength an integer, nr_mode_switcher one of none, sa, nsa."),
			mcp.WithString("key", mcp.Description("Setting key, e.g. hbm or vib_strength"), mcp.Required()),
			mcp.WithString("value", mcp.Description("New value"), mcp.Required()),
		),
		mcpSetSetting(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"device://settings",
			"Device Settings",
			mcp.WithResourceDescription("Current device settings as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSettings(deps),
	)

	return s
}

func mcpListSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(deps.Mirror.List())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal settings: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetSetting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		if err := deps.Mirror.SetToggle(ctx, key, value); err != nil {
			switch {
			case errors.Is(err, mirror.ErrProtocolUnavailable):
				return mcpError(mirror.MsgRadioUnavailable), nil
			case errors.Is(err, mirror.ErrNoSimSlot):
				return mcpError(mirror.MsgNoSimSlot), nil
			}
			return mcpError(err.Error()), nil
		}
		st, err := deps.Mirror.Get(key)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("%s = %s", st.Key, st.Value)), nil
	}
}

func mcpResourceSettings(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Mirror.List())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
