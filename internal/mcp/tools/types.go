package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/docstock/internal/stock"
)

// Tool exposes the capabilities required by the MCP server registration lifecycle.
type Tool interface {
	Definition() mcp.Tool
	Handle(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Dispatcher runs a named stock operation and always answers with an envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) stock.Envelope
}
