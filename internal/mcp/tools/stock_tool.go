package tools

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/docstock/internal/stock"
)

// StockTool exposes one stock operation as an MCP tool.
type StockTool struct {
	def        mcp.Tool
	dispatcher Dispatcher
}

// NewStockTool constructs the tool for op.
func NewStockTool(op stock.Operation, dispatcher Dispatcher) (*StockTool, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	def, ok := Definition(op)
	if !ok {
		return nil, errors.Errorf("no tool definition for %q", op)
	}
	return &StockTool{def: def, dispatcher: dispatcher}, nil
}

// NewStockTools constructs tools for every operation accepted by enabled.
func NewStockTools(dispatcher Dispatcher, enabled func(stock.Operation) bool) ([]*StockTool, error) {
	var out []*StockTool
	for _, op := range stock.Operations {
		if enabled != nil && !enabled(op) {
			continue
		}
		tool, err := NewStockTool(op, dispatcher)
		if err != nil {
			return nil, errors.Wrapf(err, "build tool %s", op)
		}
		out = append(out, tool)
	}
	return out, nil
}

// Definition returns the MCP metadata for the operation.
func (t *StockTool) Definition() mcp.Tool {
	return t.def
}

// Handle dispatches the call; failures come back as error results, not Go errors.
func (t *StockTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env := t.dispatcher.Dispatch(ctx, t.def.Name, req.GetArguments())
	return EnvelopeResult(env), nil
}

// EnvelopeResult renders a dispatch envelope as an MCP tool result.
func EnvelopeResult(env stock.Envelope) *mcp.CallToolResult {
	if env.IsError() {
		return ErrorResult(env.Err)
	}

	result, err := mcp.NewToolResultJSON(env.Data)
	if err != nil {
		return ErrorResult(stock.NewErrorBody(errors.Wrap(err, "encode response")))
	}
	return result
}

// ErrorResult renders the failure payload with IsError set.
func ErrorResult(body *stock.ErrorBody) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(body)
	if err != nil {
		return mcp.NewToolResultError(body.Message)
	}
	result.IsError = true
	return result
}

// ErrorCodeOf returns the failure code carried by result, or "".
func ErrorCodeOf(result *mcp.CallToolResult) stock.ErrorCode {
	if result == nil || !result.IsError {
		return ""
	}
	if body, ok := result.StructuredContent.(*stock.ErrorBody); ok && body != nil {
		return body.Code
	}
	return ""
}
