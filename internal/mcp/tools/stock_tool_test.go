package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/docstock/internal/stock"
)

type stubDispatcher struct {
	lastName string
	lastArgs map[string]any
	env      stock.Envelope
}

func (d *stubDispatcher) Dispatch(_ context.Context, name string, args map[string]any) stock.Envelope {
	d.lastName = name
	d.lastArgs = args
	return d.env
}

func TestDefinitionsCoverEveryOperation(t *testing.T) {
	for _, op := range stock.Operations {
		def, ok := Definition(op)
		require.True(t, ok, op)
		require.Equal(t, string(op), def.Name)
		require.NotEmpty(t, def.Description)
	}

	_, ok := Definition("rm_rf")
	require.False(t, ok)

	def, _ := Definition(stock.OpCreateFile)
	require.ElementsMatch(t,
		[]string{"name", "original_name", "size", "category", "file_path", "uploaded_by"},
		def.InputSchema.Required)

	def, _ = Definition(stock.OpListFiles)
	require.NotNil(t, def.Annotations.ReadOnlyHint)
	require.True(t, *def.Annotations.ReadOnlyHint)
}

func TestNewStockToolsHonorsFilter(t *testing.T) {
	_, err := NewStockTool(stock.OpListFiles, nil)
	require.Error(t, err)

	built, err := NewStockTools(&stubDispatcher{}, func(op stock.Operation) bool {
		return !op.IsMutation()
	})
	require.NoError(t, err)
	for _, tool := range built {
		require.False(t, stock.Operation(tool.Definition().Name).IsMutation())
	}

	all, err := NewStockTools(&stubDispatcher{}, nil)
	require.NoError(t, err)
	require.Len(t, all, len(stock.Operations))
}

func TestStockToolHandleSuccess(t *testing.T) {
	dispatcher := &stubDispatcher{env: stock.Envelope{
		Operation: stock.OpGetCategoryUsage,
		Data:      map[string]any{"category_usage": []any{}},
	}}
	tool, err := NewStockTool(stock.OpGetCategoryUsage, dispatcher)
	require.NoError(t, err)

	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: map[string]any{"x": 1}}}
	result, err := tool.Handle(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "get_category_usage", dispatcher.lastName)
	require.Equal(t, map[string]any{"x": 1}, dispatcher.lastArgs)
	require.Empty(t, ErrorCodeOf(result))
}

func TestStockToolHandleError(t *testing.T) {
	body := &stock.ErrorBody{Error: true, Code: stock.ErrCodeConflict, Message: "in use"}
	dispatcher := &stubDispatcher{env: stock.Envelope{Operation: stock.OpDeleteCategory, Err: body}}
	tool, err := NewStockTool(stock.OpDeleteCategory, dispatcher)
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, stock.ErrCodeConflict, ErrorCodeOf(result))

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	require.Equal(t, true, decoded["error"])
	require.Equal(t, "CONFLICT", decoded["code"])
}
