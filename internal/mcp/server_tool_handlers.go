package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/Laisky/docstock/internal/mcp/auth"
	"github.com/Laisky/docstock/internal/mcp/calllog"
	"github.com/Laisky/docstock/internal/mcp/ctxkeys"
	"github.com/Laisky/docstock/internal/mcp/tools"
	"github.com/Laisky/docstock/internal/stock"
	"github.com/Laisky/docstock/library/log"
)

// toolHandler gates the call on the caller's identity, runs the tool and
// records the outcome.
func (s *Server) toolHandler(tool tools.Tool) srv.ToolHandlerFunc {
	name := tool.Definition().Name
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startedAt := time.Now()
		args := argumentsMap(req.Params.Arguments)

		if denied := s.gate.Authorize(ctx, stock.Operation(name)); denied != nil {
			LoggerFromContext(ctx).Info("mcp tool call denied",
				zap.String("tool", name),
				zap.String("code", string(denied.Code)))
			result := tools.ErrorResult(stock.NewErrorBody(denied))
			s.recordToolInvocation(ctx, name, args, startedAt, time.Since(startedAt), result, nil)
			return result, nil
		}

		result, err := tool.Handle(ctx, req)
		s.recordToolInvocation(ctx, name, args, startedAt, time.Since(startedAt), result, err)
		return result, err
	}
}

// LoggerFromContext retrieves the per-request logger from the MCP context.
// Falls back to a shared logger if none is present in context.
func LoggerFromContext(ctx context.Context) logSDK.Logger {
	if logger, ok := ctx.Value(ctxkeys.Logger).(logSDK.Logger); ok && logger != nil {
		return logger
	}
	return log.Logger.Named("mcp_fallback")
}

func (s *Server) recordToolInvocation(ctx context.Context,
	toolName string,
	args map[string]any,
	startedAt time.Time,
	duration time.Duration,
	result *mcp.CallToolResult,
	invokeErr error,
) {
	if s.callLogger == nil {
		return
	}

	status := calllog.StatusSuccess
	errorMessage := ""
	if invokeErr != nil {
		status = calllog.StatusError
		errorMessage = invokeErr.Error()
	}
	if result != nil && result.IsError {
		status = calllog.StatusError
		if msg := toolErrorMessage(result); msg != "" {
			if errorMessage == "" {
				errorMessage = msg
			} else {
				errorMessage = fmt.Sprintf("%s | %s", errorMessage, msg)
			}
		}
	}

	if duration < 0 {
		duration = 0
	}
	occurredAt := startedAt.UTC()
	if startedAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	input := calllog.RecordInput{
		ToolName:     toolName,
		Status:       status,
		ErrorCode:    string(tools.ErrorCodeOf(result)),
		Duration:     duration,
		Parameters:   redactToolArguments(args),
		ErrorMessage: errorMessage,
		OccurredAt:   occurredAt,
	}
	if identity, ok := auth.FromContext(ctx); ok {
		input.UserID = identity.UserID
		input.Username = identity.Username
	}

	if err := s.callLogger.Record(ctx, input); err != nil {
		s.logger.Warn("record call log", zap.Error(err), zap.String("tool", toolName))
	}
}

func argumentsMap(raw any) map[string]any {
	switch value := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		return value
	case map[string]string:
		result := make(map[string]any, len(value))
		for key, item := range value {
			result[key] = item
		}
		return result
	default:
		return map[string]any{"value": value}
	}
}

// toolErrorMessage prefers the structured message over the raw text content.
func toolErrorMessage(result *mcp.CallToolResult) string {
	if result == nil || !result.IsError {
		return ""
	}
	if body, ok := result.StructuredContent.(*stock.ErrorBody); ok && body != nil {
		return body.Message
	}
	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			if txt := strings.TrimSpace(textContent.Text); txt != "" {
				return txt
			}
		}
	}
	return ""
}
