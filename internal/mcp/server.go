package mcp

import (
	"context"
	"io"
	"net/http"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/Laisky/docstock/internal/mcp/auth"
	"github.com/Laisky/docstock/internal/mcp/calllog"
	"github.com/Laisky/docstock/internal/mcp/ctxkeys"
	"github.com/Laisky/docstock/internal/mcp/tools"
	"github.com/Laisky/docstock/library/log"
)

const (
	serverName    = "docstock"
	serverVersion = "1.0.0"
)

const serverInstructions = "Document stock tools. Files are soft-deleted and can be restored; " +
	"a category can only be deleted once no active file uses it. " +
	"Every tool answers with JSON; failures carry error=true with a code of " +
	"VALIDATION_FAILED, UNKNOWN_OPERATION, NOT_FOUND, CONFLICT or STORE_ERROR."

// CallLogger persists one record per tool call.
type CallLogger interface {
	Record(ctx context.Context, input calllog.RecordInput) error
}

// Server wraps the MCP server state shared by the HTTP and stdio transports.
type Server struct {
	mcpServer   *srv.MCPServer
	handler     http.Handler
	logger      logSDK.Logger
	tokenParser auth.TokenParser
	gate        auth.Gate
	callLogger  CallLogger
	toolNames   []string
}

// NewServer registers every enabled stock tool on a new MCP server.
// tokenParser and callLogger may be nil.
func NewServer(dispatcher tools.Dispatcher,
	tokenParser auth.TokenParser,
	callLogger CallLogger,
	settings ToolsSettings,
	logger logSDK.Logger,
) (*Server, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if logger == nil {
		logger = log.Logger
	}
	if settings.AuthRequired && tokenParser == nil {
		return nil, errors.New("token parser is required when mcp auth is required")
	}
	if !settings.CallLogEnabled {
		callLogger = nil
	}

	mcpServer := srv.NewMCPServer(
		serverName,
		serverVersion,
		srv.WithToolCapabilities(true),
		srv.WithInstructions(serverInstructions),
		srv.WithRecovery(),
		srv.WithHooks(newMCPHooks(logger.Named("mcp_hooks"))),
	)

	s := &Server{
		mcpServer:   mcpServer,
		logger:      logger.Named("mcp"),
		tokenParser: tokenParser,
		gate:        auth.Gate{Required: settings.AuthRequired},
		callLogger:  callLogger,
	}

	stockTools, err := tools.NewStockTools(dispatcher, settings.IsEnabled)
	if err != nil {
		return nil, errors.Wrap(err, "build stock tools")
	}
	for _, tool := range stockTools {
		def := tool.Definition()
		mcpServer.AddTool(def, s.toolHandler(tool))
		s.toolNames = append(s.toolNames, def.Name)
	}

	streamable := srv.NewStreamableHTTPServer(
		mcpServer,
		srv.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			ctx = context.WithValue(ctx, ctxkeys.Logger, s.logger)
			return auth.ResolveContext(ctx, r.Header.Get("Authorization"), s.tokenParser)
		}),
	)
	s.handler = withAuthorizationHeaderNormalization(
		withHTTPLogging(streamable, s.logger.Named("http")),
		s.logger,
	)

	s.logger.Info("mcp server ready",
		zap.Strings("tools", s.toolNames),
		zap.Bool("auth_required", settings.AuthRequired),
		zap.Bool("call_log", callLogger != nil))
	return s, nil
}

// Handler returns the streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.handler
}

// MCPServer exposes the underlying server, mainly for in-process clients.
func (s *Server) MCPServer() *srv.MCPServer {
	return s.mcpServer
}

// ToolNames lists the registered tools in registration order.
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.toolNames...)
}

// ServeStdio speaks MCP over in/out until ctx is done or in is exhausted.
// The authorization value applies to the whole session.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer, authorization string) error {
	stdio := srv.NewStdioServer(s.mcpServer)
	stdio.SetContextFunc(func(ctx context.Context) context.Context {
		ctx = context.WithValue(ctx, ctxkeys.Logger, s.logger)
		return auth.ResolveContext(ctx, authorization, s.tokenParser)
	})

	s.logger.Info("serving mcp over stdio", zap.Int("tools", len(s.toolNames)))
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "serve mcp stdio")
	}
	return nil
}
