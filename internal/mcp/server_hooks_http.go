package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/Laisky/docstock/internal/mcp/tools"
)

func newMCPHooks(logger logSDK.Logger) *srv.Hooks {
	if logger == nil {
		return nil
	}

	hooks := &srv.Hooks{}

	hooks.AddBeforeAny(func(ctx context.Context, id any, method mcp.MCPMethod, _ any) {
		logger.Debug("mcp request received", hookLogFields(ctx, id, method)...)
	})

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		fields := hookLogFields(ctx, id, mcp.MethodToolsCall)
		fields = append(fields,
			zap.String("tool", req.Params.Name),
			zap.Any("arguments", redactToolArguments(req.GetArguments())),
		)
		logger.Debug("stock tool called", fields...)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		fields := hookLogFields(ctx, id, mcp.MethodToolsCall)
		fields = append(fields, zap.String("tool", req.Params.Name))
		callResult, ok := result.(*mcp.CallToolResult)
		if !ok || !callResult.IsError {
			logger.Debug("stock tool succeeded", fields...)
			return
		}
		fields = append(fields, zap.String("code", string(tools.ErrorCodeOf(callResult))))
		logger.Info("stock tool returned error envelope", fields...)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		fields := hookLogFields(ctx, id, method)
		if message != nil {
			fields = append(fields, zap.String("request", redactHookPayload(message)))
		}
		fields = append(fields, zap.Error(err))
		if shouldDowngradeMCPErrorLog(method, err) {
			logger.Debug("mcp request failed (non-critical)", fields...)
			return
		}
		logger.Error("mcp request failed", fields...)
	})

	hooks.AddOnRegisterSession(func(ctx context.Context, session srv.ClientSession) {
		logger.Info("mcp session registered", zap.String("session_id", session.SessionID()))
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session srv.ClientSession) {
		logger.Info("mcp session unregistered", zap.String("session_id", session.SessionID()))
	})

	return hooks
}

// shouldDowngradeMCPErrorLog reports whether a failure is a client probing
// for a capability this server does not offer.
func shouldDowngradeMCPErrorLog(method mcp.MCPMethod, err error) bool {
	if err == nil {
		return false
	}
	errText := strings.ToLower(err.Error())
	switch method {
	case mcp.MethodResourcesList, mcp.MethodResourcesTemplatesList:
		return strings.Contains(errText, "resources not supported")
	case mcp.MethodPromptsList:
		return strings.Contains(errText, "prompts not supported")
	default:
		return false
	}
}

func hookLogFields(ctx context.Context, id any, method mcp.MCPMethod) []zap.Field {
	fields := []zap.Field{
		zap.Any("request_id", id),
		zap.String("method", string(method)),
	}

	if session := srv.ClientSessionFromContext(ctx); session != nil {
		fields = append(fields, zap.String("session_id", session.SessionID()))
	}

	return fields
}

// rpcCall is the part of a JSON-RPC request worth a log line.
type rpcCall struct {
	Method    string
	Tool      string
	Arguments map[string]any
}

func parseRPCCall(body []byte) rpcCall {
	var req struct {
		Method string `json:"method"`
		Params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		} `json:"params"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return rpcCall{}
	}

	call := rpcCall{Method: req.Method}
	if req.Method == string(mcp.MethodToolsCall) {
		call.Tool = req.Params.Name
		call.Arguments = redactToolArguments(req.Params.Arguments)
	}
	return call
}

// envelopeCode returns the failure code of a tools/call response body. The
// body is either plain JSON or an SSE stream whose last data frame holds it.
func envelopeCode(body []byte) string {
	payload := bytes.TrimSpace(body)
	if !bytes.HasPrefix(payload, []byte("{")) {
		payload = lastSSEData(payload)
	}

	var resp struct {
		Result struct {
			IsError           bool `json:"isError"`
			StructuredContent struct {
				Code string `json:"code"`
			} `json:"structuredContent"`
		} `json:"result"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil || !resp.Result.IsError {
		return ""
	}
	return resp.Result.StructuredContent.Code
}

func lastSSEData(stream []byte) []byte {
	var last []byte
	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Buffer(make([]byte, 0, 4096), httpLogBodyLimit+1)
	for scanner.Scan() {
		line := scanner.Bytes()
		if data, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			last = append(last[:0], bytes.TrimSpace(data)...)
		}
	}
	return last
}

// withHTTPLogging logs one line per MCP HTTP exchange: the JSON-RPC method,
// the stock tool with redacted arguments, and the envelope code it returned.
func withHTTPLogging(next http.Handler, logger logSDK.Logger) http.Handler {
	if next == nil {
		return nil
	}
	if logger == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startAt := time.Now()
		body, err := readAndRestoreRequestBody(r)
		if err != nil {
			logger.Error("read mcp request body", zap.Error(err))
		}
		call := parseRPCCall(body)

		lrw := newLoggingResponseWriter(w, httpLogBodyLimit)
		next.ServeHTTP(lrw, r)

		fields := []zap.Field{
			zap.String("http_method", r.Method),
			zap.String("rpc_method", call.Method),
			zap.Int("status", lrw.Status()),
			zap.String("mcp_session_id", strings.TrimSpace(r.Header.Get(srv.HeaderKeySessionID))),
			zap.Duration("cost", time.Since(startAt)),
		}
		if call.Tool == "" {
			logger.Debug("mcp http exchange", fields...)
			return
		}

		fields = append(fields,
			zap.String("tool", call.Tool),
			zap.Any("arguments", call.Arguments),
		)
		if code := envelopeCode(lrw.Body()); code != "" {
			fields = append(fields, zap.String("code", code))
		}
		logger.Info("mcp tool call", fields...)
	})
}

func readAndRestoreRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// loggingResponseWriter keeps the status and the first bodyLimit bytes of
// the response. Flush passes through so SSE streams keep working.
type loggingResponseWriter struct {
	http.ResponseWriter
	status    int
	buffer    bytes.Buffer
	bodyLimit int
}

func newLoggingResponseWriter(w http.ResponseWriter, limit int) *loggingResponseWriter {
	return &loggingResponseWriter{
		ResponseWriter: w,
		bodyLimit:      limit,
	}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	if remaining := lrw.bodyLimit - lrw.buffer.Len(); remaining > 0 {
		lrw.buffer.Write(b[:min(len(b), remaining)])
	}
	return lrw.ResponseWriter.Write(b)
}

func (lrw *loggingResponseWriter) Status() int {
	if lrw.status == 0 {
		return http.StatusOK
	}
	return lrw.status
}

func (lrw *loggingResponseWriter) Body() []byte {
	return lrw.buffer.Bytes()
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
