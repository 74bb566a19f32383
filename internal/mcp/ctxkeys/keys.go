package ctxkeys

// Key identifies a context value propagated across MCP services.
type Key string

const (
	// Logger stores the per-request logger within tool contexts.
	Logger Key = "mcp_logger"
	// Identity stores the authenticated caller.
	Identity Key = "mcp_identity"
	// AuthError stores why a presented bearer token was rejected.
	AuthError Key = "mcp_auth_error"
)
