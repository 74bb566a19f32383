package mcp

import (
	"net/http"
	"strings"

	logSDK "github.com/Laisky/go-utils/v6/log"

	"github.com/Laisky/docstock/library"
)

// withAuthorizationHeaderNormalization copies a token passed as a query
// parameter into the Authorization header, for MCP clients that cannot set
// headers. An explicit header always wins.
func withAuthorizationHeaderNormalization(next http.Handler, logger logSDK.Logger) http.Handler {
	if next == nil {
		return nil
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader, source := resolveRequestAuthorizationHeader(r)
		if source == "query_token" {
			r.Header.Set("Authorization", authHeader)
			stripQueryTokens(r)
			if logger != nil {
				logger.Debug("normalized mcp query token into authorization header; prefer Authorization header")
			}
		}

		next.ServeHTTP(w, r)
	})
}

// resolveRequestAuthorizationHeader returns the Authorization value for r
// and where it came from: "header", "query_token" or "none".
func resolveRequestAuthorizationHeader(r *http.Request) (authHeader string, source string) {
	if r == nil {
		return "", "none"
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		return header, "header"
	}

	if token := extractTokenFromQuery(r); token != "" {
		return "Bearer " + token, "query_token"
	}

	return "", "none"
}

var queryTokenKeys = []string{"token", "access_token"}

// stripQueryTokens keeps the token out of the URL once it moved to the header.
func stripQueryTokens(r *http.Request) {
	query := r.URL.Query()
	for _, key := range queryTokenKeys {
		query.Del(key)
	}
	r.URL.RawQuery = query.Encode()
}

func extractTokenFromQuery(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}

	query := r.URL.Query()
	for _, key := range queryTokenKeys {
		raw := strings.TrimSpace(query.Get(key))
		if raw == "" {
			continue
		}

		if trimmed := library.StripBearerPrefix(raw); trimmed != "" {
			return trimmed
		}
	}

	return ""
}
