package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidateStartupConfigWithGetterEmpty verifies empty configuration passes validation.
func TestValidateStartupConfigWithGetterEmpty(t *testing.T) {
	err := validateStartupConfigWithGetter(newMapConfigGetter(map[string]any{}))
	require.NoError(t, err)
}

// TestValidateStartupConfigWithGetterInvalidBoolean verifies invalid boolean configuration fails validation.
func TestValidateStartupConfigWithGetterInvalidBoolean(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"mcp": map[string]any{
				"tools": map[string]any{
					"delete_file": map[string]any{
						"enabled": "not-a-bool",
					},
				},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.mcp.tools.delete_file.enabled")
}

func TestValidateStartupConfigWithGetterUnknownTool(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"mcp": map[string]any{
				"tools": map[string]any{
					"web_search": map[string]any{"enabled": true},
				},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.mcp.tools.web_search is not a known tool")
}

// TestValidateStartupConfigWithGetterAuthWithoutSecret verifies required auth needs a secret.
func TestValidateStartupConfigWithGetterAuthWithoutSecret(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"auth": map[string]any{"required": true},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.auth.secret is required")
}

func TestValidateStartupConfigWithGetterBlobAndLimits(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"blob": map[string]any{
				"endpoint":         "https://minio.internal:9000",
				"max_upload_bytes": 0,
			},
			"stock": map[string]any{
				"list_limit_default": 500,
				"list_limit_max":     100,
			},
			"db": map[string]any{
				"postgres": map[string]any{"port": 70000, "sslmode": "sometimes"},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "settings.blob.endpoint must be host[:port]")
	require.Contains(t, msg, "settings.blob.bucket is required")
	require.Contains(t, msg, "settings.blob.max_upload_bytes must be >= 1")
	require.Contains(t, msg, "settings.stock.list_limit_default must be <= settings.stock.list_limit_max")
	require.Contains(t, msg, "settings.db.postgres.port must be within [1, 65535]")
	require.Contains(t, msg, `settings.db.postgres.sslmode "sometimes"`)
}

func TestValidateStartupConfigWithGetterCORSDomains(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"web": map[string]any{
				"cors": map[string]any{
					"allowed_domains": []any{"example.com", "https://bad.example.com/"},
				},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.web.cors.allowed_domains[1]")
	require.NotContains(t, err.Error(), "allowed_domains[0]")
}

func TestValidateStartupConfigWithGetterAllowedMimeTypes(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"blob": map[string]any{
				"allowed_mime_types": []any{"application/pdf", "pdf", "*", "image/"},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "settings.blob.allowed_mime_types[1]")
	require.Contains(t, msg, "settings.blob.allowed_mime_types[3]")
	require.NotContains(t, msg, "allowed_mime_types[0]")
	require.NotContains(t, msg, "allowed_mime_types[2]")
}

// TestValidateStartupConfigWithGetterValidConfig verifies valid explicit configuration passes validation.
func TestValidateStartupConfigWithGetterValidConfig(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"db": map[string]any{
				"postgres": map[string]any{
					"addr":      "127.0.0.1",
					"port":      5432,
					"db":        "docstock",
					"user":      "docstock",
					"pwd":       "secret",
					"sslmode":   "disable",
					"max_conns": 8,
				},
				"redis": map[string]any{"addr": "127.0.0.1:6379", "db": 0},
			},
			"stats_cache": map[string]any{
				"enabled":     true,
				"ttl_seconds": 600,
				"prefix":      "docstock:stats",
			},
			"blob": map[string]any{
				"endpoint":         "minio.internal:9000",
				"bucket":           "documents",
				"secure":           false,
				"max_upload_bytes": 104857600,
			},
			"stock": map[string]any{
				"list_limit_default": 100,
				"list_limit_max":     1000,
				"seed_categories":    true,
			},
			"auth": map[string]any{
				"required": "yes",
				"secret":   "a-long-enough-secret",
			},
			"mcp": map[string]any{
				"read_only": false,
				"call_log":  map[string]any{"enabled": true},
				"tools": map[string]any{
					"delete_category": map[string]any{"enabled": false},
					"get_file_stats":  map[string]any{"enabled": 1},
				},
			},
			"web": map[string]any{
				"metrics": map[string]any{"enabled": true},
				"cors": map[string]any{
					"allowed_domains": []string{"example.com"},
				},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.NoError(t, err)
}

// newMapConfigGetter builds a dotted-path getter for nested map-based test configuration.
// It accepts a nested map and returns a getter function compatible with validateStartupConfigWithGetter.
func newMapConfigGetter(root map[string]any) configGetter {
	return func(key string) any {
		if key == "" {
			return nil
		}

		parts := strings.Split(key, ".")
		var current any = root
		for _, part := range parts {
			nextMap, ok := current.(map[string]any)
			if !ok {
				return nil
			}

			next, exists := nextMap[part]
			if !exists {
				return nil
			}
			current = next
		}

		return current
	}
}
