// Package mcp exposes the stock tools over the Model Context Protocol.
package mcp

import (
	"fmt"

	gconfig "github.com/Laisky/go-config/v2"

	"github.com/Laisky/docstock/internal/stock"
)

// ToolsSettings captures runtime configuration for the MCP surface.
type ToolsSettings struct {
	// Disabled lists operations that are not registered.
	Disabled map[stock.Operation]bool
	// ReadOnly skips every mutating operation.
	ReadOnly bool
	// AuthRequired rejects anonymous callers and non-admin mutations.
	AuthRequired bool
	// CallLogEnabled persists one record per tool call.
	CallLogEnabled bool
}

// DefaultToolsSettings enables every tool without authentication.
func DefaultToolsSettings() ToolsSettings {
	return ToolsSettings{Disabled: map[stock.Operation]bool{}, CallLogEnabled: true}
}

// LoadToolsSettingsFromConfig reads the MCP tools configuration and returns a ToolsSettings instance.
// By default, all tools are enabled unless explicitly disabled in the configuration.
func LoadToolsSettingsFromConfig() ToolsSettings {
	settings := DefaultToolsSettings()
	for _, op := range stock.Operations {
		key := fmt.Sprintf("settings.mcp.tools.%s.enabled", op)
		if !boolFromConfig(key, true) {
			settings.Disabled[op] = true
		}
	}
	settings.ReadOnly = boolFromConfig("settings.mcp.read_only", false)
	settings.AuthRequired = boolFromConfig("settings.auth.required", false)
	settings.CallLogEnabled = boolFromConfig("settings.mcp.call_log.enabled", true)
	return settings
}

// IsEnabled reports whether op should be registered.
func (s ToolsSettings) IsEnabled(op stock.Operation) bool {
	if s.Disabled[op] {
		return false
	}
	return !(s.ReadOnly && op.IsMutation())
}

// boolFromConfig retrieves a boolean configuration value with a default fallback.
func boolFromConfig(key string, def bool) bool {
	value := gconfig.S.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch v {
		case "true", "True", "TRUE", "1", "yes", "Yes", "YES":
			return true
		case "false", "False", "FALSE", "0", "no", "No", "NO":
			return false
		default:
			return def
		}
	default:
		return def
	}
}
