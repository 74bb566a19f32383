package calllog

import (
	"time"

	"github.com/google/uuid"
)

// Record mirrors one row of mcp_call_logs.
type Record struct {
	ID             uuid.UUID
	ToolName       string
	UserID         string
	Username       string
	Status         string
	ErrorCode      string
	DurationMillis int64
	ParametersJSON []byte
	ErrorMessage   string
	OccurredAt     time.Time
	CreatedAt      time.Time
}

// Entry represents a single record returned from List.
type Entry struct {
	ID             uuid.UUID      `json:"id"`
	ToolName       string         `json:"tool"`
	UserID         string         `json:"user_id,omitempty"`
	Username       string         `json:"username,omitempty"`
	Status         string         `json:"status"`
	ErrorCode      string         `json:"error_code,omitempty"`
	DurationMillis int64          `json:"duration_ms"`
	Parameters     map[string]any `json:"parameters"`
	ErrorMessage   string         `json:"error,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
	CreatedAt      time.Time      `json:"created_at"`
}
