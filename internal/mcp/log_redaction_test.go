package mcp

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactMCPBodyMasksCredentials(t *testing.T) {
	payload := map[string]any{
		"method": "tools/call",
		"params": map[string]any{
			"name": "list_files",
			"arguments": map[string]any{
				"search": "report",
				"token":  "eyJhbGciOi",
			},
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(redactMCPBody(string(data))), &parsed))

	args := parsed["params"].(map[string]any)["arguments"].(map[string]any)
	require.Equal(t, "report", args["search"])
	token := args["token"].(map[string]any)
	require.Equal(t, true, token["redacted"])
	require.Equal(t, float64(10), token["length"])
}

func TestRedactMCPBodyTruncatesLongStrings(t *testing.T) {
	long := strings.Repeat("é", maxLoggedStringRunes+10)
	data, err := json.Marshal(map[string]any{"description": long})
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(redactMCPBody(string(data))), &parsed))
	got := parsed["description"].(string)
	require.True(t, strings.HasSuffix(got, "...(truncated)"))
	require.Equal(t, strings.Repeat("é", maxLoggedStringRunes), strings.TrimSuffix(got, "...(truncated)"))
}

func TestRedactMCPBodyKeepsNonJSON(t *testing.T) {
	require.Equal(t, "plain text", redactMCPBody("plain text"))
	require.Empty(t, redactMCPBody(""))
}

func TestRedactToolArguments(t *testing.T) {
	require.Nil(t, redactToolArguments(nil))

	args := map[string]any{"id": "f-1", "Authorization": "Bearer x"}
	redacted := redactToolArguments(args)
	require.Equal(t, "f-1", redacted["id"])
	require.Equal(t, true, redacted["Authorization"].(map[string]any)["redacted"])
	require.Equal(t, "Bearer x", args["Authorization"])
}
