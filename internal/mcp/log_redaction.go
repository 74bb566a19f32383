package mcp

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const (
	// httpLogBodyLimit caps how many body bytes are captured per HTTP log line.
	httpLogBodyLimit = 8 << 10
	// maxLoggedStringRunes truncates long string values inside logged payloads.
	maxLoggedStringRunes = 256
)

// sensitiveLogKeys never reach logs in clear text.
var sensitiveLogKeys = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"authorization": {},
	"password":      {},
	"secret":        {},
}

// redactMCPBody masks credentials and truncates long strings inside a JSON
// payload. Non-JSON input is returned unchanged.
func redactMCPBody(raw string) string {
	if raw == "" {
		return raw
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return raw
	}
	out, err := json.Marshal(redactMCPValue(payload))
	if err != nil {
		return raw
	}
	return string(out)
}

// redactMCPValue recursively redacts nested payloads.
func redactMCPValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return redactMCPMap(v)
	case []any:
		result := make([]any, 0, len(v))
		for _, item := range v {
			result = append(result, redactMCPValue(item))
		}
		return result
	case string:
		return truncateLoggedString(v)
	default:
		return value
	}
}

func redactMCPMap(input map[string]any) map[string]any {
	output := make(map[string]any, len(input))
	for key, value := range input {
		if _, ok := sensitiveLogKeys[strings.ToLower(key)]; ok {
			output[key] = redactedMarker(value)
			continue
		}
		output[key] = redactMCPValue(value)
	}
	return output
}

// redactToolArguments prepares tool arguments for the call log.
func redactToolArguments(args map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	return redactMCPMap(args)
}

func redactedMarker(value any) map[string]any {
	marker := map[string]any{"redacted": true}
	if s, ok := value.(string); ok {
		marker["length"] = len(s)
	}
	return marker
}

func truncateLoggedString(s string) string {
	if utf8.RuneCountInString(s) <= maxLoggedStringRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLoggedStringRunes]) + "...(truncated)"
}

// redactHookPayload renders a redacted JSON string for hook logging.
func redactHookPayload(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return redactMCPBody(string(data))
}
