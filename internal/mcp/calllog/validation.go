package calllog

import (
	"strings"
	"unicode/utf8"

	errors "github.com/Laisky/errors/v2"
)

const (
	// maxToolNameLength caps tool name filter length.
	maxToolNameLength = 128
	// maxUserIDLength caps user id filter length.
	maxUserIDLength = 64
)

// sanitizeOptionalText trims input, rejects null bytes and enforces maxLen runes.
func sanitizeOptionalText(input string, maxLen int, field string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", nil
	}
	if strings.ContainsRune(trimmed, '\x00') {
		return "", errors.Errorf("%s contains invalid null byte", field)
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", errors.Errorf("%s exceeds max length %d", field, maxLen)
	}
	return trimmed, nil
}

func normalizeStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "":
		return "", nil
	case StatusSuccess:
		return StatusSuccess, nil
	case StatusError:
		return StatusError, nil
	default:
		return "", errors.Errorf("unknown status %q", status)
	}
}
