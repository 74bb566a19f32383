// Package library contains helper functions
package library

import "strings"

// StripBearerPrefix removes every leading "Bearer " scheme, case-insensitively,
// and surrounding whitespace from an Authorization header value.
func StripBearerPrefix(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	for len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		header = strings.TrimSpace(header[len(prefix):])
	}
	return header
}
