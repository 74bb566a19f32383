package library

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripBearerPrefix(t *testing.T) {
	const jwtToken = "eyJhbGciOiJIUzI1NiJ9.eyJ1aWQiOiIxIn0.c2ln"

	cases := map[string]struct {
		input    string
		expected string
	}{
		"empty":                {input: "", expected: ""},
		"whitespace":           {input: "   \t", expected: ""},
		"raw jwt":              {input: jwtToken, expected: jwtToken},
		"header value":         {input: "Bearer " + jwtToken, expected: jwtToken},
		"lower-case query":     {input: "bearer " + jwtToken, expected: jwtToken},
		"upper-case":           {input: "BEARER " + jwtToken, expected: jwtToken},
		"padded":               {input: "  Bearer    " + jwtToken + "\n", expected: jwtToken},
		"doubled by a client":  {input: "Bearer bearer " + jwtToken, expected: jwtToken},
		"other scheme kept":    {input: "Basic dXNlcjpwdw==", expected: "Basic dXNlcjpwdw=="},
		"prefix without space": {input: "Bearer" + jwtToken, expected: "Bearer" + jwtToken},
		"two tokens":           {input: "Bearer a b", expected: "a b"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.expected, StripBearerPrefix(tc.input))
		})
	}
}
