package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	codec, err := New([]byte("secret"), "docstock")
	require.NoError(t, err)

	token, err := codec.Sign("0190c5d2-7a11-7000-8000-000000000001", "alice", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := codec.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "0190c5d2-7a11-7000-8000-000000000001", claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "admin", claims.Role)
}

func TestCodecRejects(t *testing.T) {
	codec, err := New([]byte("secret"), "docstock")
	require.NoError(t, err)
	other, err := New([]byte("other"), "docstock")
	require.NoError(t, err)

	token, err := other.Sign("u1", "bob", "user", time.Hour)
	require.NoError(t, err)
	_, err = codec.Parse(token)
	require.Error(t, err)

	codec.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := codec.Sign("u1", "bob", "user", time.Hour)
	require.NoError(t, err)
	codec.now = time.Now
	_, err = codec.Parse(expired)
	require.Error(t, err)

	_, err = New(nil, "")
	require.Error(t, err)
}
