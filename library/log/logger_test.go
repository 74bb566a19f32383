package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUseStderr(t *testing.T) {
	previous := Logger
	t.Cleanup(func() { Logger = previous })

	require.NoError(t, UseStderr("debug"))
	require.NotNil(t, Logger)
	Logger.Debug("stderr logger ready")
}
