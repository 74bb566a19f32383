// Package log holds the process-wide docstock logger.
package log

import (
	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
)

var Logger logSDK.Logger

func init() {
	var err error
	if Logger, err = logSDK.NewConsoleWithName("docstock", logSDK.LevelInfo); err != nil {
		logSDK.Shared.Panic("new logger", zap.Error(err))
	}
}

// UseStderr rebuilds Logger on stderr so stdout only carries protocol frames.
func UseStderr(level string) error {
	logger, err := logSDK.New(
		logSDK.WithName("docstock"),
		logSDK.WithEncoding(logSDK.EncodingConsole),
		logSDK.WithOutputPaths([]string{"stderr"}),
		logSDK.WithErrorOutputPaths([]string{"stderr"}),
		logSDK.WithLevel(logSDK.Level(level)),
	)
	if err != nil {
		return errors.Wrap(err, "new stderr logger")
	}

	Logger = logger
	return nil
}
