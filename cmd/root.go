// Package cmd command line
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gutils "github.com/Laisky/go-utils/v6"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/docstock/library/config"
	"github.com/Laisky/docstock/library/log"
)

var rootCMD = &cobra.Command{
	Use:   "docstock",
	Short: "docstock",
	Long:  `document stock served over MCP and HTTP`,
	Args:  gcmd.NoExtraArgs,
}

func initialize(ctx context.Context, cmd *cobra.Command) error {
	if err := gconfig.Shared.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind pflags")
	}

	// the logger comes first so nothing reaches stdout in stdio mode
	if err := setupLogger(ctx); err != nil {
		return errors.Wrap(err, "setup logger")
	}
	if err := setupSettings(ctx); err != nil {
		return errors.Wrap(err, "setup settings")
	}
	if err := validateStartupConfig(); err != nil {
		return errors.Wrap(err, "validate configuration")
	}

	return nil
}

func setupSettings(_ context.Context) error {
	// clock
	gutils.SetInternalClock(100 * time.Millisecond)

	// an empty path runs on defaults and in-memory backends
	cfgPath := gconfig.Shared.GetString("config")
	if cfgPath == "" {
		return nil
	}
	if _, err := os.Stat(cfgPath); err != nil {
		return errors.Wrapf(err, "config file %q", cfgPath)
	}
	config.LoadFromFile(cfgPath)
	return nil
}

func setupLogger(_ context.Context) error {
	// mode
	if gconfig.Shared.GetBool("debug") {
		fmt.Fprintln(os.Stderr, "run in debug mode")
		gconfig.Shared.Set("log-level", "debug")
	}

	lvl := gconfig.Shared.GetString("log-level")
	if gconfig.Shared.GetBool("log-stderr") {
		return log.UseStderr(lvl)
	}

	if err := log.Logger.ChangeLevel(logSDK.Level(lvl)); err != nil {
		return errors.Wrapf(err, "change log level to %q", lvl)
	}
	return nil
}

// mustInitialize is the PreRun shared by every sub-command.
func mustInitialize(cmd *cobra.Command, _ []string) {
	if err := initialize(cmd.Context(), cmd); err != nil {
		log.Logger.Panic("init", zap.Error(err))
	}
}

func init() {
	rootCMD.PersistentFlags().Bool("debug", false, "run in debug mode")
	rootCMD.PersistentFlags().StringP("config", "c", "", "config file path, empty to run on defaults")
	rootCMD.PersistentFlags().String("log-level", "info", "`debug/info/error`")
	rootCMD.PersistentFlags().Bool("log-stderr", false, "write logs to stderr")
}

// Execute execute root command
func Execute() {
	if err := rootCMD.Execute(); err != nil {
		log.Logger.Panic("start", zap.Error(err))
	}
}
