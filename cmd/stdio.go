package cmd

import (
	"os"
	"os/signal"
	"syscall"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/docstock/library/log"
)

var stdioCMD = &cobra.Command{
	Use:   "stdio",
	Short: "stdio",
	Long: `speak MCP over stdin/stdout for a local agent.

Logs go to stderr. The --token value, when given, authenticates the whole session.`,
	Args: gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		gconfig.Shared.Set("log-stderr", true)
		mustInitialize(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStdio(cmd); err != nil {
			log.Logger.Panic("run stdio", zap.Error(err))
		}
	},
}

func runStdio(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return errors.Wrap(err, "build app")
	}
	defer a.Close()

	mcpServer, err := a.newMCPServer()
	if err != nil {
		return err
	}

	token := gconfig.Shared.GetString("token")
	if token == "" {
		token = os.Getenv("DOCSTOCK_TOKEN")
	}
	return mcpServer.ServeStdio(ctx, os.Stdin, os.Stdout, token)
}

func init() {
	stdioCMD.Flags().String("token", "", "bearer token for the session, defaults to $DOCSTOCK_TOKEN")
	rootCMD.AddCommand(stdioCMD)
}
