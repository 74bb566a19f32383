package cmd

import (
	"os/signal"
	"syscall"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Laisky/docstock/internal/mcp/calllog"
	"github.com/Laisky/docstock/internal/web"
	"github.com/Laisky/docstock/library/log"
)

var apiCMD = &cobra.Command{
	Use:    "api",
	Short:  "api",
	Long:   `serve the HTTP API, uploads and the MCP endpoint`,
	Args:   gcmd.NoExtraArgs,
	PreRun: mustInitialize,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAPI(cmd); err != nil {
			log.Logger.Panic("run api", zap.Error(err))
		}
	},
}

func runAPI(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !gconfig.Shared.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(ctx)
	if err != nil {
		return errors.Wrap(err, "build app")
	}
	defer a.Close()

	mcpServer, err := a.newMCPServer()
	if err != nil {
		return err
	}

	opts := web.Options{
		Dispatcher:       a.dispatcher,
		Purger:           a.service,
		Blobs:            a.blobs,
		TokenParser:      a.tokenParser(),
		AuthRequired:     a.tools.AuthRequired,
		MCPHandler:       mcpServer.Handler(),
		AllowedDomains:   gconfig.Shared.GetStringSlice("settings.web.cors.allowed_domains"),
		MaxUploadBytes:   int64(gconfig.Shared.GetInt("settings.blob.max_upload_bytes")),
		AllowedMimeTypes: gconfig.Shared.GetStringSlice("settings.blob.allowed_mime_types"),
		EnableMetrics:    gconfig.Shared.GetBool("settings.web.metrics.enabled"),
		Logger:           log.Logger.Named("web"),
	}
	if a.redis != nil {
		opts.Orphans = a.redis
	}
	if a.callLog != nil {
		opts.CallLogHandler = calllog.NewHTTPHandler(a.callLog, a.tokenParser(), log.Logger.Named("calllog_http"))
	}

	server, err := web.NewServer(opts)
	if err != nil {
		return errors.Wrap(err, "new web server")
	}
	return server.Run(ctx, gconfig.Shared.GetString("listen"))
}

func init() {
	apiCMD.Flags().String("listen", "localhost:8080", "like `localhost:8080`")
	rootCMD.AddCommand(apiCMD)
}
