// Package web serves the stock over HTTP: uploads, downloads, the JSON tool
// endpoint and the MCP transport.
package web

import (
	"context"
	"net/http"
	"time"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/docstock/internal/blobstore"
	"github.com/Laisky/docstock/internal/mcp/auth"
	"github.com/Laisky/docstock/internal/stock"
	"github.com/Laisky/docstock/library/log"
)

// DefaultMaxUploadBytes bounds an uploaded file when no limit is configured.
const DefaultMaxUploadBytes int64 = 50 << 20

// multipartSlackBytes covers the form fields and part headers around the file.
const multipartSlackBytes int64 = 1 << 20

// AnyMimeType in AllowedMimeTypes disables the content type check.
const AnyMimeType = "*"

// DefaultAllowedMimeTypes lists the document and image types accepted for upload.
var DefaultAllowedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/plain",
}

// Dispatcher runs a named stock operation.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) stock.Envelope
}

// FilePurger hard-deletes file metadata.
type FilePurger interface {
	PurgeFile(ctx context.Context, id string) (*stock.File, error)
}

// OrphanQueue remembers blobs that lost their metadata row.
type OrphanQueue interface {
	AddOrphanBlobTask(ctx context.Context, path, reason string) error
}

// Options wires the collaborators of a Server. Dispatcher, Purger and
// Blobs are required. AllowedMimeTypes defaults to DefaultAllowedMimeTypes.
type Options struct {
	Dispatcher       Dispatcher
	Purger           FilePurger
	Blobs            blobstore.Store
	Orphans          OrphanQueue
	TokenParser      auth.TokenParser
	AuthRequired     bool
	MCPHandler       http.Handler
	CallLogHandler   http.Handler
	AllowedDomains   []string
	MaxUploadBytes   int64
	AllowedMimeTypes []string
	EnableMetrics    bool
	Logger           logSDK.Logger
	Clock            func() time.Time
}

// Server is the gin application.
type Server struct {
	engine         *gin.Engine
	dispatcher     Dispatcher
	purger         FilePurger
	blobs          blobstore.Store
	orphans        OrphanQueue
	tokenParser    auth.TokenParser
	gate           auth.Gate
	maxUploadBytes int64
	allowedTypes   map[string]struct{}
	logger         logSDK.Logger
	clock          func() time.Time
}

// NewServer builds the router.
func NewServer(opts Options) (*Server, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if opts.Purger == nil {
		return nil, errors.New("file purger is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if opts.AuthRequired && opts.TokenParser == nil {
		return nil, errors.New("token parser is required when auth is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Logger.Named("web")
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(opts.AllowedMimeTypes) == 0 {
		opts.AllowedMimeTypes = DefaultAllowedMimeTypes
	}

	s := &Server{
		engine:         gin.New(),
		dispatcher:     opts.Dispatcher,
		purger:         opts.Purger,
		blobs:          opts.Blobs,
		orphans:        opts.Orphans,
		tokenParser:    opts.TokenParser,
		gate:           auth.Gate{Required: opts.AuthRequired},
		maxUploadBytes: opts.MaxUploadBytes,
		allowedTypes:   mimeTypeSet(opts.AllowedMimeTypes),
		logger:         opts.Logger,
		clock:          opts.Clock,
	}

	s.engine.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(s.logger.Level().String()),
			gmw.WithLogger(s.logger.Named("gin")),
		),
		newCORSMiddleware(opts.AllowedDomains),
	)
	if opts.EnableMetrics {
		if err := gmw.EnableMetric(s.engine); err != nil {
			return nil, errors.Wrap(err, "enable metric server")
		}
	}

	s.engine.GET("/health", newStatusHandler())
	s.engine.HEAD("/health", newStatusHandler())

	api := s.engine.Group("/api", s.resolveIdentity)
	api.POST("/tools/:name", s.handleTool)
	api.POST("/files", s.handleUpload)
	api.GET("/files/:id/download", s.handleDownload)
	api.DELETE("/files/:id", s.handlePurge)
	if opts.CallLogHandler != nil {
		s.engine.GET("/api/logs", gin.WrapH(opts.CallLogHandler))
	}
	if opts.MCPHandler != nil {
		s.engine.Any("/mcp", gin.WrapH(opts.MCPHandler))
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on http", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server exit")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	s.logger.Info("http server stopped")
	return nil
}

// newStatusHandler answers liveness probes.
func newStatusHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Allow", "GET, HEAD, OPTIONS")
		if ctx.Request.Method != http.MethodGet {
			ctx.Status(http.StatusOK)
			return
		}
		ctx.String(http.StatusOK, "ok")
	}
}

// resolveIdentity attaches the bearer identity, or its rejection, to the request context.
func (s *Server) resolveIdentity(ctx *gin.Context) {
	resolved := auth.ResolveContext(ctx.Request.Context(), ctx.GetHeader("Authorization"), s.tokenParser)
	ctx.Request = ctx.Request.WithContext(resolved)
	ctx.Next()
}

func (s *Server) loggerFor(ctx *gin.Context) logSDK.Logger {
	if logger := gmw.GetLogger(ctx); logger != nil {
		return logger
	}
	return s.logger
}
