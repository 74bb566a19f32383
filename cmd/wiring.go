package cmd

import (
	"context"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Laisky/docstock/internal/blobstore"
	"github.com/Laisky/docstock/internal/mcp"
	"github.com/Laisky/docstock/internal/mcp/auth"
	"github.com/Laisky/docstock/internal/mcp/calllog"
	"github.com/Laisky/docstock/internal/stock"
	"github.com/Laisky/docstock/library/db/postgres"
	"github.com/Laisky/docstock/library/db/redis"
	"github.com/Laisky/docstock/library/jwt"
	"github.com/Laisky/docstock/library/log"
)

const tokenIssuer = "docstock"

// app holds the process-wide collaborators built from configuration.
type app struct {
	pool       *pgxpool.Pool
	redis      *redis.DB
	store      stock.Store
	service    *stock.Service
	dispatcher *stock.Dispatcher
	blobs      blobstore.Store
	codec      *jwt.Codec
	callLog    *calllog.Service
	tools      mcp.ToolsSettings
}

// newApp connects every configured backend. Postgres, redis and the blob
// bucket are optional; without them the in-memory implementations are used.
func newApp(ctx context.Context) (*app, error) {
	a := &app{tools: mcp.LoadToolsSettingsFromConfig()}
	if err := a.setup(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) setup(ctx context.Context) (err error) {
	if secret := gconfig.Shared.GetString("settings.auth.secret"); secret != "" {
		if a.codec, err = jwt.New([]byte(secret), tokenIssuer); err != nil {
			return errors.Wrap(err, "new jwt codec")
		}
	} else if a.tools.AuthRequired {
		return errors.New("settings.auth.secret is required when settings.auth.required is true")
	}

	if err = a.setupPostgres(ctx); err != nil {
		return err
	}
	if err = a.setupRedis(ctx); err != nil {
		return err
	}
	if err = a.setupBlobs(ctx); err != nil {
		return err
	}
	return a.setupStock(ctx)
}

func (a *app) setupPostgres(ctx context.Context) (err error) {
	addr := strings.TrimSpace(gconfig.Shared.GetString("settings.db.postgres.addr"))
	if addr == "" {
		log.Logger.Warn("settings.db.postgres.addr is empty, records are kept in memory")
		a.store = stock.NewMemoryStore()
		return nil
	}

	a.pool, err = postgres.NewPool(ctx, postgres.DialInfo{
		Addr:     addr,
		Port:     gconfig.Shared.GetInt("settings.db.postgres.port"),
		DBName:   gconfig.Shared.GetString("settings.db.postgres.db"),
		User:     gconfig.Shared.GetString("settings.db.postgres.user"),
		Pwd:      gconfig.Shared.GetString("settings.db.postgres.pwd"),
		SSLMode:  gconfig.Shared.GetString("settings.db.postgres.sslmode"),
		MaxConns: int32(gconfig.Shared.GetInt("settings.db.postgres.max_conns")),
	}, log.Logger.Named("postgres"))
	if err != nil {
		return errors.Wrap(err, "connect postgres")
	}

	if a.store, err = stock.NewPostgresStore(ctx, a.pool, log.Logger.Named("stock_store")); err != nil {
		return errors.Wrap(err, "new postgres store")
	}
	if a.tools.CallLogEnabled {
		if a.callLog, err = calllog.NewService(ctx, a.pool, log.Logger.Named("calllog"), nil); err != nil {
			return errors.Wrap(err, "new call log service")
		}
	}

	log.Logger.Info("connected postgres", zap.String("addr", addr))
	return nil
}

func (a *app) setupRedis(ctx context.Context) error {
	addr := strings.TrimSpace(gconfig.Shared.GetString("settings.db.redis.addr"))
	if addr == "" {
		return nil
	}

	a.redis = redis.NewDB(&goredis.Options{
		Addr:     addr,
		Password: gconfig.Shared.GetString("settings.db.redis.pwd"),
		DB:       gconfig.Shared.GetInt("settings.db.redis.db"),
	})
	if err := a.redis.Ping(ctx); err != nil {
		return errors.Wrap(err, "connect redis")
	}

	log.Logger.Info("connected redis", zap.String("addr", addr))
	return nil
}

func (a *app) setupBlobs(ctx context.Context) (err error) {
	endpoint := strings.TrimSpace(gconfig.Shared.GetString("settings.blob.endpoint"))
	if endpoint == "" {
		log.Logger.Warn("settings.blob.endpoint is empty, blobs are kept in memory")
		a.blobs = blobstore.NewMemoryStore()
		return nil
	}

	a.blobs, err = blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
		Endpoint:  endpoint,
		AccessKey: gconfig.Shared.GetString("settings.blob.access_key"),
		SecretKey: gconfig.Shared.GetString("settings.blob.secret_key"),
		Bucket:    gconfig.Shared.GetString("settings.blob.bucket"),
		Secure:    gconfig.Shared.GetBool("settings.blob.secure"),
	}, log.Logger.Named("blobstore"))
	if err != nil {
		return errors.Wrap(err, "connect blob store")
	}
	return nil
}

func (a *app) setupStock(ctx context.Context) (err error) {
	settings := stock.LoadSettingsFromConfig()

	var cache stock.StatsCache
	if settings.StatsCache.Enabled {
		if a.redis == nil {
			log.Logger.Warn("settings.stats_cache.enabled needs settings.db.redis.addr, stats are not cached")
		} else if cache, err = stock.NewRedisStatsCache(a.redis.Client(), settings.StatsCache.Prefix); err != nil {
			return errors.Wrap(err, "new stats cache")
		}
	}

	if a.service, err = stock.NewService(a.store, settings, cache, log.Logger.Named("stock"), nil); err != nil {
		return errors.Wrap(err, "new stock service")
	}
	if a.dispatcher, err = stock.NewDispatcher(a.service, log.Logger.Named("dispatcher")); err != nil {
		return errors.Wrap(err, "new dispatcher")
	}

	if settings.SeedCategories {
		created, err := a.service.SeedCategories(ctx, stock.DefaultCategorySeeds)
		if err != nil {
			return errors.Wrap(err, "seed categories")
		}
		log.Logger.Info("categories seeded", zap.Int("created", created))
	}
	return nil
}

// tokenParser returns nil, not a typed nil, when no secret is configured.
func (a *app) tokenParser() auth.TokenParser {
	if a.codec == nil {
		return nil
	}
	return a.codec
}

// callLogger returns nil unless the call log is backed by postgres.
func (a *app) callLogger() mcp.CallLogger {
	if a.callLog == nil {
		return nil
	}
	return a.callLog
}

func (a *app) newMCPServer() (*mcp.Server, error) {
	server, err := mcp.NewServer(a.dispatcher, a.tokenParser(), a.callLogger(), a.tools, log.Logger.Named("mcp"))
	if err != nil {
		return nil, errors.Wrap(err, "new mcp server")
	}
	return server, nil
}

// Close releases the connections opened by newApp.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
