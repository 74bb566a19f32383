// Package postgres builds the pgx connection pool shared by stores.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPort    = 5432
	defaultSSLMode = "disable"
)

// DialInfo postgres dial info
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd string
	Port    int
	SSLMode string
	// MaxConns caps the pool size, 0 keeps the pgxpool default.
	MaxConns int32
}

// BuildDSN builds a PostgreSQL URL DSN for pgx.
func BuildDSN(dialInfo DialInfo) string {
	port := dialInfo.Port
	if port <= 0 {
		port = defaultPort
	}
	sslMode := dialInfo.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(dialInfo.User, dialInfo.Pwd),
		Host:   fmt.Sprintf("%s:%d", dialInfo.Addr, port),
		Path:   "/" + dialInfo.DBName,
	}
	q := u.Query()
	q.Set("sslmode", sslMode)
	q.Set("timezone", "UTC")
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPool connects a pgx pool and verifies it with a ping.
// When logger is non-nil every statement is traced at debug level.
func NewPool(ctx context.Context, dialInfo DialInfo, logger logSDK.Logger) (*pgxpool.Pool, error) {
	if dialInfo.Addr == "" {
		return nil, errors.New("postgres addr is required")
	}

	cfg, err := pgxpool.ParseConfig(BuildDSN(dialInfo))
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	if dialInfo.MaxConns > 0 {
		cfg.MaxConns = dialInfo.MaxConns
	}
	cfg.MaxConnLifetime = time.Hour
	if logger != nil {
		cfg.ConnConfig.Tracer = newQueryTracer(logger)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return pool, nil
}
