// Package redis wraps the go-redis client used for caching and task queues.
package redis

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"github.com/redis/go-redis/v9"
)

// DB is a wrapper for go-redis
type DB struct {
	client *redis.Client
}

// NewDB creates a new DB instance
func NewDB(opt *redis.Options) *DB {
	return &DB{
		client: redis.NewClient(opt),
	}
}

// Client returns the underlying command interface.
func (db *DB) Client() redis.Cmdable {
	return db.client
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "ping redis")
	}
	return nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.client.Close()
}
