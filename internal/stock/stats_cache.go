package stock

import (
	"context"
	"strconv"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/redis/go-redis/v9"
)

// StatsCache stores computed analytics under a generation counter.
// Every successful mutation bumps the generation, orphaning older entries.
type StatsCache interface {
	Generation(ctx context.Context) (int64, error)
	Bump(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStatsCache implements StatsCache on Redis.
type RedisStatsCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStatsCache constructs a RedisStatsCache whose keys share prefix.
func NewRedisStatsCache(client redis.Cmdable, prefix string) (*RedisStatsCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultSettings().StatsCache.Prefix
	}
	return &RedisStatsCache{client: client, prefix: prefix}, nil
}

func (c *RedisStatsCache) generationKey() string {
	return c.prefix + ":generation"
}

// Generation implements StatsCache.
func (c *RedisStatsCache) Generation(ctx context.Context) (int64, error) {
	raw, err := c.client.Get(ctx, c.generationKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "get stats generation")
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse stats generation")
	}
	return gen, nil
}

// Bump implements StatsCache.
func (c *RedisStatsCache) Bump(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return errors.Wrap(err, "bump stats generation")
	}
	return nil
}

// Get implements StatsCache.
func (c *RedisStatsCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get cached stats")
	}
	return value, true, nil
}

// Set implements StatsCache.
func (c *RedisStatsCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+":"+key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "set cached stats")
	}
	return nil
}
