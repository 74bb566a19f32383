package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"
)

// FileStats aggregates active files matching the request.
func (s *Service) FileStats(ctx context.Context, req FileStatsRequest) (*FileStats, error) {
	stats, err := loadCached(ctx, s, statsCacheKey(req), func() (*FileStats, error) {
		rows, err := s.store.StatsRows(ctx, BuildStatsQuery(req))
		if err != nil {
			return nil, errors.Wrap(err, "load stats rows")
		}
		computed := ComputeFileStats(rows)
		return &computed, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "file stats")
	}
	return stats, nil
}

// CategoryUsage reports every category with its active file count and share.
// The category list and the active file categories are fetched concurrently.
func (s *Service) CategoryUsage(ctx context.Context) ([]CategoryUsage, error) {
	usage, err := loadCached(ctx, s, "category_usage", func() ([]CategoryUsage, error) {
		var (
			categories []Category
			active     []string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			if categories, err = s.store.ListCategories(gctx, CategoryQuery{}); err != nil {
				return errors.Wrap(err, "load categories")
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if active, err = s.store.ActiveFileCategories(gctx); err != nil {
				return errors.Wrap(err, "load active file categories")
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return ComputeCategoryUsage(categories, active), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "category usage")
	}
	return usage, nil
}

// statsCacheKey identifies a stats filter within one cache generation.
func statsCacheKey(req FileStatsRequest) string {
	format := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("file_stats:%s:%s:%s:%t",
		req.Category, format(req.Range.From), format(req.Range.Until), req.Range.UntilExclusive)
}

// loadCached returns the cached value for key in the current generation, or
// computes and stores it. Cache failures are logged and bypassed.
func loadCached[T any](ctx context.Context, s *Service, key string, compute func() (T, error)) (T, error) {
	if s.cache == nil {
		return compute()
	}

	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warn("read stats cache generation", zap.Error(err))
		return compute()
	}
	fullKey := fmt.Sprintf("g%d:%s", gen, key)

	if raw, ok, err := s.cache.Get(ctx, fullKey); err != nil {
		s.logger.Warn("read stats cache", zap.Error(err), zap.String("key", fullKey))
	} else if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.logger.Warn("decode cached stats", zap.String("key", fullKey))
	}

	value, err := compute()
	if err != nil {
		return value, err
	}

	if raw, err := json.Marshal(value); err != nil {
		s.logger.Warn("encode stats for cache", zap.Error(err))
	} else if err := s.cache.Set(ctx, fullKey, raw, s.settings.StatsCache.TTL); err != nil {
		s.logger.Warn("write stats cache", zap.Error(err), zap.String("key", fullKey))
	}
	return value, nil
}
