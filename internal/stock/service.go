package stock

import (
	"context"
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/docstock/library/log"
)

// Clock provides the current time in UTC.
type Clock func() time.Time

// Service executes validated stock requests against a Store.
type Service struct {
	store    Store
	cache    StatsCache
	settings Settings
	logger   logSDK.Logger
	clock    Clock
	newID    func() string
}

// NewService constructs a Service. cache may be nil to disable stats caching.
func NewService(store Store, settings Settings, cache StatsCache, logger logSDK.Logger, clock Clock) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = log.Logger.Named("stock_service")
	}
	if clock == nil {
		clock = func() time.Time {
			return time.Now().UTC()
		}
	}

	settings = settings.normalize()
	if !settings.StatsCache.Enabled {
		cache = nil
	}

	return &Service{
		store:    store,
		cache:    cache,
		settings: settings,
		logger:   logger,
		clock:    clock,
		newID: func() string {
			return gutils.UUID7Bytes().String()
		},
	}, nil
}

// Settings returns the normalized settings the service runs with.
func (s *Service) Settings() Settings {
	return s.settings
}

// inTx runs fn in one store transaction and invalidates cached analytics on success.
func (s *Service) inTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := s.store.InTx(ctx, fn); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

// invalidateStats bumps the cache generation so no cached result outlives a write.
func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("bump stats cache generation", zap.Error(err))
	}
}
