package stock

import (
	"fmt"
	"strings"
	"time"

	gconfig "github.com/Laisky/go-config/v2"
)

const (
	defaultListLimit    = 100
	defaultListLimitMax = 1000
	defaultStatsTTL     = 10 * time.Minute
)

// Settings captures runtime configuration for the stock service.
type Settings struct {
	ListLimitDefault int
	ListLimitMax     int
	StatsCache       StatsCacheSettings
	SeedCategories   bool
}

// StatsCacheSettings configures the optional analytics cache.
type StatsCacheSettings struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		ListLimitDefault: defaultListLimit,
		ListLimitMax:     defaultListLimitMax,
		StatsCache: StatsCacheSettings{
			Prefix: "docstock:stats",
			TTL:    defaultStatsTTL,
		},
	}
}

// LoadSettingsFromConfig reads configuration and applies safe defaults.
func LoadSettingsFromConfig() Settings {
	settings := Settings{
		ListLimitDefault: intFromConfig("settings.stock.list_limit_default", defaultListLimit),
		ListLimitMax:     intFromConfig("settings.stock.list_limit_max", defaultListLimitMax),
		SeedCategories:   gconfig.S.GetBool("settings.stock.seed_categories"),
		StatsCache: StatsCacheSettings{
			Enabled: gconfig.S.GetBool("settings.stats_cache.enabled"),
			Prefix:  strings.TrimSpace(gconfig.S.GetString("settings.stats_cache.prefix")),
			TTL:     time.Duration(intFromConfig("settings.stats_cache.ttl_seconds", int(defaultStatsTTL/time.Second))) * time.Second,
		},
	}

	return settings.normalize()
}

func (s Settings) normalize() Settings {
	if s.ListLimitDefault <= 0 {
		s.ListLimitDefault = defaultListLimit
	}
	if s.ListLimitMax <= 0 {
		s.ListLimitMax = defaultListLimitMax
	}
	if s.ListLimitDefault > s.ListLimitMax {
		s.ListLimitDefault = s.ListLimitMax
	}
	if s.StatsCache.Prefix == "" {
		s.StatsCache.Prefix = "docstock:stats"
	}
	if s.StatsCache.TTL <= 0 {
		s.StatsCache.TTL = defaultStatsTTL
	}
	return s
}

// intFromConfig reads an int configuration value with a default fallback.
func intFromConfig(key string, def int) int {
	value := gconfig.S.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def
		}
		var parsed int
		if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}
