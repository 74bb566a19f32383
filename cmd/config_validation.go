package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"

	"github.com/Laisky/docstock/internal/stock"
)

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
// It returns an error when any configured value is malformed or violates constraints.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.S.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
// It accepts a value getter and returns nil when all configured values are valid.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validatePostgresConfig(get, &validationErrs)
	validateRedisConfig(get, &validationErrs)
	validateBlobConfig(get, &validationErrs)
	validateStockConfig(get, &validationErrs)
	validateAuthConfig(get, &validationErrs)
	validateMCPToolsConfig(get, &validationErrs)
	validateWebConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

func validatePostgresConfig(get configGetter, errs *[]string) {
	validateOptionalIntRange(get, "settings.db.postgres.port", 1, 65535, errs)
	validateOptionalIntMin(get, "settings.db.postgres.max_conns", 1, errs)

	raw := get("settings.db.postgres.sslmode")
	if raw == nil {
		return
	}
	mode, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "settings.db.postgres.sslmode must be a string")
		return
	}
	switch strings.TrimSpace(mode) {
	case "", "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		appendValidationError(errs, "settings.db.postgres.sslmode %q is not a libpq sslmode", mode)
	}
}

// validateRedisConfig validates redis-related startup configuration values.
// It accepts a getter and an error collector pointer and appends validation errors.
func validateRedisConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.db.redis.db", 0, errs)
	validateOptionalBool(get, "settings.stats_cache.enabled", errs)
	validateOptionalIntMin(get, "settings.stats_cache.ttl_seconds", 1, errs)
	validateOptionalStringNonEmpty(get, "settings.stats_cache.prefix", errs)
}

// validateBlobConfig requires a bucket once an endpoint is configured.
func validateBlobConfig(get configGetter, errs *[]string) {
	validateOptionalBool(get, "settings.blob.secure", errs)
	validateOptionalInt64Min(get, "settings.blob.max_upload_bytes", 1, errs)
	validateOptionalStringList(get, "settings.blob.allowed_mime_types", "a type/subtype media type or \"*\"", func(mediaType string) bool {
		if mediaType == "*" {
			return true
		}
		major, minor, found := strings.Cut(mediaType, "/")
		return found && major != "" && minor != "" && !strings.Contains(minor, "/")
	}, errs)

	endpoint, _ := parseStrictString(get("settings.blob.endpoint"))
	if strings.TrimSpace(endpoint) == "" {
		return
	}
	if strings.Contains(endpoint, "://") {
		appendValidationError(errs, "settings.blob.endpoint must be host[:port] without a scheme, use settings.blob.secure for TLS")
	}
	bucket, _ := parseStrictString(get("settings.blob.bucket"))
	if strings.TrimSpace(bucket) == "" {
		appendValidationError(errs, "settings.blob.bucket is required when settings.blob.endpoint is set")
	}
}

func validateStockConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.stock.list_limit_default", 1, errs)
	validateOptionalIntMin(get, "settings.stock.list_limit_max", 1, errs)
	validateOptionalBool(get, "settings.stock.seed_categories", errs)

	defaultRaw := get("settings.stock.list_limit_default")
	maxRaw := get("settings.stock.list_limit_max")
	if defaultRaw != nil && maxRaw != nil {
		listDefault, defaultErr := parseStrictInt(defaultRaw)
		listMax, maxErr := parseStrictInt(maxRaw)
		if defaultErr == nil && maxErr == nil && listDefault > listMax {
			appendValidationError(errs, "settings.stock.list_limit_default must be <= settings.stock.list_limit_max")
		}
	}
}

// validateAuthConfig rejects required auth without a signing secret.
func validateAuthConfig(get configGetter, errs *[]string) {
	validateOptionalBool(get, "settings.auth.required", errs)
	validateOptionalStringNonEmpty(get, "settings.auth.secret", errs)

	required, ok := parseStrictBool(get("settings.auth.required"))
	if !ok || !required {
		return
	}
	if secret, _ := parseStrictString(get("settings.auth.secret")); strings.TrimSpace(secret) == "" {
		appendValidationError(errs, "settings.auth.secret is required when settings.auth.required is true")
	}
}

// validateMCPToolsConfig validates MCP tool toggles.
// It accepts a getter and an error collector pointer and appends validation errors.
func validateMCPToolsConfig(get configGetter, errs *[]string) {
	for _, op := range stock.Operations {
		validateOptionalBool(get, fmt.Sprintf("settings.mcp.tools.%s.enabled", op), errs)
	}
	validateOptionalBool(get, "settings.mcp.read_only", errs)
	validateOptionalBool(get, "settings.mcp.call_log.enabled", errs)

	rawTools := get("settings.mcp.tools")
	if rawTools == nil {
		return
	}
	tools := toStringMap(rawTools)
	if tools == nil {
		appendValidationError(errs, "settings.mcp.tools must be an object")
		return
	}
	known := make(map[string]bool, len(stock.Operations))
	for _, op := range stock.Operations {
		known[string(op)] = true
	}
	for name := range tools {
		if !known[name] {
			appendValidationError(errs, "settings.mcp.tools.%s is not a known tool", name)
		}
	}
}

func validateWebConfig(get configGetter, errs *[]string) {
	validateOptionalBool(get, "settings.web.metrics.enabled", errs)
	validateOptionalStringList(get, "settings.web.cors.allowed_domains", "a bare domain", func(domain string) bool {
		return !strings.Contains(domain, "/")
	}, errs)
}

// validateOptionalStringList checks every entry of an optional list with valid.
func validateOptionalStringList(get configGetter, key, want string, valid func(string) bool, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}
	items, ok := raw.([]any)
	if !ok {
		if _, isStrings := raw.([]string); isStrings {
			return
		}
		appendValidationError(errs, "%s must be a list", key)
		return
	}
	for i, item := range items {
		text, parseErr := parseStrictString(item)
		if parseErr != nil || strings.TrimSpace(text) == "" || !valid(strings.TrimSpace(text)) {
			appendValidationError(errs, "%s[%d] must be %s", key, i, want)
		}
	}
}

// validateOptionalBool validates an optionally configured boolean key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalIntRange validates an optionally configured integer key within [min, max].
func validateOptionalIntRange(get configGetter, key string, min, max int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min || value > max {
		appendValidationError(errs, "%s must be within [%d, %d]", key, min, max)
	}
}

// validateOptionalInt64Min validates an optionally configured int64 key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalInt64Min(get configGetter, key string, min int64, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt64(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// parseStrictBool parses a value as boolean using strict conversion rules.
// It accepts a raw value and returns the parsed boolean and whether parsing succeeded.
func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		if math.Trunc(v) != v {
			return false, false
		}
		return int64(v) != 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false, false
		}
		switch strings.ToLower(trimmed) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

// parseStrictInt parses a value as a strict integer.
// It accepts a raw value and returns the parsed int and an error when parsing fails.
func parseStrictInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "atoi")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictInt64 parses a value as a strict int64.
// It accepts a raw value and returns the parsed int64 and an error when parsing fails.
func parseStrictInt64(value any) (int64, error) {
	parsed, err := parseStrictInt(value)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int64(parsed), nil
}

// parseStrictString parses a value as a strict string.
// It accepts a raw value and returns the parsed string and an error when parsing fails.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// toStringMap normalizes a decoded YAML object into map[string]any.
// It returns nil when value is not an object.
func toStringMap(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[fmt.Sprint(key)] = val
		}
		return out
	default:
		return nil
	}
}

// appendValidationError appends a formatted validation error to the collector.
// It accepts an error slice pointer, a format string, and format arguments, and has no return value.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}
