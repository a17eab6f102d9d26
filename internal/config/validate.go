package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	cacheBackends   = []string{"memory", "redis", "badger", "none"}
	databaseDrivers = []string{"postgres", "mariadb", "sqlite"}
	sensorModes     = []string{"spool", "bridge"}
	logFormats      = []string{"console", "json"}
)

// Validate checks the configuration ranges and enum values.
// All problems are reported together, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	m := c.Matcher
	if m.Threshold <= 0 || m.Threshold > 1 {
		add("matcher.threshold must be in (0, 1], got %v", m.Threshold)
	}
	if m.ChunkSize <= 0 {
		add("matcher.chunk_size must be positive, got %d", m.ChunkSize)
	}
	if m.Workers <= 0 {
		add("matcher.workers must be positive, got %d", m.Workers)
	}
	if m.MaxAttempts <= 0 {
		add("matcher.max_attempts must be positive, got %d", m.MaxAttempts)
	}
	if m.RetryDelay.Duration < 0 {
		add("matcher.retry_delay must not be negative, got %s", m.RetryDelay)
	}
	if m.SearchTimeout.Duration <= 0 {
		add("matcher.search_timeout must be positive, got %s", m.SearchTimeout)
	}
	if m.CacheTTL.Duration <= 0 {
		add("matcher.cache_ttl must be positive, got %s", m.CacheTTL)
	}

	if !slices.Contains(cacheBackends, strings.ToLower(c.Cache.Backend)) {
		add("cache.backend must be one of %s, got %q", strings.Join(cacheBackends, ", "), c.Cache.Backend)
	}
	if strings.EqualFold(c.Cache.Backend, "redis") && c.Cache.RedisURL == "" {
		add("cache.redis_url is required for the redis backend")
	}

	if !slices.Contains(databaseDrivers, strings.ToLower(c.Database.Driver)) {
		add("database.driver must be one of %s, got %q", strings.Join(databaseDrivers, ", "), c.Database.Driver)
	}

	if !slices.Contains(sensorModes, strings.ToLower(c.Sensor.Mode)) {
		add("sensor.mode must be one of %s, got %q", strings.Join(sensorModes, ", "), c.Sensor.Mode)
	}
	if strings.EqualFold(c.Sensor.Mode, "bridge") && c.Sensor.BridgeURL == "" {
		add("sensor.bridge_url is required for the bridge mode")
	}
	if c.Sensor.NativeCompare && c.Sensor.BridgeURL == "" {
		add("sensor.native_compare requires sensor.bridge_url")
	}

	if !slices.Contains(logFormats, strings.ToLower(c.Logging.Format)) {
		add("logging.format must be one of %s, got %q", strings.Join(logFormats, ", "), c.Logging.Format)
	}

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		add("web.port must be a valid TCP port, got %d", c.Web.Port)
	}

	return errors.Join(errs...)
}
