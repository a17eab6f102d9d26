package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/fingerprint-matcher/internal/config"
	"github.com/kozaktomas/fingerprint-matcher/internal/constants"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
)

// Noop never stores anything; every lookup is a miss.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (fingerprint.ComparisonResult, bool, error) {
	return fingerprint.ComparisonResult{}, false, nil
}

func (Noop) Set(ctx context.Context, key string, value fingerprint.ComparisonResult, ttl time.Duration) error {
	return nil
}

func (Noop) Clear(ctx context.Context) (int, error) { return 0, nil }

func (Noop) Close() error { return nil }

// Open returns the cache backend selected by cfg.Backend.
func Open(ctx context.Context, cfg *config.CacheConfig) (Cache, error) {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = constants.CacheKeyPrefix
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		r, err := NewRedis(ctx, cfg.RedisURL, cfg.RedisPoolSize, prefix)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "badger":
		b, err := NewBadger(cfg.BadgerPath, prefix)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "none":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
