package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
)

const clearBatchSize = 500

// Redis stores comparison results as JSON strings with a native TTL.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the Redis server at url and verifies the connection.
func NewRedis(ctx context.Context, url string, poolSize int, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisFromClient(client, prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (fingerprint.ComparisonResult, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fingerprint.ComparisonResult{}, false, nil
	}
	if err != nil {
		return fingerprint.ComparisonResult{}, false, fmt.Errorf("redis get: %w", err)
	}

	value, err := decode(data)
	if err != nil {
		return fingerprint.ComparisonResult{}, false, err
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value fingerprint.ComparisonResult, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear deletes all keys under the prefix using SCAN so the server is never blocked.
func (r *Redis) Clear(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	pattern := r.prefix + ":*"
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, clearBatchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Health checks if the Redis connection is healthy.
func (r *Redis) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
