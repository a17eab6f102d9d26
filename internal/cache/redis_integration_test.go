//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
)

func newRedisCache(t *testing.T) *Redis {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	c, err := NewRedis(ctx, url, 4, "fingerprint_match")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedis_GetSetClear(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()
	tmpl := fingerprint.Template{1, 2, 3, 4}

	key := Key(11, tmpl)
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := fingerprint.ComparisonResult{Similarity: 0.91, Matched: true}
	require.NoError(t, c.Set(ctx, key, want, time.Minute))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	ttl, err := c.client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	for i := range 10 {
		require.NoError(t, c.Set(ctx, Key(int64(100+i), tmpl), want, time.Minute))
	}
	require.NoError(t, c.client.Set(ctx, "unrelated", "x", time.Minute).Err())

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	exists, err := c.client.Exists(ctx, "unrelated").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, exists)
}

func TestRedis_Health(t *testing.T) {
	c := newRedisCache(t)
	assert.NoError(t, c.Health(context.Background()))
}
