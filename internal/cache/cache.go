// Package cache stores comparison results keyed by identity and probe content.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/fingerprint-matcher/internal/constants"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
)

// Cache is a get/set-with-expiry store for comparison results.
// Implemented by the in-process memory cache, Redis, Badger and a no-op.
type Cache interface {
	// Get returns the cached result and whether it was present.
	Get(ctx context.Context, key string) (fingerprint.ComparisonResult, bool, error)
	// Set stores a result for ttl.
	Set(ctx context.Context, key string, value fingerprint.ComparisonResult, ttl time.Duration) error
	// Clear removes every entry under the cache's key prefix and reports how many were removed.
	Clear(ctx context.Context) (int, error)
	Close() error
}

// Key returns the cache key for comparing template against identity id
// under the default prefix.
func Key(id int64, template fingerprint.Template) string {
	return KeyWithPrefix(constants.CacheKeyPrefix, id, template)
}

// KeyWithPrefix returns "<prefix>:<id>:<sha256-hex(template)>".
// The key depends only on its inputs so it is stable across processes.
func KeyWithPrefix(prefix string, id int64, template fingerprint.Template) string {
	sum := sha256.Sum256(template)
	var b strings.Builder
	b.Grow(len(prefix) + 2 + 20 + hex.EncodedLen(len(sum)))
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(id, 10))
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(sum[:]))
	return b.String()
}

func encode(value fingerprint.ComparisonResult) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode comparison result: %w", err)
	}
	return data, nil
}

func decode(data []byte) (fingerprint.ComparisonResult, error) {
	var value fingerprint.ComparisonResult
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("decode comparison result: %w", err)
	}
	return value, nil
}
