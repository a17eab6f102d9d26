package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/fingerprint-matcher/internal/cache"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/metrics"
)

// Match is an enrolled identity whose similarity reached the threshold.
type Match struct {
	Identity   database.StoredIdentity
	Similarity float64
}

// ChunkResult summarizes the comparison of one chunk.
type ChunkResult struct {
	Match     *Match  // first qualifying identity in chunk order, nil if none
	Best      float64 // highest similarity seen in the chunk
	Compared  int     // identities scored or served from cache
	CacheHits int
	Errors    int // identities skipped because scoring failed
}

// Comparator compares a probe against one chunk of enrolled identities,
// reusing cached results where available.
type Comparator struct {
	store     database.IdentityReader
	cache     cache.Cache
	scorer    Scorer
	threshold float64
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewComparator creates a chunk comparator. A nil cache disables caching and a
// nil scorer falls back to HammingScorer.
func NewComparator(store database.IdentityReader, c cache.Cache, scorer Scorer, params Params, opts ...Option) *Comparator {
	s := newSettings(opts)
	if c == nil {
		c = cache.Noop{}
	}
	if scorer == nil {
		scorer = HammingScorer{}
	}
	return &Comparator{
		store:     store,
		cache:     c,
		scorer:    scorer,
		threshold: params.Threshold,
		ttl:       params.CacheTTL,
		keyPrefix: params.KeyPrefix,
		logger:    s.logger,
		metrics:   s.metrics,
	}
}

// CompareChunk scans the chunk in order and stops at the first identity whose
// similarity reaches the threshold. Identities missing from the store or failing
// to score are skipped. Only a failure to fetch the chunk is returned as an error.
func (c *Comparator) CompareChunk(ctx context.Context, probe fingerprint.Template, chunk []int64) (ChunkResult, error) {
	var result ChunkResult

	records, err := c.store.FetchByIDs(ctx, chunk)
	if err != nil {
		return result, fmt.Errorf("fetch chunk of %d identities: %w", len(chunk), err)
	}

	for _, id := range chunk {
		identity, ok := records[id]
		if !ok {
			continue
		}

		key := cache.KeyWithPrefix(c.keyPrefix, id, probe)
		similarity, hit := c.lookup(ctx, key)
		if hit {
			result.CacheHits++
		} else {
			similarity, err = c.scorer.Score(ctx, probe, identity.Template)
			if err != nil {
				result.Errors++
				c.metrics.IncComparisonErrors()
				c.logger.Warn("comparison failed, skipping identity",
					"identity_id", id,
					"probe_len", len(probe),
					"candidate_len", len(identity.Template),
					"error", err)
				continue
			}
			c.remember(ctx, key, similarity)
		}

		result.Compared++
		// Matched is always re-derived against the current threshold
		outcome := fingerprint.NewComparisonResult(similarity, c.threshold)
		c.metrics.ObserveComparison(outcome.Matched)
		if similarity > result.Best {
			result.Best = similarity
		}
		if outcome.Matched {
			result.Match = &Match{Identity: identity, Similarity: similarity}
			return result, nil
		}
	}

	return result, nil
}

// lookup returns the cached similarity. Cache failures are logged and treated as a miss.
func (c *Comparator) lookup(ctx context.Context, key string) (float64, bool) {
	cached, ok, err := c.cache.Get(ctx, key)
	c.metrics.ObserveCacheLookup(ok, err)
	if err != nil {
		c.logger.Warn("cache lookup failed", "key", key, "error", err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	return cached.Similarity, true
}

// remember writes the result to the cache. Failures are logged and ignored.
func (c *Comparator) remember(ctx context.Context, key string, similarity float64) {
	value := fingerprint.NewComparisonResult(similarity, c.threshold)
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
