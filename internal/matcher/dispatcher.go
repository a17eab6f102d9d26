package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/metrics"
)

// SearchResult is the outcome of one search over the enrolled set.
type SearchResult struct {
	Match          *Match
	BestSimilarity float64 // highest similarity across completed chunks
	TimedOut       bool    // the join deadline expired before every chunk finished
	Chunks         int
	Compared       int
	CacheHits      int
	Errors         int
}

// Dispatcher fans chunk comparisons out over a bounded worker pool and joins
// them under a deadline.
type Dispatcher struct {
	comparator *Comparator
	chunkSize  int
	workers    int
	timeout    time.Duration
	clock      Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewDispatcher creates a dispatcher around comparator.
func NewDispatcher(comparator *Comparator, params Params, opts ...Option) *Dispatcher {
	s := newSettings(opts)
	clock := s.clock
	if s.searchClock != nil {
		clock = s.searchClock
	}
	return &Dispatcher{
		comparator: comparator,
		chunkSize:  params.ChunkSize,
		workers:    params.Workers,
		timeout:    params.SearchTimeout,
		clock:      clock,
		logger:     s.logger,
		metrics:    s.metrics,
	}
}

type chunkOutcome struct {
	result ChunkResult
	err    error
}

// Search compares probe against ids. Every chunk runs to completion before a
// decision is made; the first matching chunk in index order wins. If the
// deadline passes first the search reports TimedOut with no match, and the
// outstanding chunk work keeps running detached from ctx.
func (d *Dispatcher) Search(ctx context.Context, probe fingerprint.Template, ids []int64) (SearchResult, error) {
	start := time.Now()
	chunks := Partition(ids, d.chunkSize)
	result := SearchResult{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}

	outcomes := make([]chunkOutcome, len(chunks))
	workCtx := context.WithoutCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(d.workers)
		for i, chunk := range chunks {
			g.Go(func() error {
				res, err := d.comparator.CompareChunk(workCtx, probe, chunk)
				outcomes[i] = chunkOutcome{result: res, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-d.clock.After(d.timeout):
		result.TimedOut = true
		d.metrics.ObserveSearch(start, len(chunks), true)
		d.logger.Warn("search timed out, treating attempt as no match",
			"chunks", len(chunks),
			"identities", len(ids),
			"timeout", d.timeout)
		return result, nil
	case <-ctx.Done():
		return result, ctx.Err()
	}

	d.metrics.ObserveSearch(start, len(chunks), false)

	for i, o := range outcomes {
		if o.err != nil {
			return result, fmt.Errorf("chunk %d: %w", i, o.err)
		}
	}

	for _, o := range outcomes {
		result.Compared += o.result.Compared
		result.CacheHits += o.result.CacheHits
		result.Errors += o.result.Errors
		if o.result.Best > result.BestSimilarity {
			result.BestSimilarity = o.result.Best
		}
		if result.Match == nil && o.result.Match != nil {
			result.Match = o.result.Match
		}
	}

	d.logger.Debug("search finished",
		"chunks", len(chunks),
		"compared", result.Compared,
		"cache_hits", result.CacheHits,
		"errors", result.Errors,
		"matched", result.Match != nil,
		"duration", time.Since(start))

	return result, nil
}
