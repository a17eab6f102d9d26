package matcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/kozaktomas/fingerprint-matcher/internal/database/mock"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/logging"
)

const templateSize = 512

// randomTemplate builds a deterministic pseudo-random template.
func randomTemplate(seed uint64) fingerprint.Template {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	t := make(fingerprint.Template, templateSize)
	for i := range t {
		t[i] = byte(r.IntN(256))
	}
	return t
}

// mutate returns a copy of t with the first n bytes inverted.
func mutate(t fingerprint.Template, n int) fingerprint.Template {
	out := t.Clone()
	for i := range n {
		out[i] ^= 0xFF
	}
	return out
}

func newStore(t *testing.T, templates map[int64]fingerprint.Template) *mock.MockIdentityStore {
	t.Helper()
	store := mock.NewMockIdentityStore()
	for id, tmpl := range templates {
		store.AddIdentity(database.StoredIdentity{
			ID:        id,
			FullName:  fmt.Sprintf("Person %d", id),
			BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
			Template:  tmpl,
		})
	}
	return store
}

func testParams() Params {
	p := DefaultParams()
	p.RetryDelay = 2 * time.Second
	p.SearchTimeout = time.Minute
	return p
}

func quiet() Option {
	return WithLogger(logging.Nop())
}

// fakeClock records requested delays. With autoFire set, After fires immediately.
type fakeClock struct {
	mu       sync.Mutex
	now      time.Time
	delays   []time.Duration
	pending  []chan time.Time
	autoFire bool
	waiting  chan struct{}
}

func newFakeClock(autoFire bool) *fakeClock {
	return &fakeClock{
		now:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		autoFire: autoFire,
		waiting:  make(chan struct{}, 64),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays = append(c.delays, d)
	ch := make(chan time.Time, 1)
	if c.autoFire {
		c.now = c.now.Add(d)
		ch <- c.now
	} else {
		c.pending = append(c.pending, ch)
	}
	c.waiting <- struct{}{}
	return ch
}

// awaitAfter blocks until some goroutine called After.
func (c *fakeClock) awaitAfter(t *testing.T) {
	t.Helper()
	select {
	case <-c.waiting:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for clock.After")
	}
}

// fire releases every pending timer.
func (c *fakeClock) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.pending {
		ch <- c.now
	}
	c.pending = nil
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// captureFunc adapts a function to CaptureSource and counts calls.
type captureFunc struct {
	fn    func(call int) (fingerprint.Template, error)
	calls atomic.Int32
}

func newCapture(fn func(call int) (fingerprint.Template, error)) *captureFunc {
	return &captureFunc{fn: fn}
}

func (c *captureFunc) AcquireTemplate(ctx context.Context) (fingerprint.Template, error) {
	n := int(c.calls.Add(1))
	return c.fn(n)
}

func staticCapture(t fingerprint.Template) *captureFunc {
	return newCapture(func(int) (fingerprint.Template, error) { return t.Clone(), nil })
}

// countingScorer wraps HammingScorer and counts invocations.
type countingScorer struct {
	calls atomic.Int32
}

func (s *countingScorer) Score(ctx context.Context, a, b fingerprint.Template) (float64, error) {
	s.calls.Add(1)
	return HammingScorer{}.Score(ctx, a, b)
}

// countingSearcher wraps a Searcher and counts invocations.
type countingSearcher struct {
	inner Searcher
	calls atomic.Int32
}

func (s *countingSearcher) Search(ctx context.Context, probe fingerprint.Template, ids []int64) (SearchResult, error) {
	s.calls.Add(1)
	return s.inner.Search(ctx, probe, ids)
}

var errCacheDown = errors.New("cache down")

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string) (fingerprint.ComparisonResult, bool, error) {
	return fingerprint.ComparisonResult{}, false, errCacheDown
}

func (brokenCache) Set(ctx context.Context, key string, value fingerprint.ComparisonResult, ttl time.Duration) error {
	return errCacheDown
}

func (brokenCache) Clear(ctx context.Context) (int, error) { return 0, errCacheDown }
func (brokenCache) Close() error                          { return nil }

// trackingReader records the peak number of concurrent FetchByIDs calls.
type trackingReader struct {
	database.IdentityReader
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (r *trackingReader) FetchByIDs(ctx context.Context, ids []int64) (map[int64]database.StoredIdentity, error) {
	n := r.inflight.Add(1)
	defer r.inflight.Add(-1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(r.delay)
	return r.IdentityReader.FetchByIDs(ctx, ids)
}
