package matcher

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/fingerprint-matcher/internal/cache"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
)

// failingReader fails FetchByIDs for chunks containing failID.
type failingReader struct {
	database.IdentityReader
	failID int64
	err    error
}

func (r failingReader) FetchByIDs(ctx context.Context, ids []int64) (map[int64]database.StoredIdentity, error) {
	if slices.Contains(ids, r.failID) {
		return nil, r.err
	}
	return r.IdentityReader.FetchByIDs(ctx, ids)
}

func enrolled(probe fingerprint.Template, n int, overrides map[int64]fingerprint.Template) (map[int64]fingerprint.Template, []int64) {
	templates := make(map[int64]fingerprint.Template, n)
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		id := int64(i)
		templates[id] = mutate(probe, 300)
		ids = append(ids, id)
	}
	for id, t := range overrides {
		templates[id] = t
	}
	return templates, ids
}

func newDispatcher(store database.IdentityReader, params Params, opts ...Option) *Dispatcher {
	opts = append([]Option{quiet()}, opts...)
	return NewDispatcher(NewComparator(store, cache.NewMemory(), nil, params, opts...), params, opts...)
}

func TestSearch_FindsMatchInAnyChunk(t *testing.T) {
	probe := randomTemplate(1)
	params := testParams()
	params.ChunkSize = 4

	for _, target := range []int64{1, 4, 5, 13, 17} {
		templates, ids := enrolled(probe, 17, map[int64]fingerprint.Template{target: mutate(probe, 2)})
		d := newDispatcher(newStore(t, templates), params)

		res, err := d.Search(context.Background(), probe, ids)
		require.NoError(t, err)
		require.NotNil(t, res.Match, "target %d", target)
		assert.Equal(t, target, res.Match.Identity.ID)
		assert.Equal(t, 5, res.Chunks)
		assert.False(t, res.TimedOut)
	}
}

func TestSearch_LowerChunkWins(t *testing.T) {
	probe := randomTemplate(2)
	params := testParams()
	params.ChunkSize = 2

	templates, ids := enrolled(probe, 6, map[int64]fingerprint.Template{
		2: mutate(probe, 41), // 471/512, just above the threshold
		5: probe.Clone(),     // perfect, but in a later chunk
	})
	store := newStore(t, templates)
	// make the first chunk the slowest to finish
	store.FetchHook = func(ids []int64) {
		if slices.Contains(ids, 1) {
			time.Sleep(30 * time.Millisecond)
		}
	}

	res, err := newDispatcher(store, params).Search(context.Background(), probe, ids)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	assert.Equal(t, int64(2), res.Match.Identity.ID)
	assert.Equal(t, 1.0, res.BestSimilarity)
}

func TestSearch_NoMatch(t *testing.T) {
	probe := randomTemplate(3)
	templates, ids := enrolled(probe, 10, map[int64]fingerprint.Template{7: mutate(probe, 100)})
	params := testParams()
	params.ChunkSize = 3

	res, err := newDispatcher(newStore(t, templates), params).Search(context.Background(), probe, ids)
	require.NoError(t, err)
	assert.Nil(t, res.Match)
	assert.InDelta(t, 412.0/512.0, res.BestSimilarity, 1e-9)
	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, 10, res.Compared)
}

func TestSearch_EmptyIDs(t *testing.T) {
	store := newStore(t, nil)
	res, err := newDispatcher(store, testParams()).Search(context.Background(), randomTemplate(4), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Match)
	assert.Zero(t, res.Chunks)
	assert.Zero(t, store.FetchCalls())
}

func TestSearch_WaitsForEveryChunk(t *testing.T) {
	probe := randomTemplate(5)
	params := testParams()
	params.ChunkSize = 5

	templates, ids := enrolled(probe, 40, map[int64]fingerprint.Template{1: probe.Clone()})
	store := newStore(t, templates)

	res, err := newDispatcher(store, params).Search(context.Background(), probe, ids)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	assert.Equal(t, 8, store.FetchCalls(), "a match in chunk 0 must not cancel the other chunks")
}

func TestSearch_ChunkErrorIsFatal(t *testing.T) {
	probe := randomTemplate(6)
	params := testParams()
	params.ChunkSize = 2

	templates, ids := enrolled(probe, 6, map[int64]fingerprint.Template{1: probe.Clone()})
	boom := errors.New("db gone")
	reader := failingReader{IdentityReader: newStore(t, templates), failID: 4, err: boom}

	_, err := newDispatcher(reader, params).Search(context.Background(), probe, ids)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "chunk 1")
}

func TestSearch_BoundedConcurrency(t *testing.T) {
	probe := randomTemplate(7)
	params := testParams()
	params.ChunkSize = 1
	params.Workers = 3

	templates, ids := enrolled(probe, 12, nil)
	reader := &trackingReader{IdentityReader: newStore(t, templates), delay: 20 * time.Millisecond}

	_, err := newDispatcher(reader, params).Search(context.Background(), probe, ids)
	require.NoError(t, err)
	assert.LessOrEqual(t, reader.peak.Load(), int32(3))
	assert.GreaterOrEqual(t, reader.peak.Load(), int32(1))
}

func TestSearch_TimeoutIsNoMatch(t *testing.T) {
	probe := randomTemplate(8)
	params := testParams()
	params.ChunkSize = 2

	templates, ids := enrolled(probe, 4, map[int64]fingerprint.Template{3: probe.Clone()})
	store := newStore(t, templates)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	store.FetchHook = func([]int64) { <-release }

	clock := newFakeClock(false)
	d := newDispatcher(store, params, WithClock(clock))

	type searchReturn struct {
		res SearchResult
		err error
	}
	out := make(chan searchReturn, 1)
	go func() {
		res, err := d.Search(context.Background(), probe, ids)
		out <- searchReturn{res, err}
	}()

	clock.awaitAfter(t)
	clock.fire()

	select {
	case r := <-out:
		require.NoError(t, r.err)
		assert.True(t, r.res.TimedOut)
		assert.Nil(t, r.res.Match)
	case <-time.After(5 * time.Second):
		t.Fatal("search did not return after the deadline")
	}
	assert.Equal(t, []time.Duration{params.SearchTimeout}, clock.Delays())
}

func TestSearch_ContextCancelled(t *testing.T) {
	probe := randomTemplate(9)
	templates, ids := enrolled(probe, 3, nil)
	store := newStore(t, templates)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	store.FetchHook = func([]int64) { <-release }

	clock := newFakeClock(false)
	d := newDispatcher(store, testParams(), WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := d.Search(ctx, probe, ids)
		errs <- err
	}()

	clock.awaitAfter(t)
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("search ignored cancellation")
	}
}
