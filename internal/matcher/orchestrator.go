package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/fingerprint-matcher/internal/cache"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/kozaktomas/fingerprint-matcher/internal/metrics"
)

// State is a step of the capture/search loop.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateSearching State = "searching"
	StateRetry     State = "retry"
	StateMatched   State = "matched"
	StateExhausted State = "exhausted"
	StateError     State = "error"
)

// Orchestrator drives capture and search attempts until a match, exhaustion
// or an unexpected error.
type Orchestrator struct {
	capture     CaptureSource
	store       database.IdentityReader
	searcher    Searcher
	maxAttempts int
	retryDelay  time.Duration
	clock       Clock
	observer    TransitionFunc
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewOrchestrator creates an orchestrator over an existing searcher.
func NewOrchestrator(capture CaptureSource, store database.IdentityReader, searcher Searcher, params Params, opts ...Option) *Orchestrator {
	s := newSettings(opts)
	return &Orchestrator{
		capture:     capture,
		store:       store,
		searcher:    searcher,
		maxAttempts: params.MaxAttempts,
		retryDelay:  params.RetryDelay,
		clock:       s.clock,
		observer:    s.observer,
		logger:      s.logger,
		metrics:     s.metrics,
	}
}

// New wires a Comparator, Dispatcher and Orchestrator from the same params and options.
func New(capture CaptureSource, store database.IdentityReader, c cache.Cache, scorer Scorer, params Params, opts ...Option) *Orchestrator {
	comparator := NewComparator(store, c, scorer, params, opts...)
	dispatcher := NewDispatcher(comparator, params, opts...)
	return NewOrchestrator(capture, store, dispatcher, params, opts...)
}

// run holds the mutable state of a single Run call.
type run struct {
	o               *Orchestrator
	logger          *slog.Logger
	state           State
	attempts        int
	captureFailures int
	best            float64
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to
	r.logger.Debug("state transition", "from", from, "to", to, "attempt", r.attempts)
	if r.o.observer != nil {
		r.o.observer(from, to, r.attempts)
	}
}

func (r *run) fail(err error) Outcome {
	r.transition(StateError)
	return Failed{Err: err, Attempts: r.attempts}
}

// Run executes the capture/search loop and always returns one of Matched,
// NoMatch or Failed. Cancelling ctx aborts the loop before the next attempt.
func (o *Orchestrator) Run(ctx context.Context) Outcome {
	r := &run{
		o:      o,
		logger: o.logger.With("run_id", uuid.NewString()),
		state:  StateIdle,
	}

	outcome := r.loop(ctx)

	o.metrics.ObserveOutcome(outcome.Status(), outcome.AttemptCount())
	switch out := outcome.(type) {
	case Matched:
		r.logger.Info("identity matched",
			"identity_id", out.Identity.ID,
			"similarity", out.Similarity,
			"attempts", out.Attempts)
	case NoMatch:
		r.logger.Info("no identity matched",
			"best_similarity", out.BestSimilarity,
			"attempts", out.Attempts,
			"capture_failures", out.CaptureFailures)
	case Failed:
		r.logger.Error("identification failed", "attempts", out.Attempts, "error", out.Err)
	}
	return outcome
}

func (r *run) loop(ctx context.Context) Outcome {
	o := r.o
	for {
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}

		r.attempts++
		r.transition(StateCapturing)

		probe, err := o.capture.AcquireTemplate(ctx)
		switch {
		case errors.Is(err, ErrCaptureUnavailable) || (err == nil && len(probe) == 0):
			r.captureFailures++
			r.logger.Debug("nothing captured", "attempt", r.attempts, "error", err)
		case err != nil:
			return r.fail(fmt.Errorf("capture: %w", err))
		default:
			r.transition(StateSearching)

			ids, err := o.store.ListEnrolledIDs(ctx)
			if err != nil {
				return r.fail(fmt.Errorf("list enrolled identities: %w", err))
			}

			result, err := o.searcher.Search(ctx, probe, ids)
			if err != nil {
				return r.fail(fmt.Errorf("search: %w", err))
			}
			if result.BestSimilarity > r.best {
				r.best = result.BestSimilarity
			}
			if result.Match != nil {
				r.transition(StateMatched)
				return Matched{
					Identity:   result.Match.Identity,
					Similarity: result.Match.Similarity,
					Attempts:   r.attempts,
				}
			}
		}

		if r.attempts >= o.maxAttempts {
			r.transition(StateExhausted)
			return NoMatch{
				BestSimilarity:  r.best,
				Attempts:        r.attempts,
				CaptureFailures: r.captureFailures,
			}
		}

		r.transition(StateRetry)
		select {
		case <-o.clock.After(o.retryDelay):
		case <-ctx.Done():
			return r.fail(ctx.Err())
		}
	}
}
