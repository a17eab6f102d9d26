package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/fingerprint-matcher/internal/config"
	"github.com/kozaktomas/fingerprint-matcher/internal/constants"
	"github.com/kozaktomas/fingerprint-matcher/internal/metrics"
)

// ErrInvalidParams is wrapped by every Params validation failure.
var ErrInvalidParams = errors.New("invalid matcher parameters")

// Params are the tunables of the capture/search loop.
type Params struct {
	Threshold     float64
	ChunkSize     int
	Workers       int
	MaxAttempts   int
	RetryDelay    time.Duration
	SearchTimeout time.Duration
	CacheTTL      time.Duration
	KeyPrefix     string
}

// DefaultParams mirrors the embedded configuration defaults.
func DefaultParams() Params {
	return Params{
		Threshold:     0.90,
		ChunkSize:     50,
		Workers:       8,
		MaxAttempts:   3,
		RetryDelay:    2 * time.Second,
		SearchTimeout: 60 * time.Second,
		CacheTTL:      300 * time.Second,
		KeyPrefix:     constants.CacheKeyPrefix,
	}
}

// ParamsFromConfig converts loaded configuration into Params.
func ParamsFromConfig(cfg *config.Config) Params {
	prefix := cfg.Cache.KeyPrefix
	if prefix == "" {
		prefix = constants.CacheKeyPrefix
	}
	return Params{
		Threshold:     cfg.Matcher.Threshold,
		ChunkSize:     cfg.Matcher.ChunkSize,
		Workers:       cfg.Matcher.Workers,
		MaxAttempts:   cfg.Matcher.MaxAttempts,
		RetryDelay:    cfg.Matcher.RetryDelay.Duration,
		SearchTimeout: cfg.Matcher.SearchTimeout.Duration,
		CacheTTL:      cfg.Matcher.CacheTTL.Duration,
		KeyPrefix:     prefix,
	}
}

// Validate checks the ranges the engine relies on.
func (p Params) Validate() error {
	switch {
	case p.Threshold <= 0 || p.Threshold > 1:
		return fmt.Errorf("%w: threshold must be in (0, 1], got %v", ErrInvalidParams, p.Threshold)
	case p.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidParams, p.ChunkSize)
	case p.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidParams, p.Workers)
	case p.MaxAttempts <= 0:
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidParams, p.MaxAttempts)
	case p.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay must not be negative, got %s", ErrInvalidParams, p.RetryDelay)
	case p.SearchTimeout <= 0:
		return fmt.Errorf("%w: search timeout must be positive, got %s", ErrInvalidParams, p.SearchTimeout)
	case p.CacheTTL <= 0:
		return fmt.Errorf("%w: cache ttl must be positive, got %s", ErrInvalidParams, p.CacheTTL)
	}
	return nil
}

// TransitionFunc observes orchestrator state changes.
type TransitionFunc func(from, to State, attempt int)

// Option configures optional collaborators of the engine components.
type Option func(*settings)

type settings struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	clock       Clock
	searchClock Clock
	observer    TransitionFunc
}

func newSettings(opts []Option) settings {
	s := settings{clock: RealClock()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithClock replaces the wall clock. It drives the orchestrator's retry delays
// and, unless WithSearchClock is also given, the dispatcher's search deadline.
func WithClock(c Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSearchClock sets the clock of the dispatcher's search deadline only,
// so retry delays and search timeouts can be driven independently.
func WithSearchClock(c Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.searchClock = c
		}
	}
}

// WithTransitionObserver registers a callback for every orchestrator state change.
func WithTransitionObserver(fn TransitionFunc) Option {
	return func(s *settings) { s.observer = fn }
}
