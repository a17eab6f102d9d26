package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kozaktomas/fingerprint-matcher/internal/cache"
	"github.com/kozaktomas/fingerprint-matcher/internal/config"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/kozaktomas/fingerprint-matcher/internal/logging"
	"github.com/kozaktomas/fingerprint-matcher/internal/matcher"
	"github.com/kozaktomas/fingerprint-matcher/internal/metrics"
	"github.com/kozaktomas/fingerprint-matcher/internal/sensor"
	"github.com/kozaktomas/fingerprint-matcher/internal/web/handlers"

	// identity store backends register themselves with the database package
	_ "github.com/kozaktomas/fingerprint-matcher/internal/database/mariadb"
	_ "github.com/kozaktomas/fingerprint-matcher/internal/database/postgres"
	_ "github.com/kozaktomas/fingerprint-matcher/internal/database/sqlite"
)

// app holds the shared collaborators of the identification commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    database.Store
	cache    cache.Cache
	scorer   matcher.Scorer
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	params   matcher.Params
}

// openApp connects the identity store and comparison cache selected by cfg.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	params := matcher.ParamsFromConfig(cfg)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	scorer, err := sensor.Scorer(&cfg.Sensor)
	if err != nil {
		return nil, fmt.Errorf("native compare: %w", err)
	}

	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(ctx, &cfg.Cache)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	logger.Debug("engine ready",
		"database", cfg.Database.Driver,
		"cache", cfg.Cache.Backend,
		"native_compare", scorer != nil)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		cache:    c,
		scorer:   scorer,
		registry: registry,
		metrics:  metrics.New(registry),
		params:   params,
	}, nil
}

// engine builds an orchestrator reading from capture.
func (a *app) engine(capture matcher.CaptureSource, params matcher.Params) *matcher.Orchestrator {
	return matcher.New(capture, a.store, a.cache, a.scorer, params,
		matcher.WithLogger(logging.Component(a.logger, "matcher")),
		matcher.WithMetrics(a.metrics))
}

// requestTimeout bounds a complete identification: every capture and search
// plus the delays between attempts.
func (a *app) requestTimeout() time.Duration {
	attempts := time.Duration(a.params.MaxAttempts)
	perAttempt := a.cfg.Sensor.CaptureTimeout.Duration + a.params.SearchTimeout
	return attempts*perAttempt + (attempts-1)*a.params.RetryDelay + 10*time.Second
}

// healthChecks returns the dependency probes served by /api/v1/health.
func (a *app) healthChecks(capture matcher.CaptureSource) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			_, err := a.store.Count(ctx)
			return err
		},
	}

	bridge, ok := capture.(*sensor.BridgeClient)
	if !ok {
		bridge, ok = a.scorer.(*sensor.BridgeClient)
	}
	if ok {
		checks["sensor"] = func(ctx context.Context) error {
			_, err := bridge.Health(ctx)
			return err
		}
	}

	if r, ok := a.cache.(*cache.Redis); ok {
		checks["cache"] = r.Health
	}
	return checks
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close cache", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}
