package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/fingerprint-matcher/internal/cache"
	"github.com/kozaktomas/fingerprint-matcher/internal/logging"
	"github.com/kozaktomas/fingerprint-matcher/internal/matcher"
	"github.com/kozaktomas/fingerprint-matcher/internal/scanner"
	"github.com/kozaktomas/fingerprint-matcher/internal/sensor"
	"github.com/kozaktomas/fingerprint-matcher/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the identification API server",
	Long: `Start the HTTP API. POST /api/v1/identify captures a fingerprint from the
configured sensor (or takes a base64 template in the request body) and returns the
matched identity. Prometheus metrics are served on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Without a sensor the API still serves requests that carry a template.
	var capture matcher.CaptureSource
	if source, err := sensor.Open(&cfg.Sensor, logging.Component(logger, "sensor")); err != nil {
		logger.Warn("sensor unavailable, only template uploads will be accepted", "error", err)
	} else {
		capture = source
	}

	svc := scanner.NewService(capture, func(c matcher.CaptureSource) scanner.Runner {
		return a.engine(c, a.params)
	}, a.store, logging.Component(logger, "scanner"))

	server := web.NewServer(cfg.Web, a.requestTimeout(), web.Deps{
		Scanner:      svc,
		Identities:   a.store,
		Gatherer:     a.registry,
		HealthChecks: a.healthChecks(capture),
	}, logging.Component(logger, "web"))

	if mem, ok := a.cache.(*cache.Memory); ok {
		go sweepMemoryCache(ctx, mem, cfg.Matcher.CacheTTL.Duration, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
	}()

	return server.Start()
}

// sweepMemoryCache drops expired comparison results once per ttl.
func sweepMemoryCache(ctx context.Context, mem *cache.Memory, ttl time.Duration, logger *slog.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := mem.Sweep(); removed > 0 {
				logger.Debug("swept expired cache entries", "removed", removed)
			}
		}
	}
}
