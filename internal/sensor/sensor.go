// Package sensor provides capture sources for the fingerprint reader: the
// driver spool directory, the HTTP sensor bridge, and a static template.
package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/fingerprint-matcher/internal/config"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/matcher"
)

// bridgeTimeoutSlack is added to the capture timeout for bridge requests.
const bridgeTimeoutSlack = 5 * time.Second

// StaticSource yields the same template on every attempt.
type StaticSource struct {
	template fingerprint.Template
}

// NewStaticSource wraps a template already in hand.
func NewStaticSource(t fingerprint.Template) *StaticSource {
	return &StaticSource{template: t.Clone()}
}

// NewFileSource loads a template file once and serves it as a StaticSource.
func NewFileSource(path string) (*StaticSource, error) {
	t, err := fingerprint.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &StaticSource{template: t}, nil
}

func (s *StaticSource) AcquireTemplate(ctx context.Context) (fingerprint.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.template.Clone(), nil
}

// Open builds the capture source selected by cfg.Mode.
func Open(cfg *config.SensorConfig, logger *slog.Logger) (matcher.CaptureSource, error) {
	switch cfg.Mode {
	case "spool":
		src, err := NewSpoolSource(cfg.SpoolDir, cfg.LockPath, cfg.PollInterval.Duration, cfg.CaptureTimeout.Duration, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "bridge":
		client, err := NewBridgeClient(cfg.BridgeURL, cfg.BridgeToken, cfg.CaptureTimeout.Duration+bridgeTimeoutSlack)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown sensor mode %q", cfg.Mode)
	}
}

// Scorer returns the bridge's native scorer when native_compare is enabled,
// or nil to use in-process comparison.
func Scorer(cfg *config.SensorConfig) (matcher.Scorer, error) {
	if !cfg.NativeCompare {
		return nil, nil
	}
	client, err := NewBridgeClient(cfg.BridgeURL, cfg.BridgeToken, cfg.CaptureTimeout.Duration+bridgeTimeoutSlack)
	if err != nil {
		return nil, err
	}
	return client, nil
}
