package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/fingerprint-matcher/internal/config"
)

// ErrUnknownDriver is returned by Open when no backend is registered for the driver.
var ErrUnknownDriver = errors.New("unknown database driver")

// Opener constructs a Store from configuration.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (Store, error)

var (
	backends   = make(map[string]Opener)
	backendsMu sync.RWMutex
)

// RegisterBackend registers a Store constructor under a driver name.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(driver string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[strings.ToLower(driver)] = open
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open returns a Store for the configured driver.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil {
		return nil, errors.New("database config is required")
	}

	backendsMu.RLock()
	open, ok := backends[strings.ToLower(cfg.Driver)]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownDriver, cfg.Driver, strings.Join(Drivers(), ", "))
	}

	store, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return store, nil
}
