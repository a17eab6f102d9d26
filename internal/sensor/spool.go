package sensor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/matcher"
)

// SpoolSource reads templates that the sensor driver drops into a spool
// directory. The lock file guards exclusive access to the reader.
type SpoolSource struct {
	dir          string
	lock         *flock.Flock
	busy         atomic.Bool // held by a capture in this process
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger
}

var _ matcher.CaptureSource = (*SpoolSource)(nil)

// NewSpoolSource creates a spool reader. A non-positive poll interval defaults to 100ms.
func NewSpoolSource(dir, lockPath string, pollInterval, timeout time.Duration, logger *slog.Logger) (*SpoolSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("spool directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spool directory: %s is not a directory", dir)
	}
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SpoolSource{
		dir:          dir,
		lock:         flock.New(lockPath),
		pollInterval: pollInterval,
		timeout:      timeout,
		logger:       logger,
	}, nil
}

// AcquireTemplate waits up to the capture timeout for the oldest template file,
// consumes it and returns its contents. It returns a nil template when nothing
// arrives in time and ErrCaptureUnavailable when another capture, in this or
// another process, holds the reader.
func (s *SpoolSource) AcquireTemplate(ctx context.Context) (fingerprint.Template, error) {
	// flock locks are per file description, so a second TryLock on s.lock
	// would succeed while another goroutine holds it.
	if !s.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: capture already in progress", matcher.ErrCaptureUnavailable)
	}
	defer s.busy.Store(false)

	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire sensor lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: sensor locked by another process", matcher.ErrCaptureUnavailable)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release sensor lock", "error", err)
		}
	}()

	deadline := time.Now().Add(s.timeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		path, found, err := s.oldest()
		if err != nil {
			return nil, err
		}
		if found {
			return s.consume(path)
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// consume reads and removes a spool file. Unreadable templates are discarded
// and reported as an unavailable capture.
func (s *SpoolSource) consume(path string) (fingerprint.Template, error) {
	t, readErr := fingerprint.ReadFile(path)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove spool file: %w", err)
	}
	if readErr != nil {
		s.logger.Warn("discarding unreadable template", "path", path, "error", readErr)
		return nil, fmt.Errorf("%w: %v", matcher.ErrCaptureUnavailable, readErr)
	}

	s.logger.Debug("template captured", "path", filepath.Base(path), "bytes", len(t))
	return t, nil
}

// oldest returns the template file with the earliest modification time.
func (s *SpoolSource) oldest() (string, bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", false, fmt.Errorf("read spool directory: %w", err)
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !fingerprint.IsTemplateFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		if best == "" || info.ModTime().Before(bestTime) {
			best = entry.Name()
			bestTime = info.ModTime()
		}
	}

	if best == "" {
		return "", false, nil
	}
	return filepath.Join(s.dir, best), true, nil
}
