package matcher

import (
	"context"
	"errors"
	"time"

	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
)

// ErrCaptureUnavailable is returned by capture sources when the sensor is
// busy or produced nothing usable. It counts as a failed attempt, not a fatal error.
var ErrCaptureUnavailable = errors.New("capture unavailable")

// CaptureSource yields a freshly captured template. A nil template with a nil
// error means nothing was captured.
type CaptureSource interface {
	AcquireTemplate(ctx context.Context) (fingerprint.Template, error)
}

// Scorer compares two templates and returns their similarity in [0, 1].
type Scorer interface {
	Score(ctx context.Context, probe, candidate fingerprint.Template) (float64, error)
}

// HammingScorer scores templates in-process by byte-wise equality.
type HammingScorer struct{}

func (HammingScorer) Score(_ context.Context, probe, candidate fingerprint.Template) (float64, error) {
	return fingerprint.Similarity(probe, candidate)
}

// Clock abstracts time so retry delays and search deadlines can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

// Searcher runs one search of a probe against the enrolled ids.
// Dispatcher is the production implementation.
type Searcher interface {
	Search(ctx context.Context, probe fingerprint.Template, ids []int64) (SearchResult, error)
}
