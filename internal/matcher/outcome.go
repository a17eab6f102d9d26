package matcher

import (
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
)

// Terminal statuses reported by Outcome.Status.
const (
	StatusMatched = "matched"
	StatusNoMatch = "no_match"
	StatusError   = "error"
)

// Outcome is the terminal result of an identification run: Matched, NoMatch or Failed.
type Outcome interface {
	Status() string
	AttemptCount() int
	outcome()
}

// Matched reports the identity that reached the threshold.
type Matched struct {
	Identity   database.StoredIdentity
	Similarity float64
	Attempts   int
}

// NoMatch reports that every attempt finished without a qualifying identity.
type NoMatch struct {
	BestSimilarity  float64 // highest similarity seen across all attempts
	Attempts        int
	CaptureFailures int // attempts where the sensor produced nothing
}

// Failed reports an unexpected error that aborted the run.
type Failed struct {
	Err      error
	Attempts int
}

func (Matched) Status() string { return StatusMatched }
func (NoMatch) Status() string { return StatusNoMatch }
func (Failed) Status() string  { return StatusError }

func (m Matched) AttemptCount() int { return m.Attempts }
func (n NoMatch) AttemptCount() int { return n.Attempts }
func (f Failed) AttemptCount() int  { return f.Attempts }

func (Matched) outcome() {}
func (NoMatch) outcome() {}
func (Failed) outcome()  {}

func (f Failed) Error() string {
	if f.Err == nil {
		return "identification failed"
	}
	return f.Err.Error()
}

func (f Failed) Unwrap() error { return f.Err }
