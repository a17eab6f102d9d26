// Package metrics exposes Prometheus instrumentation for the matching engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks comparisons, cache effectiveness, searches and attempt outcomes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Comparisons      *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	ComparisonErrors prometheus.Counter
	SearchDuration   prometheus.Histogram
	SearchChunks     prometheus.Histogram
	SearchTimeouts   prometheus.Counter
	Outcomes         *prometheus.CounterVec
	Attempts         prometheus.Histogram
}

// New registers all matcher metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Comparisons: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fingerprint_comparisons_total",
			Help: "Template comparisons by result (match, no_match)",
		}, []string{"result"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fingerprint_cache_lookups_total",
			Help: "Comparison cache lookups by outcome (hit, miss, error)",
		}, []string{"outcome"}),
		ComparisonErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "fingerprint_comparison_errors_total",
			Help: "Comparisons skipped because scoring failed",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fingerprint_search_duration_seconds",
			Help:    "Duration of one dispatcher search over the enrolled set",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SearchChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fingerprint_search_chunks",
			Help:    "Number of chunks dispatched per search",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		SearchTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "fingerprint_search_timeouts_total",
			Help: "Searches whose join deadline expired",
		}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fingerprint_identifications_total",
			Help: "Identification runs by terminal status (matched, no_match, error)",
		}, []string{"status"}),
		Attempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fingerprint_identification_attempts",
			Help:    "Capture/search attempts used per identification run",
			Buckets: []float64{1, 2, 3, 4, 5, 10},
		}),
	}
}

// ObserveComparison records one scored comparison.
func (m *Metrics) ObserveComparison(matched bool) {
	if m == nil {
		return
	}
	result := "no_match"
	if matched {
		result = "match"
	}
	m.Comparisons.WithLabelValues(result).Inc()
}

// ObserveCacheLookup records a cache hit, miss or failed lookup.
func (m *Metrics) ObserveCacheLookup(hit bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.CacheLookups.WithLabelValues("error").Inc()
	case hit:
		m.CacheLookups.WithLabelValues("hit").Inc()
	default:
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// IncComparisonErrors records a comparison that could not be scored.
func (m *Metrics) IncComparisonErrors() {
	if m == nil {
		return
	}
	m.ComparisonErrors.Inc()
}

// ObserveSearch records the duration and fan-out of a search.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSearch(start time.Time, chunks int, timedOut bool) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(time.Since(start).Seconds())
	m.SearchChunks.Observe(float64(chunks))
	if timedOut {
		m.SearchTimeouts.Inc()
	}
}

// ObserveOutcome records the terminal status of an identification run.
func (m *Metrics) ObserveOutcome(status string, attempts int) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(status).Inc()
	m.Attempts.Observe(float64(attempts))
}
