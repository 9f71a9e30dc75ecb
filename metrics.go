package textmatch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordCheck is called after each check operation.
	// matches is the number of matches found, duration is the total time
	// taken, err is nil if successful.
	RecordCheck(matches int, duration time.Duration, err error)

	// RecordSearch is called after each similarity search.
	// candidates is the number of candidates above threshold; truncated
	// reports whether the scan was cut short by the caller's deadline.
	RecordSearch(candidates int, duration time.Duration, truncated bool)

	// RecordLocalize is called after each per-candidate segment
	// localization.
	RecordLocalize(segments int, duration time.Duration)

	// RecordIngest is called after a document is appended to the corpus.
	RecordIngest(termCount int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCheck(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, bool) {}
func (NoopMetricsCollector) RecordLocalize(int, time.Duration)     {}
func (NoopMetricsCollector) RecordIngest(int)                      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CheckCount       atomic.Int64
	CheckErrors      atomic.Int64
	CheckTotalNanos  atomic.Int64
	MatchCount       atomic.Int64
	SearchCount      atomic.Int64
	SearchTruncated  atomic.Int64
	SearchTotalNanos atomic.Int64
	LocalizeCount    atomic.Int64
	LocalizeSegments atomic.Int64
	IngestCount      atomic.Int64
	IngestTotalTerms atomic.Int64
}

// RecordCheck implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheck(matches int, duration time.Duration, err error) {
	b.CheckCount.Add(1)
	b.CheckTotalNanos.Add(duration.Nanoseconds())
	b.MatchCount.Add(int64(matches))
	if err != nil {
		b.CheckErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, truncated bool) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if truncated {
		b.SearchTruncated.Add(1)
	}
}

// RecordLocalize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLocalize(segments int, _ time.Duration) {
	b.LocalizeCount.Add(1)
	b.LocalizeSegments.Add(int64(segments))
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(termCount int) {
	b.IngestCount.Add(1)
	b.IngestTotalTerms.Add(int64(termCount))
}
