package textmatch

import (
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/textmatch/auditlog"
	"github.com/hupe1980/textmatch/severity"
	"github.com/hupe1980/textmatch/window"
)

const (
	// DefaultMinTokens is the minimum normalized token count below which a
	// document is ingested without being checked.
	DefaultMinTokens = 20
)

type options struct {
	thresholds           severity.Thresholds
	documentThreshold    float64
	documentThresholdSet bool
	windowSize           int
	minTokens            int
	useInvertedIndex     bool
	maxParallelLocalize  int
	recorder             auditlog.Recorder
	auditLogPath         string
	auditLogOptions      []func(*auditlog.Options)
	logger               *Logger
	metrics              MetricsCollector
	clock                func() time.Time
	limiter              *rate.Limiter
}

// Option configures engine construction.
//
// Configuration is validated once in New; an invalid option surfaces as
// *ErrInvalidConfig at construction, never at check time.
type Option func(*options)

// WithThresholds configures the severity classification boundaries.
func WithThresholds(t severity.Thresholds) Option {
	return func(o *options) {
		o.thresholds = t
	}
}

// WithDocumentThreshold configures the whole-document similarity threshold
// used by Check. Must be in [0, 1]. Defaults to the low severity threshold.
func WithDocumentThreshold(threshold float64) Option {
	return func(o *options) {
		o.documentThreshold = threshold
		o.documentThresholdSet = true
	}
}

// WithWindowSize configures the segment matcher window length in tokens.
// The stride is half the window size.
func WithWindowSize(size int) Option {
	return func(o *options) {
		o.windowSize = size
	}
}

// WithMinTokens configures the minimum token count for a meaningful check.
// Shorter documents short-circuit with zero matches but are still appended
// to the corpus so later submissions can match against them.
func WithMinTokens(n int) Option {
	return func(o *options) {
		o.minTokens = n
	}
}

// WithInvertedIndex enables the inverted-index similarity search instead
// of the baseline linear scan. Results are bit-identical; this is purely a
// performance refinement for large corpora.
func WithInvertedIndex() Option {
	return func(o *options) {
		o.useInvertedIndex = true
	}
}

// WithMaxParallelLocalize bounds the worker fan-out of per-candidate
// segment localization. Defaults to GOMAXPROCS.
func WithMaxParallelLocalize(n int) Option {
	return func(o *options) {
		o.maxParallelLocalize = n
	}
}

// WithRecorder configures a custom match recorder in addition to the
// engine's in-memory audit trail.
func WithRecorder(r auditlog.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithAuditLog configures a file-backed audit log at path. If the file
// already holds entries, the engine rebuilds its corpus and vocabulary
// from them during New by replaying the log in order.
//
// Example:
//
//	engine, err := textmatch.New(
//	    textmatch.WithAuditLog("./data/checks.log", func(o *auditlog.Options) {
//	        o.Compression = auditlog.CompressionZstd
//	        o.SyncOnAppend = true
//	    }),
//	)
func WithAuditLog(path string, optFns ...func(*auditlog.Options)) Option {
	return func(o *options) {
		o.auditLogPath = path
		o.auditLogOptions = optFns
	}
}

// WithLogger configures the engine logger. Defaults to NoopLogger.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetrics configures a metrics collector for monitoring operations.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithClock overrides the time source used for ingestion and detection
// timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func defaultOptions() options {
	return options{
		thresholds:          severity.DefaultThresholds(),
		windowSize:          window.DefaultSize,
		minTokens:           DefaultMinTokens,
		maxParallelLocalize: runtime.GOMAXPROCS(0),
		logger:              NoopLogger(),
		metrics:             NoopMetricsCollector{},
		clock:               time.Now,
	}
}

func (o *options) validate() error {
	if err := o.thresholds.Validate(); err != nil {
		return &ErrInvalidConfig{Field: "thresholds", Reason: err.Error(), cause: err}
	}

	if !o.documentThresholdSet {
		o.documentThreshold = o.thresholds.Low
	} else if o.documentThreshold < 0 || o.documentThreshold > 1 {
		return &ErrInvalidConfig{Field: "documentThreshold", Reason: "must be in [0, 1]"}
	}

	if o.windowSize < 2 {
		return &ErrInvalidConfig{Field: "windowSize", Reason: "must be at least 2 tokens"}
	}

	if o.minTokens < 0 {
		return &ErrInvalidConfig{Field: "minTokens", Reason: "must be non-negative"}
	}

	if o.maxParallelLocalize <= 0 {
		return &ErrInvalidConfig{Field: "maxParallelLocalize", Reason: "must be positive"}
	}

	return nil
}

// WithCheckRateLimit throttles Check calls to rps checks per second with
// the given burst. Useful when the engine fronts an unbounded submission
// queue. Zero or negative rps disables the limiter.
func WithCheckRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}
