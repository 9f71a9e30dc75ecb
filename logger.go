package textmatch

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with textmatch-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDocID adds a document id field to the logger.
func (l *Logger) WithDocID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("doc_id", id),
	}
}

// WithAuthor adds an author field to the logger.
func (l *Logger) WithAuthor(author string) *Logger {
	return &Logger{
		Logger: l.Logger.With("author", author),
	}
}

// WithThreshold adds a threshold field to the logger.
func (l *Logger) WithThreshold(threshold float64) *Logger {
	return &Logger{
		Logger: l.Logger.With("threshold", threshold),
	}
}

// LogCheck logs the outcome of a check operation.
func (l *Logger) LogCheck(ctx context.Context, id string, matches int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "check failed",
			"doc_id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "check completed",
			"doc_id", id,
			"matches", matches,
			"duration", duration,
		)
	}
}

// LogTruncatedSearch logs a search that ran out of caller budget. The
// partial candidate list is still used; this is a degradation, not a
// failure.
func (l *Logger) LogTruncatedSearch(ctx context.Context, id string, candidates int) {
	l.WarnContext(ctx, "search truncated by caller deadline",
		"doc_id", id,
		"candidates", candidates,
	)
}

// LogTruncatedLocalize logs a segment localization that ran out of caller
// budget. The matches found so far are still reported.
func (l *Logger) LogTruncatedLocalize(ctx context.Context, id string, matches int) {
	l.WarnContext(ctx, "localization truncated by caller deadline",
		"doc_id", id,
		"matches", matches,
	)
}

// LogIngest logs the ingestion of a document into the corpus.
func (l *Logger) LogIngest(ctx context.Context, id string, termCount, corpusSize int) {
	l.DebugContext(ctx, "document ingested",
		"doc_id", id,
		"term_count", termCount,
		"corpus_size", corpusSize,
	)
}

// LogMatch logs one detected match.
func (l *Logger) LogMatch(ctx context.Context, sourceID, matchedID string, score float64, segments int, severity string) {
	l.InfoContext(ctx, "match detected",
		"source_id", sourceID,
		"matched_id", matchedID,
		"score", score,
		"segments", segments,
		"severity", severity,
	)
}
