package textmatch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/textmatch/corpus"
)

var (
	// ErrDuplicateID is returned when a check reuses an existing document
	// id. The whole check is aborted and nothing is persisted; the caller
	// must retry with a fresh id.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrNotFound is returned when no document exists for the given id.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidInput is returned when the submitted text is not valid
	// UTF-8. The document is not ingested.
	ErrInvalidInput = errors.New("invalid input text")
)

// ErrInvalidConfig indicates an invalid engine configuration. It is
// returned by New, never at check time.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidConfig struct {
	Field  string
	Reason string
	cause  error
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.cause }

// translateError maps subpackage errors onto the public sentinels at the
// API boundary.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, corpus.ErrDuplicateID) {
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	}
	if errors.Is(err, corpus.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
