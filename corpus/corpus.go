// Package corpus holds the append-only set of all previously checked
// documents. Documents are never mutated or deleted once appended; the
// full history is required for audit.
package corpus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/textmatch/model"
)

var (
	// ErrDuplicateID is returned when appending a document whose id is
	// already present. This indicates a caller-side bug (id reuse) and is
	// never silently swallowed.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrNotFound is returned when no document exists for the given id.
	ErrNotFound = errors.New("document not found")
)

// Store is an in-memory append-only corpus with lookups by id.
// Appends are serialized; readers always observe a consistent
// point-in-time snapshot, never a half-ingested document.
type Store struct {
	mu   sync.RWMutex
	docs []*model.Document
	byID map[string]*model.Document
}

// New creates an empty corpus store.
func New() *Store {
	return &Store{
		byID: make(map[string]*model.Document),
	}
}

// Append adds a document to the corpus in O(1).
func (s *Store) Append(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[doc.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, doc.ID)
	}

	s.docs = append(s.docs, doc)
	s.byID[doc.ID] = doc

	return nil
}

// Has reports whether a document with the given id is present.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byID[id]

	return ok
}

// Get returns the document for the given id.
func (s *Store) Get(id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	return doc, nil
}

// All returns a point-in-time snapshot of the corpus in stable insertion
// order. The returned slice is a copy: an in-flight similarity search sees
// the corpus as of its start even while new documents are appended
// concurrently.
func (s *Store) All() []*model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]*model.Document, len(s.docs))
	copy(snapshot, s.docs)

	return snapshot
}

// Len returns the number of documents in the corpus.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.docs)
}
