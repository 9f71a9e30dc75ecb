// Package search scores a query fingerprint against every corpus document
// via cosine similarity and returns candidates above a threshold.
//
// Two implementations are provided behind the same Searcher interface: a
// baseline LinearScanner and an InvertedIndex optimization. Both produce
// bit-identical results (same candidate set, same scores, same order); the
// index is a performance refinement, not a semantic change.
package search

import (
	"context"
	"slices"

	"github.com/hupe1980/textmatch/corpus"
	"github.com/hupe1980/textmatch/model"
)

// ctxCheckInterval is how many documents are scored between context
// deadline checks during a scan.
const ctxCheckInterval = 64

// Result is the outcome of one similarity search.
type Result struct {
	// Candidates are the documents scoring at or above the threshold,
	// sorted descending by score with deterministic tie-breaking.
	Candidates []model.Candidate

	// Truncated is set when the caller's context expired before the full
	// corpus was scanned. The candidates found so far are still returned;
	// this is a degradation, not a failure.
	Truncated bool
}

// Searcher scores a query fingerprint against a corpus.
type Searcher interface {
	// Search returns all documents whose cosine similarity with the query
	// is at or above threshold, excluding the document with excludeID.
	// A candidate must share at least one term with the query, so
	// documents with zero similarity are never returned even when
	// threshold is zero.
	Search(ctx context.Context, query model.Fingerprint, excludeID string, threshold float64) (Result, error)
}

// LinearScanner is the baseline Searcher: a linear scan over a corpus
// snapshot, O(corpus size x average terms per document).
type LinearScanner struct {
	store *corpus.Store
}

// NewLinearScanner creates a Searcher scanning the given store.
func NewLinearScanner(store *corpus.Store) *LinearScanner {
	return &LinearScanner{store: store}
}

// Search implements Searcher.
func (s *LinearScanner) Search(ctx context.Context, query model.Fingerprint, excludeID string, threshold float64) (Result, error) {
	snapshot := s.store.All()

	var (
		candidates []model.Candidate
		truncated  bool
	)

	for i, doc := range snapshot {
		if i%ctxCheckInterval == 0 && ctx.Err() != nil {
			truncated = true
			break
		}

		c, ok := score(query, doc, excludeID, threshold)
		if ok {
			candidates = append(candidates, c)
		}
	}

	sortCandidates(candidates)

	return Result{Candidates: candidates, Truncated: truncated}, nil
}

// score evaluates one document against the query, applying the exclusion
// and threshold rules shared by all Searcher implementations.
func score(query model.Fingerprint, doc *model.Document, excludeID string, threshold float64) (model.Candidate, bool) {
	if doc.ID == excludeID {
		return model.Candidate{}, false
	}

	sim := query.Dot(doc.Fingerprint)
	if sim <= 0 || sim < threshold {
		return model.Candidate{}, false
	}

	return model.Candidate{Doc: doc, Score: sim}, true
}

// sortCandidates orders candidates descending by score. Ties are broken by
// earlier CreatedAt, then by id, so search results are fully deterministic
// and reproducible in test assertions.
func sortCandidates(candidates []model.Candidate) {
	slices.SortFunc(candidates, cmpCandidateByScoreDesc)
}

func cmpCandidateByScoreDesc(a, b model.Candidate) int {
	if a.Score > b.Score {
		return -1
	}
	if a.Score < b.Score {
		return 1
	}
	if a.Doc.CreatedAt.Before(b.Doc.CreatedAt) {
		return -1
	}
	if b.Doc.CreatedAt.Before(a.Doc.CreatedAt) {
		return 1
	}

	switch {
	case a.Doc.ID < b.Doc.ID:
		return -1
	case a.Doc.ID > b.Doc.ID:
		return 1
	default:
		return 0
	}
}
