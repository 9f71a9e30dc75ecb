// Package vocab maintains the corpus-wide vocabulary and inverse-document-
// frequency statistics, and turns token sequences into sparse weighted
// fingerprints.
package vocab

import (
	"math"
	"sync"

	"github.com/hupe1980/textmatch/model"
)

// Model holds a document-frequency counter for every term ever observed.
// Counts are monotonic: Observe only ever increments, and there is no
// deletion path. Term weights therefore drift as the corpus grows, which
// is accepted behavior: a stored match score is the score at detection
// time and is never recomputed retroactively.
//
// Observe and Vectorize are deliberately separate so a caller can
// vectorize without mutating corpus statistics. The segment matcher
// relies on this when scoring sub-spans.
type Model struct {
	mu       sync.RWMutex
	df       map[string]int
	docCount int
}

// New creates an empty vocabulary model.
func New() *Model {
	return &Model{
		df: make(map[string]int),
	}
}

// Observe increments the document-frequency counter for every distinct
// term in the sequence (each term counted once per document regardless of
// repetition) and increments the total document count.
func (m *Model) Observe(terms []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		m.df[t]++
	}

	m.docCount++
}

// Vectorize produces an L2-normalized TF-IDF fingerprint from the current
// corpus statistics. It never mutates the model.
//
// idf(term) = ln((N+1)/(df(term)+1)) + 1, Laplace-smoothed so weights stay
// finite even for first-ever terms and an empty corpus.
func (m *Model) Vectorize(terms []string) model.Fingerprint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fp := make(model.Fingerprint, len(terms))
	for _, t := range terms {
		fp[t]++
	}

	n := float64(m.docCount)
	for t, tf := range fp {
		idf := math.Log((n+1)/float64(m.df[t]+1)) + 1
		fp[t] = tf * idf
	}

	if !fp.NormalizeL2() {
		return model.Fingerprint{}
	}

	return fp
}

// DocFreq returns the number of observed documents containing the term.
func (m *Model) DocFreq(term string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.df[term]
}

// DocCount returns the number of observed documents.
func (m *Model) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.docCount
}

// TermCount returns the size of the vocabulary.
func (m *Model) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.df)
}
