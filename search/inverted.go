package search

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/textmatch/model"
)

// InvertedIndex is a Searcher backed by term posting lists. Each term maps
// to a Roaring bitmap of dense local document ids; the candidate set for a
// query is the union of the posting bitmaps of its terms, and only those
// documents are scored exactly.
//
// The index must observe exactly the documents appended to the corpus, in
// the same order. The engine calls Add under its commit lock.
type InvertedIndex struct {
	mu       sync.RWMutex
	postings map[string]*roaring.Bitmap
	docs     []*model.Document
}

// NewInvertedIndex creates an empty inverted index.
func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{
		postings: make(map[string]*roaring.Bitmap),
	}
}

// Ensure InvertedIndex implements Searcher.
var _ Searcher = (*InvertedIndex)(nil)

// Add indexes a document. The local id is the insertion position.
func (ix *InvertedIndex) Add(doc *model.Document) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	local := uint32(len(ix.docs)) //nolint:gosec // corpus size stays well below 4B documents
	ix.docs = append(ix.docs, doc)

	for term := range doc.Fingerprint {
		bm, ok := ix.postings[term]
		if !ok {
			bm = roaring.New()
			ix.postings[term] = bm
		}
		bm.Add(local)
	}
}

// Len returns the number of indexed documents.
func (ix *InvertedIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return len(ix.docs)
}

// Search implements Searcher. Results are bit-identical to LinearScanner:
// the union of posting lists is exactly the set of documents sharing at
// least one query term, which is exactly the set with nonzero similarity.
func (ix *InvertedIndex) Search(ctx context.Context, query model.Fingerprint, excludeID string, threshold float64) (Result, error) {
	ix.mu.RLock()

	snapshot := make([]*model.Document, len(ix.docs))
	copy(snapshot, ix.docs)

	union := roaring.New()
	for term := range query {
		if bm, ok := ix.postings[term]; ok {
			union.Or(bm)
		}
	}

	ix.mu.RUnlock()

	var (
		candidates []model.Candidate
		truncated  bool
		i          int
	)

	it := union.Iterator()
	for it.HasNext() {
		if i%ctxCheckInterval == 0 && ctx.Err() != nil {
			truncated = true
			break
		}
		i++

		local := it.Next()

		c, ok := score(query, snapshot[local], excludeID, threshold)
		if ok {
			candidates = append(candidates, c)
		}
	}

	sortCandidates(candidates)

	return Result{Candidates: candidates, Truncated: truncated}, nil
}
