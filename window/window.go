// Package window localizes overlapping spans between two documents that
// are already known to exceed the whole-document similarity threshold.
//
// Both texts are split into overlapping sliding windows of consecutive
// tokens. Each window is vectorized independently against the current
// corpus statistics (without mutating them) and window pairs above a
// segment threshold stricter than the document threshold are retained.
// This two-tier thresholding prevents false "exact match" claims when a
// whole-document score is driven by many weakly similar passages: in that
// case no window pair crosses the segment threshold and no segments are
// reported at all.
package window

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/textmatch/model"
	"github.com/hupe1980/textmatch/token"
	"github.com/hupe1980/textmatch/vocab"
)

const (
	// DefaultSize is the default window length in tokens.
	DefaultSize = 12

	// SegmentThresholdBoost is added to the document threshold to form the
	// segment threshold.
	SegmentThresholdBoost = 0.15

	// MaxSegmentThreshold caps the segment threshold.
	MaxSegmentThreshold = 0.95
)

// SegmentThreshold derives the per-segment threshold from a document
// threshold: threshold + SegmentThresholdBoost, capped at
// MaxSegmentThreshold.
func SegmentThreshold(docThreshold float64) float64 {
	t := docThreshold + SegmentThresholdBoost
	if t > MaxSegmentThreshold {
		t = MaxSegmentThreshold
	}

	return t
}

// Matcher localizes overlapping spans between document pairs.
type Matcher struct {
	vocab       *vocab.Model
	size        int
	stride      int
	maxParallel int
}

// NewMatcher creates a Matcher using the given vocabulary model for
// window vectorization. size is the window length in tokens; the stride is
// size/2. maxParallel bounds the window-scoring fan-out.
func NewMatcher(v *vocab.Model, size, maxParallel int) *Matcher {
	if size <= 0 {
		size = DefaultSize
	}
	stride := size / 2
	if stride == 0 {
		stride = 1
	}
	if maxParallel <= 0 {
		maxParallel = 1
	}

	return &Matcher{
		vocab:       v,
		size:        size,
		stride:      stride,
		maxParallel: maxParallel,
	}
}

// win is one vectorized sliding window.
type win struct {
	span model.Span
	fp   model.Fingerprint
}

// Localize returns the overlapping segments between sourceText and
// matchedText whose local similarity exceeds segmentThreshold. Overlapping
// retained windows from the source text are merged into a single span
// (interval union). Segments are ordered by earliest source offset.
// The result may legitimately be empty.
func (m *Matcher) Localize(ctx context.Context, sourceText, matchedText string, segmentThreshold float64) ([]model.Segment, error) {
	srcWins := m.windows(token.Normalize(sourceText))
	dstWins := m.windows(token.Normalize(matchedText))

	if len(srcWins) == 0 || len(dstWins) == 0 {
		return nil, nil
	}

	// Score all window pairs. The per-source-window loop has no shared
	// mutable state, so it fans out across workers.
	retained := make([][]model.Segment, len(srcWins))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxParallel)

	for i, sw := range srcWins {
		i, sw := i, sw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			for _, dw := range dstWins {
				score := sw.fp.Dot(dw.fp)
				if score > segmentThreshold {
					retained[i] = append(retained[i], model.Segment{
						Source:  sw.span,
						Matched: dw.span,
						Score:   score,
					})
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pairs []model.Segment
	for _, r := range retained {
		pairs = append(pairs, r...)
	}

	return mergeOverlapping(pairs), nil
}

// windows splits a token sequence into overlapping sliding windows and
// vectorizes each. A sequence shorter than the window size yields a single
// window covering the whole sequence; the final window is anchored to the
// end of the sequence so no tail tokens are dropped.
func (m *Matcher) windows(tokens []token.Token) []win {
	if len(tokens) == 0 {
		return nil
	}

	var wins []win

	for start := 0; ; start += m.stride {
		end := start + m.size
		if end >= len(tokens) {
			end = len(tokens)
			start = max(end-m.size, 0)
		}

		w := tokens[start:end]
		wins = append(wins, win{
			span: model.Span{Start: w[0].Start, End: w[len(w)-1].End},
			fp:   m.vocab.Vectorize(token.Terms(w)),
		})

		if end == len(tokens) {
			return wins
		}
	}
}

// mergeOverlapping merges retained window pairs whose source spans overlap
// into a single segment: source and matched spans are unioned and the
// segment score is the maximum pair score. Ties in window similarity are
// resolved by earliest starting offset through the sort order.
func mergeOverlapping(pairs []model.Segment) []model.Segment {
	if len(pairs) == 0 {
		return nil
	}

	slices.SortFunc(pairs, func(a, b model.Segment) int {
		if a.Source.Start != b.Source.Start {
			return a.Source.Start - b.Source.Start
		}
		return a.Matched.Start - b.Matched.Start
	})

	merged := []model.Segment{pairs[0]}
	for _, p := range pairs[1:] {
		last := &merged[len(merged)-1]
		if p.Source.Overlaps(last.Source) {
			last.Source = last.Source.Union(p.Source)
			last.Matched = last.Matched.Union(p.Matched)
			if p.Score > last.Score {
				last.Score = p.Score
			}

			continue
		}

		merged = append(merged, p)
	}

	return merged
}
