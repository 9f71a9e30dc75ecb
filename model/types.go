package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Fingerprint is a sparse weighted term vector representing a document for
// similarity comparison. Weights are always non-negative. Fingerprints
// produced by the vocabulary model are L2-normalized, so cosine similarity
// between two fingerprints reduces to their dot product.
type Fingerprint map[string]float64

// Dot computes the dot product of two sparse vectors by iterating the
// intersection of their term maps. Terms absent from either side contribute
// zero and are skipped.
//
// The partial products are accumulated in sorted term order, not map
// order: floating-point addition is not associative, and similarity
// scores must reproduce exactly for identical inputs.
func (f Fingerprint) Dot(other Fingerprint) float64 {
	// Iterate the smaller map.
	a, b := f, other
	if len(b) < len(a) {
		a, b = b, a
	}

	terms := make([]string, 0, len(a))
	for term := range a {
		if _, ok := b[term]; ok {
			terms = append(terms, term)
		}
	}
	sort.Strings(terms)

	var sum float64
	for _, term := range terms {
		sum += a[term] * b[term]
	}

	return sum
}

// Norm returns the L2 norm of the vector. Accumulation happens in sorted
// term order for the same reproducibility reason as Dot.
func (f Fingerprint) Norm() float64 {
	terms := make([]string, 0, len(f))
	for term := range f {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var sum float64
	for _, term := range terms {
		w := f[term]
		sum += w * w
	}

	return math.Sqrt(sum)
}

// NormalizeL2 scales the vector in place to unit L2 norm.
// Returns false if the vector is empty or has zero norm.
func (f Fingerprint) NormalizeL2() bool {
	norm := f.Norm()
	if norm == 0 {
		return false
	}

	inv := 1 / norm
	for term := range f {
		f[term] *= inv
	}

	return true
}

// Clone returns a deep copy of the fingerprint.
func (f Fingerprint) Clone() Fingerprint {
	c := make(Fingerprint, len(f))
	for term, w := range f {
		c[term] = w
	}

	return c
}

// Document represents one submitted report held in the corpus.
// Documents are immutable after ingestion and are never deleted.
type Document struct {
	// ID is the opaque caller-assigned identifier. Unique within a corpus.
	ID string

	// Author identifies the originating analyst. Provenance only.
	Author string

	// RawText is the submitted text, kept for segment localization.
	RawText string

	// Fingerprint is the L2-normalized TF-IDF vector computed from the
	// corpus statistics at ingestion time. It is never recomputed.
	Fingerprint Fingerprint

	// TermCount is the number of normalized tokens in RawText.
	TermCount int

	// CreatedAt is the ingestion timestamp.
	CreatedAt time.Time
}

// Candidate is a potential match found during similarity search.
type Candidate struct {
	Doc   *Document
	Score float64
}

// Span is a half-open byte range [Start, End) into a raw text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Union returns the smallest span covering both s and other.
func (s Span) Union(other Span) Span {
	u := s
	if other.Start < u.Start {
		u.Start = other.Start
	}
	if other.End > u.End {
		u.End = other.End
	}

	return u
}

// Segment is a localized pair of overlapping text spans whose local
// similarity exceeded the segment threshold.
type Segment struct {
	Source  Span    `json:"source_span"`
	Matched Span    `json:"matched_span"`
	Score   float64 `json:"score"`
}

// Severity classifies a detected match for a human reviewer.
type Severity int

const (
	// SeverityNone indicates the score fell below the reporting threshold.
	SeverityNone Severity = iota
	// SeverityLow indicates a weak overlap worth monitoring.
	SeverityLow
	// SeverityModerate indicates an overlap that should be reviewed.
	SeverityModerate
	// SeverityHigh indicates a strong overlap requiring justification.
	SeverityHigh
	// SeverityCritical indicates near-verbatim overlap; block and escalate.
	SeverityCritical
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityModerate:
		return "moderate"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Action returns the recommended reviewer action for the severity.
func (s Severity) Action() string {
	switch s {
	case SeverityLow:
		return "monitor"
	case SeverityModerate:
		return "flag for review"
	case SeverityHigh:
		return "require justification"
	case SeverityCritical:
		return "block / escalate"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler so severities serialize as
// their names in JSON audit records.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*s = SeverityNone
	case "low":
		*s = SeverityLow
	case "moderate":
		*s = SeverityModerate
	case "high":
		*s = SeverityHigh
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity: %q", text)
	}

	return nil
}

// Match is the per-candidate result of checking a new document.
type Match struct {
	// MatchedID is the id of the older corpus document.
	MatchedID string `json:"matched_id"`

	// Score is the whole-document cosine similarity in [0, 1].
	Score float64 `json:"similarity_score"`

	// Segments are the localized overlapping spans. May be empty even when
	// Score exceeds the document threshold: a document can cross the global
	// threshold through many weak passages without any single segment
	// being individually suspicious.
	Segments []Segment `json:"segments"`

	// Severity is the discrete classification of the match.
	Severity Severity `json:"severity"`

	// Action is the recommended reviewer action for Severity.
	Action string `json:"action"`
}

// MatchRecord is the persisted audit shape of one detected similarity
// event. Records are directional: the source is always the newer
// submission. Records are never updated and outlive any later state.
type MatchRecord struct {
	SourceID   string    `json:"source_id"`
	MatchedID  string    `json:"matched_id"`
	Score      float64   `json:"similarity_score"`
	Segments   []Segment `json:"segments"`
	Severity   Severity  `json:"severity"`
	DetectedAt time.Time `json:"detected_at"`
}
