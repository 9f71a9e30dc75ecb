package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Fingerprint
		expected float64
	}{
		{"Disjoint", Fingerprint{"alpha": 1}, Fingerprint{"beta": 1}, 0},
		{"Shared", Fingerprint{"alpha": 0.5, "beta": 0.5}, Fingerprint{"alpha": 0.5}, 0.25},
		{"Empty", Fingerprint{}, Fingerprint{"alpha": 1}, 0},
		{"Both empty", Fingerprint{}, Fingerprint{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.a.Dot(tt.b), 1e-12)
		})
	}
}

func TestFingerprintDotSymmetric(t *testing.T) {
	a := Fingerprint{"alpha": 0.3, "beta": 0.7, "gamma": 0.1}
	b := Fingerprint{"beta": 0.2, "gamma": 0.9, "delta": 0.4}

	assert.Equal(t, a.Dot(b), b.Dot(a))
}

func TestFingerprintNormalizeL2(t *testing.T) {
	fp := Fingerprint{"alpha": 3, "beta": 4}

	require.True(t, fp.NormalizeL2())
	assert.InDelta(t, 1.0, fp.Norm(), 1e-12)
	assert.InDelta(t, 0.6, fp["alpha"], 1e-12)
	assert.InDelta(t, 0.8, fp["beta"], 1e-12)

	assert.False(t, Fingerprint{}.NormalizeL2())
}

func TestSpan(t *testing.T) {
	assert.True(t, Span{0, 10}.Overlaps(Span{5, 15}))
	assert.True(t, Span{5, 15}.Overlaps(Span{0, 10}))
	assert.False(t, Span{0, 10}.Overlaps(Span{10, 20})) // half-open
	assert.Equal(t, Span{0, 20}, Span{0, 10}.Union(Span{5, 20}))
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		severity Severity
		name     string
		action   string
	}{
		{SeverityNone, "none", ""},
		{SeverityLow, "low", "monitor"},
		{SeverityModerate, "moderate", "flag for review"},
		{SeverityHigh, "high", "require justification"},
		{SeverityCritical, "critical", "block / escalate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.severity.String())
			assert.Equal(t, tt.action, tt.severity.Action())
		})
	}
}

func TestMatchRecordJSON(t *testing.T) {
	rec := MatchRecord{
		SourceID:  "doc-2",
		MatchedID: "doc-1",
		Score:     0.83,
		Segments: []Segment{
			{Source: Span{0, 42}, Matched: Span{7, 49}, Score: 0.91},
		},
		Severity:   SeverityCritical,
		DetectedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"critical"`)
	assert.Contains(t, string(data), `"source_span":{"start":0,"end":42}`)

	var decoded MatchRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec, decoded)
}
