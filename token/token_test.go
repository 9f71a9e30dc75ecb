package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Simple", "Quick brown foxes", []string{"quick", "brown", "foxes"}},
		{"Punctuation", "Hello, world! (really)", []string{"hello", "world", "really"}},
		{"StopWords", "the cat and the hat", []string{"cat", "hat"}},
		{"ShortTokens", "a I x go running", []string{"go", "running"}},
		{"Digits", "Q3 revenue grew 14 percent", []string{"q3", "revenue", "grew", "14", "percent"}},
		{"Whitespace", "  \t\n  ", nil},
		{"Empty", "", nil},
		{"Markup", "<b>bold</b> text", []string{"bold", "text"}},
		{"MixedCase", "iPhone Revenue GROWTH", []string{"iphone", "revenue", "growth"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Terms(Normalize(tt.input))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeOffsets(t *testing.T) {
	text := "The quick brown fox."
	tokens := Normalize(text)

	require.Len(t, tokens, 3)
	for _, tok := range tokens {
		// Offsets point into the raw text; only the casing differs.
		assert.Equal(t, tok.Term, strings.ToLower(text[tok.Start:tok.End]))
		assert.Less(t, tok.Start, tok.End)
	}

	assert.Equal(t, "quick", text[tokens[0].Start:tokens[0].End])
	assert.Equal(t, "fox", text[tokens[2].Start:tokens[2].End])
}

func TestNormalizeDeterministic(t *testing.T) {
	text := "Apple reported record iPhone revenue growth this quarter."

	first := Normalize(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Normalize(text))
	}
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("over"))
	assert.False(t, IsStopWord("fox"))
	assert.False(t, IsStopWord("growth"))
}
