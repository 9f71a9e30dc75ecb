// Package token converts raw report text into a normalized sequence of
// terms. Normalization is deterministic: identical input always yields an
// identical token sequence, with no dependence on locale, time or
// randomness.
package token

import (
	"strings"
	"unicode"
)

// minTermLen is the minimum rune length of a kept token.
const minTermLen = 2

// Token is one normalized term together with its half-open byte range
// in the original raw text, so downstream spans can point back into the
// submitted document.
type Token struct {
	Term  string
	Start int
	End   int
}

// Normalize tokenizes raw text into lower-cased terms. Letter and digit
// runs form tokens; punctuation, markup and whitespace are separators.
// Tokens shorter than two runes and stop words are discarded.
// Empty or whitespace-only input yields an empty sequence.
func Normalize(text string) []Token {
	var (
		tokens []Token
		sb     strings.Builder
		start  = -1
		runes  = 0
	)

	flush := func(end int) {
		if start < 0 {
			return
		}
		term := sb.String()
		if runes >= minTermLen && !IsStopWord(term) {
			tokens = append(tokens, Token{Term: term, Start: start, End: end})
		}
		sb.Reset()
		start = -1
		runes = 0
	}

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			sb.WriteRune(unicode.ToLower(r))
			runes++

			continue
		}

		flush(i)
	}
	flush(len(text))

	return tokens
}

// Terms extracts the term strings from a token sequence.
func Terms(tokens []Token) []string {
	if len(tokens) == 0 {
		return nil
	}

	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}

	return terms
}

// IsStopWord reports whether the term is on the fixed stop-word list.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

// stopWords is a fixed English stop-word list. Membership is frozen so
// that fingerprints remain reproducible across releases of the engine.
var stopWords = func() map[string]struct{} {
	words := []string{
		"about", "above", "after", "again", "all", "also", "and", "any",
		"are", "as", "at", "be", "because", "been", "before", "being",
		"below", "between", "both", "but", "by", "can", "did", "do",
		"does", "down", "during", "each", "else", "few", "for", "from",
		"further", "had", "has", "have", "he", "her", "here", "him",
		"his", "how", "if", "in", "into", "is", "it", "its", "just",
		"more", "most", "no", "nor", "not", "now", "of", "off", "on",
		"once", "only", "or", "other", "our", "out", "over", "own",
		"same", "she", "so", "some", "such", "than", "that", "the",
		"their", "them", "then", "there", "these", "they", "this",
		"those", "through", "to", "too", "under", "until", "up", "very",
		"was", "we", "were", "what", "when", "where", "which", "while",
		"who", "why", "will", "with", "you", "your",
	}

	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}

	return m
}()
