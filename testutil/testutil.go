package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// RNG encapsulates a seeded random number generator. It is thread-safe
// and fully deterministic for a given seed.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// WordPool returns n distinct synthetic words with the given prefix.
// Words are at least five runes long so none collide with the tokenizer's
// minimum length or stop-word list.
func WordPool(prefix string, n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%04d", prefix, i)
	}
	return words
}

// Paragraph joins n words drawn round-robin from the pool into a single
// space-separated text. Deterministic for a given pool.
func Paragraph(pool []string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = pool[i%len(pool)]
	}
	return strings.Join(words, " ")
}

// InterleavedPair builds two documents that share the given terms at the
// same positions but differ in all filler vocabulary. Each shared term is
// followed by fillerPerShared unique filler words, so shared terms are
// spread evenly and any fixed-size token window only ever contains a few
// of them. Used to construct pairs whose aggregate similarity crosses a
// document threshold while no single window pair crosses the stricter
// segment threshold.
func InterleavedPair(shared []string, fillerPerShared int) (string, string) {
	var a, b strings.Builder

	for i, s := range shared {
		a.WriteString(s)
		b.WriteString(s)

		for j := 0; j < fillerPerShared; j++ {
			a.WriteString(fmt.Sprintf(" fillaa%02d%02d", i, j))
			b.WriteString(fmt.Sprintf(" fillbb%02d%02d", i, j))
		}

		if i < len(shared)-1 {
			a.WriteString(" ")
			b.WriteString(" ")
		}
	}

	return a.String(), b.String()
}
