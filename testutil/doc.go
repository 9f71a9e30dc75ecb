// Package testutil provides testing utilities for textmatch.
//
// This package is intended for use in tests only. It provides helpers for
// generating deterministic synthetic documents: random word pools with a
// fixed seed, shared-vocabulary document pairs and filler paragraphs.
package testutil
