// Package model defines core types used throughout textmatch.
//
// # Document Types
//
//   - Document: An ingested report with its frozen fingerprint
//   - Fingerprint: Sparse L2-normalized TF-IDF term vector
//   - Candidate: Similarity search result with document and score
//
// # Match Types
//
//   - Span: Half-open byte range into a raw text
//   - Segment: A localized pair of overlapping spans with a local score
//   - Severity: Discrete classification of a detected match
//   - Match: The per-candidate result returned by a check
//   - MatchRecord: The persisted audit shape of a detected match
package model
