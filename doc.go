// Package textmatch provides an embeddable document similarity and
// plagiarism-detection engine for Go.
//
// Given a newly submitted text and an opaque report id, the engine decides
// whether the text substantially overlaps with any previously submitted
// document in a growing corpus, localizes where the overlap occurs, and
// classifies each match with a severity usable by a human reviewer.
//
// # Pipeline
//
// Each check runs tokenize -> vectorize -> search -> localize -> classify
// -> record -> append, strictly in that order. The append to the corpus
// happens last, so a document never matches against itself and concurrent
// checks never observe a half-ingested document.
//
//   - Tokenizer (token): deterministic normalization with byte offsets
//   - Vocabulary (vocab): corpus-wide document frequencies, TF-IDF
//     fingerprints, L2-normalized so cosine similarity is a dot product
//   - Corpus (corpus): append-only store with snapshot iteration
//   - Search (search): linear scan or bit-identical inverted index
//   - Segment matcher (window): sliding-window overlap localization
//   - Classifier (severity): score + coverage -> severity and action
//   - Audit log (auditlog): one atomic append per check, replayable
//
// # Quick Start
//
//	engine, err := textmatch.New(
//	    textmatch.WithThresholds(severity.DefaultThresholds()),
//	    textmatch.WithLogger(textmatch.NewTextLogger(slog.LevelInfo)),
//	)
//	if err != nil {
//	    panic(err)
//	}
//
//	matches, err := engine.Check(ctx, reportText, "report-7432", "analyst-19")
//	for _, m := range matches {
//	    fmt.Printf("%s overlaps %s: score=%.2f severity=%s action=%q\n",
//	        "report-7432", m.MatchedID, m.Score, m.Severity, m.Action)
//	}
//
// # Durability
//
// With WithAuditLog, every check is persisted as a single atomic log
// append. On restart the engine rebuilds its corpus and vocabulary by
// replaying the log in ingestion order, reproducing every frozen
// fingerprint exactly:
//
//	engine, err := textmatch.New(
//	    textmatch.WithAuditLog("./data/checks.log", func(o *auditlog.Options) {
//	        o.Compression = auditlog.CompressionZstd
//	    }),
//	)
//
// # Score Semantics
//
// Fingerprints are frozen at ingestion time against the corpus statistics
// of that moment. As the corpus grows, term weights drift; a stored match
// score is the score at detection time and is never recomputed. This is
// intentional, documented behavior: audit records are historical truths,
// not live measurements.
package textmatch
