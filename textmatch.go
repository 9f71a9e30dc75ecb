package textmatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/textmatch/auditlog"
	"github.com/hupe1980/textmatch/corpus"
	"github.com/hupe1980/textmatch/model"
	"github.com/hupe1980/textmatch/search"
	"github.com/hupe1980/textmatch/severity"
	"github.com/hupe1980/textmatch/token"
	"github.com/hupe1980/textmatch/vocab"
	"github.com/hupe1980/textmatch/window"
)

// CheckResult is the detailed outcome of one check.
type CheckResult struct {
	// Matches are the corpus documents the submission substantially
	// overlaps with, sorted descending by score.
	Matches []model.Match

	// Truncated reports that the similarity search or the segment
	// localization was cut short by the caller's deadline. Matches covers
	// what was scored before expiry; candidates whose localization was cut
	// off are reported on their whole-document score without segments.
	Truncated bool
}

// Engine is the document similarity engine. It is a synchronous library
// with no background goroutines; concurrent Check calls are safe. The
// corpus store and vocabulary model are the only shared mutable state and
// all mutations are serialized behind a single commit lock, while searches
// run against point-in-time snapshots.
type Engine struct {
	thresholds        severity.Thresholds
	documentThreshold float64
	minTokens         int

	logger  *Logger
	metrics MetricsCollector
	clock   func() time.Time
	limiter *rate.Limiter

	vocab    *vocab.Model
	store    *corpus.Store
	inverted *search.InvertedIndex
	searcher search.Searcher
	matcher  *window.Matcher

	maxParallelLocalize int

	trail    *auditlog.MemoryRecorder
	recorder auditlog.Recorder
	log      *auditlog.Log

	// mu serializes the commit phase of a check: vocabulary observation,
	// corpus append, index update and audit recording happen atomically
	// with respect to other checks.
	mu sync.Mutex
}

// New creates an Engine. Configuration errors surface here, never at
// check time. When WithAuditLog points at an existing log, the corpus and
// vocabulary are rebuilt by replaying its entries in order.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	if err := o.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		thresholds:          o.thresholds,
		documentThreshold:   o.documentThreshold,
		minTokens:           o.minTokens,
		logger:              o.logger,
		metrics:             o.metrics,
		clock:               o.clock,
		limiter:             o.limiter,
		vocab:               vocab.New(),
		store:               corpus.New(),
		maxParallelLocalize: o.maxParallelLocalize,
		trail:               auditlog.NewMemoryRecorder(),
		recorder:            o.recorder,
	}

	e.matcher = window.NewMatcher(e.vocab, o.windowSize, o.maxParallelLocalize)

	if o.useInvertedIndex {
		e.inverted = search.NewInvertedIndex()
		e.searcher = e.inverted
	} else {
		e.searcher = search.NewLinearScanner(e.store)
	}

	if o.auditLogPath != "" {
		log, err := auditlog.Open(o.auditLogPath, o.auditLogOptions...)
		if err != nil {
			return nil, err
		}
		e.log = log

		if err := e.replay(log); err != nil {
			_ = log.Close()
			return nil, err
		}
	}

	return e, nil
}

// replay rebuilds corpus, vocabulary and audit trail from a log.
// Re-tokenizing and re-vectorizing in the original ingestion order
// reproduces every frozen fingerprint exactly.
func (e *Engine) replay(log *auditlog.Log) error {
	return log.Replay(func(entry *auditlog.Entry) error {
		terms := token.Terms(token.Normalize(entry.Doc.RawText))

		doc := &model.Document{
			ID:          entry.Doc.ID,
			Author:      entry.Doc.Author,
			RawText:     entry.Doc.RawText,
			Fingerprint: e.vocab.Vectorize(terms),
			TermCount:   len(terms),
			CreatedAt:   entry.Doc.CreatedAt,
		}

		e.vocab.Observe(terms)
		if err := e.store.Append(doc); err != nil {
			return translateError(err)
		}
		if e.inverted != nil {
			e.inverted.Add(doc)
		}

		return e.trail.RecordCheck(entry.Doc, entry.Records)
	})
}

// Check scores a newly submitted text against every prior document,
// localizes overlapping segments for each candidate, classifies severity,
// records the matches and finally appends the document to the corpus.
// The append happens last, so a document never matches against itself and
// concurrent checks never see a half-ingested document.
//
// Documents below the configured minimum token count short-circuit with
// zero matches but are still ingested so they can be matched against
// later.
func (e *Engine) Check(ctx context.Context, text, id, author string) ([]model.Match, error) {
	result, err := e.CheckDetailed(ctx, text, id, author)
	if err != nil {
		return nil, err
	}

	return result.Matches, nil
}

// CheckDetailed is Check exposing the truncation flag of the underlying
// similarity search.
func (e *Engine) CheckDetailed(ctx context.Context, text, id, author string) (*CheckResult, error) {
	return e.check(ctx, text, id, author, e.documentThreshold)
}

// CheckWithThreshold is CheckDetailed with a per-call document threshold
// overriding the configured one. The segment threshold is derived from it.
func (e *Engine) CheckWithThreshold(ctx context.Context, text, id, author string, threshold float64) (*CheckResult, error) {
	if threshold < 0 || threshold > 1 {
		return nil, &ErrInvalidConfig{Field: "threshold", Reason: "must be in [0, 1]"}
	}

	return e.check(ctx, text, id, author, threshold)
}

func (e *Engine) check(ctx context.Context, text, id, author string, threshold float64) (*CheckResult, error) {
	start := e.clock()

	result, err := e.doCheck(ctx, text, id, author, threshold)

	matches := 0
	if result != nil {
		matches = len(result.Matches)
	}
	e.metrics.RecordCheck(matches, e.clock().Sub(start), err)
	e.logger.LogCheck(ctx, id, matches, e.clock().Sub(start), err)

	return result, err
}

func (e *Engine) doCheck(ctx context.Context, text, id, author string, threshold float64) (*CheckResult, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInput)
	}

	// Cheap early rejection; the authoritative duplicate check happens
	// again under the commit lock.
	if e.store.Has(id) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}

	tokens := token.Normalize(text)
	terms := token.Terms(tokens)
	now := e.clock()

	result := &CheckResult{}
	var records []*model.MatchRecord

	if len(terms) >= e.minTokens && len(terms) > 0 {
		// Vectorize against the corpus statistics as they are right now,
		// before this document is observed.
		query := e.vocab.Vectorize(terms)

		searchStart := e.clock()
		res, err := e.searcher.Search(ctx, query, id, threshold)
		if err != nil {
			return nil, err
		}
		e.metrics.RecordSearch(len(res.Candidates), e.clock().Sub(searchStart), res.Truncated)

		if res.Truncated {
			result.Truncated = true
			e.logger.LogTruncatedSearch(ctx, id, len(res.Candidates))
		}

		matches, locTruncated, err := e.localizeAndClassify(ctx, text, id, threshold, res.Candidates)
		if err != nil {
			return nil, err
		}
		if locTruncated {
			result.Truncated = true
			e.logger.LogTruncatedLocalize(ctx, id, len(matches))
		}

		result.Matches = matches
		records = make([]*model.MatchRecord, 0, len(matches))
		for _, m := range matches {
			e.logger.LogMatch(ctx, id, m.MatchedID, m.Score, len(m.Segments), m.Severity.String())
			records = append(records, &model.MatchRecord{
				SourceID:   id,
				MatchedID:  m.MatchedID,
				Score:      m.Score,
				Segments:   m.Segments,
				Severity:   m.Severity,
				DetectedAt: now,
			})
		}
	}

	doc := &model.Document{
		ID:        id,
		Author:    author,
		RawText:   text,
		TermCount: len(terms),
		CreatedAt: now,
	}

	if err := e.commit(doc, terms, records); err != nil {
		return nil, err
	}

	e.metrics.RecordIngest(len(terms))
	e.logger.LogIngest(ctx, id, len(terms), e.store.Len())

	return result, nil
}

// localizeAndClassify runs segment localization for every candidate and
// classifies severity. The per-candidate loop has no shared mutable state
// and fans out across workers. When the caller's deadline expires during
// localization, the affected candidates are classified on their
// whole-document score alone and the result is marked truncated; the
// candidates localized before expiry keep their segments. Matches
// classified as none are dropped: they are below the reporting threshold
// and never recorded.
func (e *Engine) localizeAndClassify(ctx context.Context, text, id string, threshold float64, candidates []model.Candidate) ([]model.Match, bool, error) {
	if len(candidates) == 0 {
		return nil, false, nil
	}

	segmentThreshold := window.SegmentThreshold(threshold)
	matches := make([]model.Match, len(candidates))

	var truncated atomic.Bool

	var g errgroup.Group
	g.SetLimit(e.maxParallelLocalize)

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			localizeStart := e.clock()

			segments, err := e.matcher.Localize(ctx, text, c.Doc.RawText, segmentThreshold)
			switch {
			case err == nil:
			case ctx.Err() != nil:
				truncated.Store(true)
				segments = nil
			default:
				return err
			}
			e.metrics.RecordLocalize(len(segments), e.clock().Sub(localizeStart))

			var maxSegmentScore float64
			for _, s := range segments {
				if s.Score > maxSegmentScore {
					maxSegmentScore = s.Score
				}
			}

			sev := e.thresholds.Classify(c.Score, len(segments), maxSegmentScore)
			matches[i] = model.Match{
				MatchedID: c.Doc.ID,
				Score:     c.Score,
				Segments:  segments,
				Severity:  sev,
				Action:    sev.Action(),
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	reported := matches[:0]
	for _, m := range matches {
		if m.Severity == model.SeverityNone {
			continue
		}
		reported = append(reported, m)
	}

	return reported, truncated.Load(), nil
}

// commit is the single write side of a check. A duplicate id aborts before
// anything is mutated or persisted.
func (e *Engine) commit(doc *model.Document, terms []string, records []*model.MatchRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.Has(doc.ID) {
		return fmt.Errorf("%w: %q", ErrDuplicateID, doc.ID)
	}

	// The stored fingerprint is frozen under the same lock that orders
	// Observe and the log append, so replaying the log in append order
	// reproduces it exactly even when checks ran concurrently.
	doc.Fingerprint = e.vocab.Vectorize(terms)
	e.vocab.Observe(terms)
	if err := e.store.Append(doc); err != nil {
		return translateError(err)
	}
	if e.inverted != nil {
		e.inverted.Add(doc)
	}

	entry := auditlog.DocumentEntry{
		ID:        doc.ID,
		Author:    doc.Author,
		RawText:   doc.RawText,
		CreatedAt: doc.CreatedAt,
	}

	if err := e.trail.RecordCheck(entry, records); err != nil {
		return err
	}
	if e.recorder != nil {
		if err := e.recorder.RecordCheck(entry, records); err != nil {
			return err
		}
	}
	if e.log != nil {
		if err := e.log.AppendCheck(entry, records); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the ingested document for the given id.
func (e *Engine) Get(id string) (*model.Document, error) {
	doc, err := e.store.Get(id)
	if err != nil {
		return nil, translateError(err)
	}

	return doc, nil
}

// Len returns the number of documents in the corpus.
func (e *Engine) Len() int {
	return e.store.Len()
}

// MatchesFor returns the audit trail for a document: every record where
// it appears as source or matched side, in detection order.
func (e *Engine) MatchesFor(id string) []*model.MatchRecord {
	return e.trail.ByID(id)
}

// DocumentThreshold returns the configured whole-document threshold.
func (e *Engine) DocumentThreshold() float64 {
	return e.documentThreshold
}

// Close flushes and closes the audit log, if any.
func (e *Engine) Close() error {
	if e.log != nil {
		return e.log.Close()
	}

	return nil
}
