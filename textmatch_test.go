package textmatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/textmatch/auditlog"
	"github.com/hupe1980/textmatch/model"
	"github.com/hupe1980/textmatch/severity"
	"github.com/hupe1980/textmatch/testutil"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
}

func TestCheckIdentity(t *testing.T) {
	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	text := "alpha bravo charlie delta echo foxtrot golf hotel"
	ctx := context.Background()

	matches, err := e.Check(ctx, text, "a", "analyst-1")
	require.NoError(t, err)
	assert.Empty(t, matches, "first document has nothing to match against")

	matches, err = e.Check(ctx, text, "b", "analyst-2")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "a", m.MatchedID)
	assert.InDelta(t, 1.0, m.Score, 1e-9)
	assert.Equal(t, model.SeverityCritical, m.Severity)
	assert.Equal(t, model.SeverityCritical.Action(), m.Action)

	require.NotEmpty(t, m.Segments)
	seg := m.Segments[0]
	assert.Equal(t, model.Span{Start: 0, End: len(text)}, seg.Source, "segment covers the whole text")
	assert.Equal(t, model.Span{Start: 0, End: len(text)}, seg.Matched)
	assert.InDelta(t, 1.0, seg.Score, 1e-9)
}

func TestCheckUnrelatedText(t *testing.T) {
	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	ctx := context.Background()

	_, err = e.Check(ctx, "alpha bravo charlie delta", "a", "analyst-1")
	require.NoError(t, err)

	matches, err := e.Check(ctx, "zulu yankee xray whiskey", "b", "analyst-2")
	require.NoError(t, err)
	assert.Empty(t, matches, "no shared vocabulary means zero similarity")
}

func TestCheckNearDuplicateSentence(t *testing.T) {
	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	ctx := context.Background()

	_, err = e.Check(ctx, "The quick brown fox jumps over the lazy dog", "a", "analyst-1")
	require.NoError(t, err)

	text := "The quick brown fox leaps over the lazy dog"
	matches, err := e.Check(ctx, text, "b", "analyst-2")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "a", m.MatchedID)
	assert.Greater(t, m.Score, 0.7)
	assert.Contains(t, []model.Severity{model.SeverityHigh, model.SeverityCritical}, m.Severity)

	require.NotEmpty(t, m.Segments)
	seg := m.Segments[0]
	assert.Less(t, seg.Source.Start, len("The quick "), "segment starts near the beginning")
	assert.Equal(t, len(text), seg.Source.End, "segment reaches the end of the sentence")
}

func TestCheckDistinctTopics(t *testing.T) {
	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	ctx := context.Background()

	_, err = e.Check(ctx, "Apple reported record iPhone revenue growth this quarter.", "a", "analyst-1")
	require.NoError(t, err)

	matches, err := e.Check(ctx, "Banking sector shows resilient loan growth amid rate hikes.", "c", "analyst-2")
	require.NoError(t, err)
	assert.Empty(t, matches, "incidental term overlap stays below the document threshold")
}

func TestCheckSegmentNonFabrication(t *testing.T) {
	// Two documents sharing vocabulary spread thinly across their whole
	// length: the aggregate score crosses the document threshold while no
	// single window pair crosses the stricter segment threshold.
	shared := testutil.WordPool("shared", 20)
	textA, textB := testutil.InterleavedPair(shared, 2)

	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	ctx := context.Background()

	_, err = e.Check(ctx, textA, "a", "analyst-1")
	require.NoError(t, err)

	matches, err := e.Check(ctx, textB, "b", "analyst-2")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.GreaterOrEqual(t, m.Score, severity.DefaultThresholds().Low)
	assert.Equal(t, model.SeverityLow, m.Severity)
	assert.Empty(t, m.Segments, "diffuse overlap must not fabricate localized segments")
}

func TestCheckDuplicateID(t *testing.T) {
	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	ctx := context.Background()

	_, err = e.Check(ctx, "alpha bravo charlie", "a", "analyst-1")
	require.NoError(t, err)

	_, err = e.Check(ctx, "delta echo foxtrot", "a", "analyst-1")
	require.ErrorIs(t, err, ErrDuplicateID)

	assert.Equal(t, 1, e.Len(), "failed check must not ingest")

	doc, err := e.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "alpha bravo charlie", doc.RawText)
}

func TestCheckInvalidUTF8(t *testing.T) {
	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	_, err = e.Check(context.Background(), "valid prefix \xff\xfe", "a", "analyst-1")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, e.Len())
}

func TestCheckMinTokensShortCircuit(t *testing.T) {
	e, err := New() // default minimum of DefaultMinTokens
	require.NoError(t, err)

	ctx := context.Background()

	matches, err := e.Check(ctx, "alpha bravo charlie", "short-1", "analyst-1")
	require.NoError(t, err)
	assert.Empty(t, matches)

	// The same short text again: below the minimum it is ingested without
	// being checked, so no match is reported even for identical text.
	matches, err = e.Check(ctx, "alpha bravo charlie", "short-2", "analyst-1")
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.Equal(t, 2, e.Len(), "short documents are still ingested")
}

func TestCheckTruncatedSearch(t *testing.T) {
	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	_, err = e.Check(context.Background(), "alpha bravo charlie delta", "a", "analyst-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.CheckDetailed(ctx, "alpha bravo charlie delta", "b", "analyst-2")
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Empty(t, result.Matches)
	assert.Equal(t, 2, e.Len(), "a truncated check still ingests")
}

func TestLocalizeDegradesOnExpiredContext(t *testing.T) {
	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	text := "alpha bravo charlie delta echo foxtrot"
	_, err = e.Check(context.Background(), text, "a", "analyst-1")
	require.NoError(t, err)

	doc, err := e.Get("a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A deadline expiring during localization degrades the affected
	// candidates to their whole-document score instead of failing the
	// whole check.
	matches, truncated, err := e.localizeAndClassify(ctx, text, "b", e.documentThreshold,
		[]model.Candidate{{Doc: doc, Score: 1.0}})
	require.NoError(t, err)
	assert.True(t, truncated)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].MatchedID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Empty(t, matches[0].Segments)
	assert.Equal(t, model.SeverityCritical, matches[0].Severity)
}

func TestConcurrentChecksReplayFingerprints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks.log")

	e1, err := New(WithMinTokens(1), WithAuditLog(path))
	require.NoError(t, err)

	pool := testutil.WordPool("replay", 30)
	ctx := context.Background()

	const n = 16

	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := testutil.Paragraph(pool[i%5:], 20)
			_, errs[i] = e1.Check(ctx, text, fmt.Sprintf("doc-%03d", i), "analyst-1")
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "doc %03d", i)
	}

	want := make(map[string]model.Fingerprint, n)
	for i := 0; i < n; i++ {
		doc, err := e1.Get(fmt.Sprintf("doc-%03d", i))
		require.NoError(t, err)
		want[doc.ID] = doc.Fingerprint
	}
	require.NoError(t, e1.Close())

	e2, err := New(WithMinTokens(1), WithAuditLog(path))
	require.NoError(t, err)
	defer e2.Close()

	// Fingerprints are frozen under the commit lock, so replaying the log
	// in append order reproduces every one of them exactly even though the
	// originals were written by concurrent checks.
	for id, fp := range want {
		doc, err := e2.Get(id)
		require.NoError(t, err)
		assert.Equal(t, fp, doc.Fingerprint, id)
	}
}

func TestCheckWithThreshold(t *testing.T) {
	e, err := New(WithMinTokens(1))
	require.NoError(t, err)

	ctx := context.Background()

	_, err = e.Check(ctx, "The quick brown fox jumps over the lazy dog", "a", "analyst-1")
	require.NoError(t, err)

	// The near-duplicate scores ~0.73; a per-call threshold of 0.9 must
	// suppress it without touching the engine configuration.
	result, err := e.CheckWithThreshold(ctx, "The quick brown fox leaps over the lazy dog", "b", "analyst-2", 0.9)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)

	_, err = e.CheckWithThreshold(ctx, "text", "c", "analyst-2", 1.5)
	var cfgErr *ErrInvalidConfig
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "threshold", cfgErr.Field)
}

func TestMatchesFor(t *testing.T) {
	e, err := New(WithMinTokens(1), WithClock(fixedClock()))
	require.NoError(t, err)

	ctx := context.Background()
	text := "alpha bravo charlie delta echo foxtrot"

	_, err = e.Check(ctx, text, "a", "analyst-1")
	require.NoError(t, err)
	_, err = e.Check(ctx, text, "b", "analyst-2")
	require.NoError(t, err)

	forSource := e.MatchesFor("b")
	require.Len(t, forSource, 1)
	assert.Equal(t, "b", forSource[0].SourceID)
	assert.Equal(t, "a", forSource[0].MatchedID)
	assert.Equal(t, fixedClock()(), forSource[0].DetectedAt)

	forMatched := e.MatchesFor("a")
	require.Len(t, forMatched, 1, "the matched side shares the audit trail entry")
	assert.Empty(t, e.MatchesFor("unknown"))
}

func TestCustomRecorder(t *testing.T) {
	rec := &captureRecorder{}

	e, err := New(WithMinTokens(1), WithRecorder(rec))
	require.NoError(t, err)

	ctx := context.Background()
	text := "alpha bravo charlie delta"

	_, err = e.Check(ctx, text, "a", "analyst-1")
	require.NoError(t, err)
	_, err = e.Check(ctx, text, "b", "analyst-2")
	require.NoError(t, err)

	require.Len(t, rec.docs, 2, "every check is recorded, matches or not")
	assert.Equal(t, "a", rec.docs[0].ID)
	assert.Equal(t, "b", rec.docs[1].ID)
	assert.Empty(t, rec.records[0])
	require.Len(t, rec.records[1], 1)
	assert.Equal(t, "a", rec.records[1][0].MatchedID)
}

func TestAuditLogReplayRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks.log")
	text := "alpha bravo charlie delta echo foxtrot golf hotel"
	ctx := context.Background()

	e1, err := New(WithMinTokens(1), WithClock(fixedClock()), WithAuditLog(path))
	require.NoError(t, err)

	_, err = e1.Check(ctx, text, "a", "analyst-1")
	require.NoError(t, err)
	matches, err := e1.Check(ctx, text, "b", "analyst-2")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.NoError(t, e1.Close())

	// A fresh engine on the same log replays every check: corpus,
	// vocabulary and audit trail come back exactly.
	e2, err := New(WithMinTokens(1), WithClock(fixedClock()), WithAuditLog(path))
	require.NoError(t, err)
	defer e2.Close()

	assert.Equal(t, 2, e2.Len())

	doc, err := e2.Get("a")
	require.NoError(t, err)
	assert.Equal(t, text, doc.RawText)
	assert.Equal(t, fixedClock()(), doc.CreatedAt)

	trail := e2.MatchesFor("b")
	require.Len(t, trail, 1)
	assert.InDelta(t, 1.0, trail[0].Score, 1e-9)

	// Replayed fingerprints behave identically to the originals: the same
	// text still scores 1.0 against both prior copies.
	newMatches, err := e2.Check(ctx, text, "c", "analyst-3")
	require.NoError(t, err)
	require.Len(t, newMatches, 2)
	for _, m := range newMatches {
		assert.InDelta(t, 1.0, m.Score, 1e-9)
	}

	_, err = e2.Check(ctx, text, "a", "analyst-1")
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestInvertedIndexEngineEquivalence(t *testing.T) {
	linear, err := New(WithMinTokens(1), WithClock(fixedClock()))
	require.NoError(t, err)

	indexed, err := New(WithMinTokens(1), WithClock(fixedClock()), WithInvertedIndex())
	require.NoError(t, err)

	rng := testutil.NewRNG(42)
	pool := testutil.WordPool("corpus", 60)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		words := make([]string, 30)
		for j := range words {
			words[j] = pool[rng.Intn(len(pool))]
		}
		text := testutil.Paragraph(words, len(words))
		id := fmt.Sprintf("doc-%03d", i)

		want, err := linear.CheckDetailed(ctx, text, id, "analyst-1")
		require.NoError(t, err)

		got, err := indexed.CheckDetailed(ctx, text, id, "analyst-1")
		require.NoError(t, err)

		assert.Equal(t, want, got, "doc %s", id)
	}
}

func TestCheckConcurrent(t *testing.T) {
	e, err := New(WithMinTokens(1), WithMaxParallelLocalize(4))
	require.NoError(t, err)

	pool := testutil.WordPool("conc", 40)
	ctx := context.Background()

	const n = 32

	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := testutil.Paragraph(pool[i%8:], 20)
			_, errs[i] = e.Check(ctx, text, fmt.Sprintf("doc-%03d", i), "analyst-1")
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "doc %03d", i)
	}
	assert.Equal(t, n, e.Len())
}

func TestCheckRateLimited(t *testing.T) {
	e, err := New(WithMinTokens(1), WithCheckRateLimit(1000, 4))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := e.Check(ctx, "alpha bravo charlie", fmt.Sprintf("doc-%d", i), "analyst-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 4, e.Len())
}

func TestEngineMetricsAndLogging(t *testing.T) {
	metrics := &BasicMetricsCollector{}

	e, err := New(
		WithMinTokens(1),
		WithMetrics(metrics),
		WithLogger(NewTextLogger(slog.LevelError)),
	)
	require.NoError(t, err)

	ctx := context.Background()
	text := "alpha bravo charlie delta echo foxtrot"

	_, err = e.Check(ctx, text, "a", "analyst-1")
	require.NoError(t, err)
	_, err = e.Check(ctx, text, "b", "analyst-2")
	require.NoError(t, err)
	_, err = e.Check(ctx, text, "b", "analyst-2")
	require.ErrorIs(t, err, ErrDuplicateID)

	assert.Equal(t, int64(3), metrics.CheckCount.Load())
	assert.Equal(t, int64(1), metrics.CheckErrors.Load())
	assert.Equal(t, int64(1), metrics.MatchCount.Load())
	assert.Equal(t, int64(2), metrics.SearchCount.Load())
	assert.Equal(t, int64(1), metrics.LocalizeCount.Load())
	assert.Equal(t, int64(2), metrics.IngestCount.Load())
}

// captureRecorder collects everything passed through the Recorder hook.
type captureRecorder struct {
	mu      sync.Mutex
	docs    []auditlog.DocumentEntry
	records [][]*model.MatchRecord
}

func (r *captureRecorder) RecordCheck(doc auditlog.DocumentEntry, records []*model.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.docs = append(r.docs, doc)
	r.records = append(r.records, records)

	return nil
}
