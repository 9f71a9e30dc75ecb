package auditlog

import (
	"sync"
	"time"

	"github.com/hupe1980/textmatch/model"
)

// DocumentEntry is the ingestion side of one logged check: enough to
// rebuild the document (and, replayed in order, the whole corpus and
// vocabulary) from the log alone. Fingerprints are not stored; they are
// recomputed deterministically during replay.
type DocumentEntry struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	RawText   string    `json:"raw_text"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one logged check: the ingested document plus the match records
// it produced. A check is appended as a single entry, making the log
// append the transaction boundary of the whole check.
type Entry struct {
	Seq     uint64               `json:"seq"`
	Doc     DocumentEntry        `json:"doc"`
	Records []*model.MatchRecord `json:"records,omitempty"`
}

// Recorder persists the outcome of one check. Recording the same ordered
// (source, matched) pair again appends an additional row rather than
// overwriting: re-checks are allowed and review history matters.
type Recorder interface {
	RecordCheck(doc DocumentEntry, records []*model.MatchRecord) error
}

// MemoryRecorder is an in-memory Recorder with audit-trail lookups.
type MemoryRecorder struct {
	mu      sync.RWMutex
	records []*model.MatchRecord
}

// NewMemoryRecorder creates an empty MemoryRecorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Ensure MemoryRecorder implements Recorder.
var _ Recorder = (*MemoryRecorder)(nil)

// RecordCheck implements Recorder.
func (r *MemoryRecorder) RecordCheck(_ DocumentEntry, records []*model.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, records...)

	return nil
}

// ByID returns all records where id appears as source or matched document,
// in detection order.
func (r *MemoryRecorder) ByID(id string) []*model.MatchRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.MatchRecord
	for _, rec := range r.records {
		if rec.SourceID == id || rec.MatchedID == id {
			out = append(out, rec)
		}
	}

	return out
}

// All returns a copy of every record in detection order.
func (r *MemoryRecorder) All() []*model.MatchRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.MatchRecord, len(r.records))
	copy(out, r.records)

	return out
}

// Len returns the number of records.
func (r *MemoryRecorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}
