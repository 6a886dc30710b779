// Package progress tracks indexing progress with lock-free counters and
// derives percent-complete/ETA snapshots.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tracker is a shared, cheap record of indexing progress. All counters are
// atomic; only the start timestamp is guarded by a mutex.
type Tracker struct {
	filesTotal       int64
	filesProcessed   int64
	symbolsExtracted int64
	errors           int64
	isActive         int32

	mu        sync.Mutex
	startedAt time.Time
}

// New returns an idle tracker.
func New() *Tracker {
	return &Tracker{}
}

// Start marks the tracker active, records the start time, and sets the total
// file count known up front.
func (t *Tracker) Start(filesTotal int) {
	t.mu.Lock()
	t.startedAt = time.Now()
	t.mu.Unlock()
	atomic.StoreInt64(&t.filesTotal, int64(filesTotal))
	atomic.StoreInt64(&t.filesProcessed, 0)
	atomic.StoreInt64(&t.symbolsExtracted, 0)
	atomic.StoreInt64(&t.errors, 0)
	atomic.StoreInt32(&t.isActive, 1)
}

// Stop marks the tracker inactive. Counters remain readable for a final
// snapshot.
func (t *Tracker) Stop() {
	atomic.StoreInt32(&t.isActive, 0)
}

// FileProcessed increments the processed-file counter.
func (t *Tracker) FileProcessed() {
	atomic.AddInt64(&t.filesProcessed, 1)
}

// SymbolsExtracted adds n to the extracted-symbol counter.
func (t *Tracker) SymbolsExtracted(n int) {
	atomic.AddInt64(&t.symbolsExtracted, int64(n))
}

// ErrorOccurred increments the soft-error counter. Parse and
// unsupported-language failures are counted, never fatal to a bulk run.
func (t *Tracker) ErrorOccurred() {
	atomic.AddInt64(&t.errors, 1)
}

// Snapshot is a point-in-time view of the tracker's counters plus derived
// fields.
type Snapshot struct {
	FilesTotal       int
	FilesProcessed   int
	SymbolsExtracted int
	Errors           int
	IsActive         bool
	StartedAt        time.Time
	ProgressPct      float64
	ETAMillis        *int64 // nil when undeterminable
}

// Snapshot derives progress_pct and eta_ms from the current counters.
// eta_ms = remaining * elapsed / processed when processed is in (0, total),
// nil otherwise.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	started := t.startedAt
	t.mu.Unlock()

	total := atomic.LoadInt64(&t.filesTotal)
	processed := atomic.LoadInt64(&t.filesProcessed)

	s := Snapshot{
		FilesTotal:       int(total),
		FilesProcessed:   int(processed),
		SymbolsExtracted: int(atomic.LoadInt64(&t.symbolsExtracted)),
		Errors:           int(atomic.LoadInt64(&t.errors)),
		IsActive:         atomic.LoadInt32(&t.isActive) == 1,
		StartedAt:        started,
	}

	if total > 0 {
		s.ProgressPct = float64(processed) / float64(total) * 100
	}

	if processed > 0 && processed < total && !started.IsZero() {
		elapsed := time.Since(started)
		remaining := total - processed
		etaMs := int64(elapsed) * remaining / processed / int64(time.Millisecond)
		s.ETAMillis = &etaMs
	}

	return s
}
