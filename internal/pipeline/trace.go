package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceRecord is one row per backend attempt. Records are append-only and are
// never mutated after creation; failed attempts stay in the log even when a
// later attempt or fallback succeeds.
type TraceRecord struct {
	Stage       Stage   `json:"stage"`
	Mode        Mode    `json:"mode"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Attempt     int     `json:"attempt"`
	DurationMS  int64   `json:"durationMs"`
	OK          bool    `json:"ok"`
	Error       string  `json:"error,omitempty"`
}

// traceLog accumulates TraceRecords for one orchestrator invocation. The
// mutex only matters for the caption/empathy stages, which may run
// concurrently; everything else is sequential.
type traceLog struct {
	id      string
	mu      sync.Mutex
	records []TraceRecord
}

func newTraceLog(id string) *traceLog {
	return &traceLog{id: id}
}

func (t *traceLog) append(rec TraceRecord) {
	t.mu.Lock()
	t.records = append(t.records, rec)
	t.mu.Unlock()
}

// snapshot returns a copy of the records accumulated so far.
func (t *traceLog) snapshot() []TraceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceRecord, len(t.records))
	copy(out, t.records)
	return out
}

// newTraceID mints the session correlation token for a create request.
// Refine requests reuse the id from their originating create response.
func newTraceID() string {
	return "trace-" + uuid.NewString()
}

// sinceMS converts an attempt duration for the trace record.
func sinceMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
