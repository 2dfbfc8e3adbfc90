// Package reflection implements the Reflection Sink (§4.6): a non-blocking
// record of one cycle's outcome. Failure to record must never fail the
// cycle; the FSM driver fires reflection and moves on without awaiting it.
package reflection

import (
	"context"
	"sync"
	"time"

	"github.com/sentinel-cycle/engine/internal/logging"
)

// Outcome summarizes how one cycle ended.
type Outcome string

const (
	OutcomeDone      Outcome = "done"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Record is one cycle's reflection entry, matching §4.6's record() fields.
type Record struct {
	CycleID     string
	Goal        string
	Outcome     Outcome
	Duration    time.Duration
	ChangeCount int
	Iterations  int
	Notes       string
	RecordedAt  time.Time
}

// Sink is the Reflection Sink port. The core neither reads nor interprets
// sink contents; they feed later queries by external consumers.
type Sink interface {
	Record(ctx context.Context, rec Record)
}

// InMemorySink stores records for the process lifetime. It never returns an
// error to callers: Record is fire-and-forget by construction, matching
// §4.6's "failure to record MUST NOT fail the cycle".
type InMemorySink struct {
	mu      sync.Mutex
	records []Record
	logger  logging.Logger
}

// NewInMemorySink constructs a Sink that keeps every record in memory.
func NewInMemorySink(logger logging.Logger) *InMemorySink {
	return &InMemorySink{logger: logging.OrNop(logger).With("reflection")}
}

// Record appends rec. It is safe to call from the cycle driver's
// fire-and-forget goroutine without synchronizing on completion.
func (s *InMemorySink) Record(ctx context.Context, rec Record) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	s.logger.Info("cycle %s reflected: outcome=%s iterations=%d changes=%d", rec.CycleID, rec.Outcome, rec.Iterations, rec.ChangeCount)
}

// All returns a copy of every record stored so far.
func (s *InMemorySink) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// RecordAsync fires rec at sink on its own goroutine and returns
// immediately, regardless of sink's implementation. This is the shape the
// cycle FSM driver actually calls: REFLECTING never blocks the terminal
// transition.
func RecordAsync(sink Sink, rec Record) {
	if sink == nil {
		return
	}
	go sink.Record(context.Background(), rec)
}
