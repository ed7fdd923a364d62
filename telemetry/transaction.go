package telemetry

import (
	"sync"
	"time"
)

// SpanTiming is a finished span inside a transaction.
type SpanTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Transaction times an operation. Finishing it adds a "performance" breadcrumb
// carrying its duration and spans.
type Transaction struct {
	name      string
	operation string
	start     time.Time
	tracker   *ErrorTracker

	mu       sync.Mutex
	spans    []SpanTiming
	finished bool
}

// Span times one step of a Transaction.
type Span struct {
	name  string
	start time.Time
	tx    *Transaction
	once  sync.Once
}

func (t *ErrorTracker) StartTransaction(name, operation string) *Transaction {
	return &Transaction{name: name, operation: operation, start: t.now(), tracker: t}
}

func (tx *Transaction) StartSpan(name string) *Span {
	return &Span{name: name, start: tx.tracker.now(), tx: tx}
}

// Spans returns the finished spans in finish order.
func (tx *Transaction) Spans() []SpanTiming {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return append([]SpanTiming(nil), tx.spans...)
}

// Finish records the transaction. Only the first call has an effect.
func (tx *Transaction) Finish() time.Duration {
	tx.mu.Lock()
	if tx.finished {
		tx.mu.Unlock()
		return 0
	}
	tx.finished = true
	spans := append([]SpanTiming(nil), tx.spans...)
	tx.mu.Unlock()

	d := tx.tracker.now().Sub(tx.start)
	tx.tracker.AddBreadcrumb(Breadcrumb{
		Type:     "default",
		Category: "performance",
		Message:  "Transaction: " + tx.name,
		Level:    LevelInfo,
		Data: map[string]any{
			"operation": tx.operation,
			"duration":  d,
			"spans":     spans,
		},
	})
	return d
}

// Finish adds the span's duration to its transaction. Only the first call has an effect.
func (s *Span) Finish() time.Duration {
	var d time.Duration
	s.once.Do(func() {
		d = s.tx.tracker.now().Sub(s.start)
		s.tx.mu.Lock()
		s.tx.spans = append(s.tx.spans, SpanTiming{Name: s.name, Duration: d})
		s.tx.mu.Unlock()
	})
	return d
}
