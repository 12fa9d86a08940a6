package graphrag

import (
	"time"

	"github.com/dan-solli/graphrag/pkg/trace"
)

// OperationTrace captures timing for each stage of a run.
type OperationTrace struct {
	// Spans are in state order, including stages that ran concurrently
	Spans []Span `json:"spans"`

	// TotalDurationMs is the wall-clock duration of the run
	TotalDurationMs int64 `json:"totalDurationMs"`
}

// Span represents a single timed stage within a run.
// Stage names are stable:
//   - "resolve": seed entity resolution
//   - "expand": graph expansion
//   - "paths": 2-hop path finding
//   - "documents": both document channels
//   - "merge", "context", "generate", "citations"
type Span struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"durationMs"`
	OK         bool   `json:"ok"`

	// ErrorKind is the retrieval error kind when OK is false
	ErrorKind string `json:"errorKind,omitempty"`

	// Error is the failure message when OK is false
	Error string `json:"error,omitempty"`

	// Counters carries stage sizes, e.g. "seeds", "entities", "documents"
	Counters map[string]int64 `json:"counters,omitempty"`
}

func newTrace() *OperationTrace {
	return &OperationTrace{Spans: make([]Span, 0, 8)}
}

func (t *OperationTrace) addSpan(span Span) {
	t.Spans = append(t.Spans, span)
}

// spanTimer measures one stage.
type spanTimer struct {
	name  string
	start time.Time
}

func startSpan(name string) spanTimer {
	return spanTimer{name: name, start: time.Now()}
}

// finish builds the span; a non-empty kind marks it degraded.
func (st spanTimer) finish(kind string, err error, counters map[string]int64) Span {
	span := Span{
		Name:       st.name,
		DurationMs: time.Since(st.start).Milliseconds(),
		OK:         err == nil,
		ErrorKind:  kind,
		Counters:   counters,
	}
	if err != nil {
		span.Error = err.Error()
	}
	return span
}

// records converts spans to their exported form, dropping error text.
func (t *OperationTrace) records() []trace.SpanRecord {
	out := make([]trace.SpanRecord, 0, len(t.Spans))
	for _, s := range t.Spans {
		out = append(out, trace.SpanRecord{
			Name:       s.Name,
			DurationMs: s.DurationMs,
			OK:         s.OK,
			ErrorKind:  s.ErrorKind,
			Counters:   s.Counters,
		})
	}
	return out
}
