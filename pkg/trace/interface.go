// Package trace exports one sanitized record per retrieval run.
package trace

import (
	"context"
	"time"
)

// Exporter defines the interface for exporting run traces.
// Implementations must be safe for concurrent use.
type Exporter interface {
	// Export writes a trace record to the configured destination.
	Export(ctx context.Context, record *TraceRecord) error

	// Close flushes any buffered records and releases resources.
	Close() error
}

// TraceRecord is a sanitized run trace ready for export.
// It never carries query text, document content, answers or credentials.
type TraceRecord struct {
	// Timestamp is the run start time
	Timestamp time.Time `json:"timestamp"`

	// RunID uniquely identifies this run (for correlation with logs)
	RunID string `json:"runId"`

	// Operation is "run" (hybrid retrieval) or "baseline" (vector only)
	Operation string `json:"operation"`

	DurationMs int64 `json:"durationMs"`

	// State is the terminal state: DONE or FAILED
	State string `json:"state"`

	// Status is "ok", "degraded" (some stage fell back to a partial result) or "failed"
	Status string `json:"status"`

	Spans []SpanRecord `json:"spans"`

	// ErrorType classifies the first failure, if any.
	// Values: network, timeout, llm, database, validation, unknown
	ErrorType string `json:"errorType,omitempty"`

	// Counts holds result sizes: entities, paths, documents, citations
	Counts map[string]int `json:"counts,omitempty"`
}

// SpanRecord represents a single stage within a run.
type SpanRecord struct {
	// Name is the stage name (resolve, expand, paths, documents, merge, context, generate, citations)
	Name string `json:"name"`

	DurationMs int64 `json:"durationMs"`

	// OK is false when the stage degraded
	OK bool `json:"ok"`

	// ErrorKind is the retrieval error kind (store_unavailable, embedding_failure, ...)
	ErrorKind string `json:"errorKind,omitempty"`

	// Counters provides stage-specific sizes (e.g. seeds, rows, documents)
	Counters map[string]int64 `json:"counters,omitempty"`
}

// NoopExporter discards every record.
type NoopExporter struct{}

// Export does nothing.
func (NoopExporter) Export(ctx context.Context, record *TraceRecord) error {
	return nil
}

// Close does nothing.
func (NoopExporter) Close() error {
	return nil
}

// NewExporter returns a FileExporter writing to filePath, or a NoopExporter
// when filePath is empty.
func NewExporter(filePath string, opts ...FileExporterOption) (Exporter, error) {
	if filePath == "" {
		return NoopExporter{}, nil
	}
	return NewFileExporter(filePath, opts...)
}
