package graphrag

import (
	"github.com/dan-solli/graphrag/pkg/search"
	"github.com/dan-solli/graphrag/pkg/store"
)

// State is a step of the retrieval state machine.
type State string

const (
	StateResolving           State = "RESOLVING"
	StateExpanding           State = "EXPANDING"
	StatePathFinding         State = "PATH_FINDING"
	StateRetrievingDocs      State = "RETRIEVING_DOCS"
	StateMerging             State = "MERGING"
	StateAssemblingContext   State = "ASSEMBLING_CONTEXT"
	StateGenerating          State = "GENERATING"
	StateExtractingCitations State = "EXTRACTING_CITATIONS"
	StateDone                State = "DONE"
	StateFailed              State = "FAILED"
)

// Mode names the retrieval strategy that produced a result.
type Mode string

const (
	ModeHybrid   Mode = "graphrag"
	ModeBaseline Mode = "baseline"
)

// StageFailure records a stage that fell back to a partial result.
type StageFailure struct {
	Stage   string           `json:"stage"`
	Kind    search.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// RetrievalResult is the outcome of one query. It is built by a single run
// and not modified afterwards.
type RetrievalResult struct {
	RunID     string                 `json:"run_id"`
	Mode      Mode                   `json:"mode"`
	Query     string                 `json:"query"`
	State     State                  `json:"state"`
	Entities  []search.Entity        `json:"entities"`
	Documents []search.Document      `json:"documents"`
	Paths     []search.KnowledgePath `json:"paths"`
	Answer    string                 `json:"answer"`
	Citations []search.Citation      `json:"citations"`
	// Trace holds one human-readable line per state transition.
	Trace    []string        `json:"trace"`
	Failures []StageFailure  `json:"failures,omitempty"`
	Timing   *OperationTrace `json:"timing,omitempty"`
}

// Degraded reports whether any stage fell back to a partial result.
func (r *RetrievalResult) Degraded() bool {
	return len(r.Failures) > 0
}

// Type re-exports for caller convenience

// Entity is re-exported from search package
type Entity = search.Entity

// Document is re-exported from search package
type Document = search.Document

// KnowledgePath is re-exported from search package
type KnowledgePath = search.KnowledgePath

// Citation is re-exported from search package
type Citation = search.Citation

// Node is re-exported from store package
type Node = store.Node

// Edge is re-exported from store package
type Edge = store.Edge
