package search

import (
	"errors"
	"fmt"

	"github.com/dan-solli/graphrag/pkg/embeddings"
	"github.com/dan-solli/graphrag/pkg/llm"
	"github.com/dan-solli/graphrag/pkg/store"
)

// ErrorKind classifies failures of external collaborators.
type ErrorKind string

const (
	KindStoreUnavailable  ErrorKind = "store_unavailable"
	KindEmbeddingFailure  ErrorKind = "embedding_failure"
	KindGenerationFailure ErrorKind = "generation_failure"
	KindMalformedResponse ErrorKind = "malformed_response"
)

// StageError reports why a stage degraded. The stage's partial result is
// still returned alongside it.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Classify maps err to an ErrorKind, falling back to def for ordinary failures.
func Classify(def ErrorKind, err error) ErrorKind {
	switch {
	case errors.Is(err, store.ErrMalformedRecord),
		errors.Is(err, embeddings.ErrMalformedResponse),
		errors.Is(err, llm.ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, store.ErrQueryEmbedding):
		return KindEmbeddingFailure
	}
	return def
}

// KindOf returns the kind of a *StageError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func stageError(stage string, def ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: Classify(def, err), Err: err}
}
