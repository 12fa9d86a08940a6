package graphrag

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/dan-solli/graphrag/pkg/resilience"
	"github.com/dan-solli/graphrag/pkg/search"
)

// Error type constants for classification
const (
	ErrTypeNetwork    = "network"
	ErrTypeTimeout    = "timeout"
	ErrTypeLLM        = "llm"
	ErrTypeDatabase   = "database"
	ErrTypeValidation = "validation"
	ErrTypeUnknown    = "unknown"
)

// ClassifyError inspects an error and returns a coarse type used to group
// failures in traces and metrics.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	lower := strings.ToLower(err.Error())

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") {
		return ErrTypeTimeout
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) || errors.Is(err, resilience.ErrCircuitOpen) {
		return ErrTypeNetwork
	}
	if strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "eof") {
		return ErrTypeNetwork
	}

	switch search.KindOf(err) {
	case search.KindGenerationFailure, search.KindEmbeddingFailure:
		return ErrTypeLLM
	}
	if strings.Contains(lower, "api error") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "embedding") ||
		strings.Contains(lower, "generation") ||
		strings.Contains(lower, "anthropic") ||
		strings.Contains(lower, "openai") ||
		strings.Contains(lower, "ollama") ||
		strings.Contains(lower, "model") && strings.Contains(lower, "not found") {
		return ErrTypeLLM
	}

	if search.KindOf(err) == search.KindStoreUnavailable ||
		strings.Contains(lower, "sql") ||
		strings.Contains(lower, "database") ||
		strings.Contains(lower, "neo4j") ||
		strings.Contains(lower, "pq:") ||
		strings.Contains(lower, "store closed") {
		return ErrTypeDatabase
	}

	if strings.Contains(lower, "validation") ||
		strings.Contains(lower, "invalid") ||
		strings.Contains(lower, "required") ||
		strings.Contains(lower, "cannot be empty") ||
		strings.Contains(lower, "must be") {
		return ErrTypeValidation
	}

	return ErrTypeUnknown
}
