// Package embeddings turns text into fixed-length vectors.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// EmbeddingClient defines the interface for generating text embeddings.
// Implementations must be safe for concurrent use.
type EmbeddingClient interface {
	// Embed generates embeddings for multiple texts, one vector per input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedOne generates an embedding for a single text
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// ErrMalformedResponse indicates the embedding service answered with an
// unexpected shape (missing vectors, wrong count, bad index).
var ErrMalformedResponse = errors.New("malformed embedding response")

// StatusError is a non-success HTTP answer from an embedding service.
type StatusError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// embedOne adapts a batch Embed to a single text.
func embedOne(ctx context.Context, c EmbeddingClient, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, ErrMalformedResponse
	}
	return vectors[0], nil
}
