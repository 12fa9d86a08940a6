// Package llm provides text-generation clients that answer a query from a prepared context.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Generator turns (system prompt, query, context) into a natural-language answer.
// Implementations must be safe for concurrent use and must honor ctx deadlines.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, query, contextText string) (string, error)
}

// Options are the sampling settings shared by all generators.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// ErrMalformedResponse indicates the service answered with an unexpected shape.
var ErrMalformedResponse = errors.New("malformed generation response")

// ErrEmptyCompletion indicates the service answered without any text.
var ErrEmptyCompletion = fmt.Errorf("%w: no completion text returned", ErrMalformedResponse)

// StatusError is a non-success HTTP answer from a generation service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// Retryable reports whether the same request may succeed later: rate
// limits and server errors are retryable, rejected requests are not.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// UserMessage renders the single user turn sent with every request.
func UserMessage(query, contextText string) string {
	return fmt.Sprintf("Query: %s\n\nContext:\n%s", query, contextText)
}
