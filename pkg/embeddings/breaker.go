package embeddings

import (
	"context"

	"github.com/dan-solli/graphrag/pkg/resilience"
)

// BreakerClient routes every call through a circuit breaker.
type BreakerClient struct {
	inner   EmbeddingClient
	breaker *resilience.Breaker
}

// NewBreakerClient wraps inner with breaker.
func NewBreakerClient(inner EmbeddingClient, breaker *resilience.Breaker) *BreakerClient {
	return &BreakerClient{inner: inner, breaker: breaker}
}

// Embed implements EmbeddingClient.
func (c *BreakerClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return resilience.Do(ctx, c.breaker, func(ctx context.Context) ([][]float32, error) {
		return c.inner.Embed(ctx, texts)
	})
}

// EmbedOne implements EmbeddingClient.
func (c *BreakerClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, c, text)
}
