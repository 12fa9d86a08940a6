package llm

import (
	"context"

	"github.com/dan-solli/graphrag/pkg/resilience"
)

// BreakerGenerator routes every call through a circuit breaker.
type BreakerGenerator struct {
	inner   Generator
	breaker *resilience.Breaker
}

// NewBreakerGenerator wraps inner with breaker.
func NewBreakerGenerator(inner Generator, breaker *resilience.Breaker) *BreakerGenerator {
	return &BreakerGenerator{inner: inner, breaker: breaker}
}

// Generate implements Generator.
func (g *BreakerGenerator) Generate(ctx context.Context, systemPrompt, query, contextText string) (string, error) {
	return resilience.Do(ctx, g.breaker, func(ctx context.Context) (string, error) {
		return g.inner.Generate(ctx, systemPrompt, query, contextText)
	})
}
