package embeddings

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedClient memoizes embeddings by exact text in a bounded LRU.
type CachedClient struct {
	inner EmbeddingClient
	cache *lru.Cache[string, []float32]
}

// NewCachedClient wraps inner with an LRU of size entries.
func NewCachedClient(inner EmbeddingClient, size int) (*CachedClient, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedClient{inner: inner, cache: cache}, nil
}

// Embed serves cached texts locally and sends the misses in one batch.
// Cached vectors are copied in and out, so callers may modify results.
func (c *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = slices.Clone(v)
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d inputs", ErrMalformedResponse, len(vectors), len(missTexts))
	}
	for j, v := range vectors {
		out[missIdx[j]] = v
		c.cache.Add(missTexts[j], slices.Clone(v))
	}
	return out, nil
}

// EmbedOne generates an embedding for a single text
func (c *CachedClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, c, text)
}

// Len returns the number of cached embeddings.
func (c *CachedClient) Len() int {
	return c.cache.Len()
}
