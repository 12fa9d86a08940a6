package store

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Document is a stored, embedded document chunk.
type Document struct {
	ID        string            // Globally unique across all document stores
	Content   string            // Chunk text
	Metadata  map[string]string // title, authors, year, venue, doi, ...
	Embedding []float32         // Vector embedding of Content
}

// DocumentHit is one result of a similarity search.
type DocumentHit struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float64 // Cosine similarity in [-1, 1]
}

// DocumentStore is the nearest-neighbor query surface over embedded documents.
// Implementations embed the query text themselves and must be safe for
// concurrent use.
type DocumentStore interface {
	// SimilaritySearch returns up to n documents ordered by descending similarity to text.
	// Embedding failures are wrapped with ErrQueryEmbedding.
	SimilaritySearch(ctx context.Context, text string, n int) ([]DocumentHit, error)

	// Close releases any resources held by the store.
	Close() error
}

// DocumentWriter is implemented by document stores that accept new documents.
type DocumentWriter interface {
	// AddDocuments adds or replaces documents. Each document must carry its embedding.
	AddDocuments(ctx context.Context, docs []Document) error
}

// QueryEmbedder embeds a single text. embeddings.EmbeddingClient satisfies it.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

func embedQuery(ctx context.Context, e QueryEmbedder, text string) ([]float32, error) {
	vec, err := e.EmbedOne(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrQueryEmbedding)
	}
	return vec, nil
}

// rankHits sorts hits by similarity (descending, stable) and keeps the top n.
func rankHits(hits []DocumentHit, n int) []DocumentHit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if n > 0 && n < len(hits) {
		hits = hits[:n]
	}
	return hits
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction,
// 0 means orthogonal, and -1 means opposite direction.
// Mismatched lengths and zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push identical vectors slightly past 1.
	return math.Max(-1, math.Min(1, sim))
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
