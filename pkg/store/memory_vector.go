package store

import (
	"context"
	"sync"
)

// MemoryDocumentStore is an in-memory DocumentStore with brute-force cosine search.
// Note: This implementation does not persist documents across restarts.
type MemoryDocumentStore struct {
	embedder QueryEmbedder
	docs     map[string]Document
	order    []string
	mu       sync.RWMutex
}

// NewMemoryDocumentStore creates a new in-memory document store that embeds
// queries with embedder.
func NewMemoryDocumentStore(embedder QueryEmbedder) *MemoryDocumentStore {
	return &MemoryDocumentStore{
		embedder: embedder,
		docs:     make(map[string]Document),
	}
}

// AddDocuments adds or replaces documents.
func (m *MemoryDocumentStore) AddDocuments(ctx context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range docs {
		// Make a copy to avoid external mutations
		d.Embedding = append([]float32(nil), d.Embedding...)
		d.Metadata = copyMetadata(d.Metadata)
		if _, exists := m.docs[d.ID]; !exists {
			m.order = append(m.order, d.ID)
		}
		m.docs[d.ID] = d
	}
	return nil
}

// SimilaritySearch implements DocumentStore.
func (m *MemoryDocumentStore) SimilaritySearch(ctx context.Context, text string, n int) ([]DocumentHit, error) {
	query, err := embedQuery(ctx, m.embedder, text)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]DocumentHit, 0, len(m.order))
	for _, id := range m.order {
		d := m.docs[id]
		hits = append(hits, DocumentHit{
			ID:         d.ID,
			Content:    d.Content,
			Metadata:   copyMetadata(d.Metadata),
			Similarity: CosineSimilarity(query, d.Embedding),
		})
	}
	return rankHits(hits, n), nil
}

// Close is a no-op.
func (m *MemoryDocumentStore) Close() error {
	return nil
}
