package store

import (
	"context"
	"math"
	"sync"
	"testing"
)

// TestCosineSimilarity tests the cosine similarity function with known vectors.
func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
		epsilon  float64
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0, 0.001},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0, 0.001},
		{"opposite vectors", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0, 0.001},
		{"45 degree angle", []float32{1, 1}, []float32{1, 0}, 0.707, 0.01},
		{"different magnitude same direction", []float32{2, 0, 0}, []float32{10, 0, 0}, 1.0, 0.001},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0.0, 0.001},
		{"different lengths", []float32{1, 0}, []float32{1, 0, 0}, 0.0, 0.001},
		{"empty vectors", []float32{}, []float32{}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("CosineSimilarity() = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestRankHits_StableAndCapped(t *testing.T) {
	hits := []DocumentHit{
		{ID: "a", Similarity: 0.2},
		{ID: "b", Similarity: 0.9},
		{ID: "c", Similarity: 0.2},
		{ID: "d", Similarity: 0.5},
	}
	got := rankHits(hits, 3)
	want := []string{"b", "d", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %d hits, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("hit %d = %s, want %s", i, got[i].ID, want[i])
		}
	}

	all := rankHits([]DocumentHit{{ID: "a"}, {ID: "b"}}, 0)
	if len(all) != 2 {
		t.Errorf("n <= 0 should keep everything, got %d", len(all))
	}
}

func TestMemoryDocumentStore_Contract(t *testing.T) {
	runDocumentStoreContract(t, func(t *testing.T) writableDocuments {
		return NewMemoryDocumentStore(axisEmbedder{})
	})
}

func TestMemoryDocumentStore_CopiesInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore(axisEmbedder{})
	doc := Document{ID: "d", Content: "x", Metadata: map[string]string{"title": "T"}, Embedding: []float32{1, 0, 0}}
	if err := s.AddDocuments(ctx, []Document{doc}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	doc.Metadata["title"] = "changed"
	doc.Embedding[0] = 0

	hits, err := s.SimilaritySearch(ctx, "x", 1)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if hits[0].Metadata["title"] != "T" || hits[0].Similarity < 0.99 {
		t.Errorf("store shares caller memory: %+v", hits[0])
	}
}

func TestMemoryDocumentStore_ConcurrentAddAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore(axisEmbedder{})
	seedAxisDocuments(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			doc := Document{ID: "extra", Content: "z", Embedding: []float32{0, 0, 1}}
			if err := s.AddDocuments(ctx, []Document{doc}); err != nil {
				t.Errorf("AddDocuments failed: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := s.SimilaritySearch(ctx, "xy", 3); err != nil {
				t.Errorf("SimilaritySearch failed: %v", err)
			}
		}()
	}
	wg.Wait()
}
