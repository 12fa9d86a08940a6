package store

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

// axisEmbedder embeds text by counting the letters x, y and z.
// "fail" returns an error and "blank" returns an empty vector.
type axisEmbedder struct{}

var errEmbedderDown = errors.New("embedding service unavailable")

func (axisEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	switch text {
	case "fail":
		return nil, errEmbedderDown
	case "blank":
		return nil, nil
	}
	return []float32{
		float32(strings.Count(text, "x")),
		float32(strings.Count(text, "y")),
		float32(strings.Count(text, "z")),
	}, nil
}

func (a axisEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := a.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type writableDocuments interface {
	DocumentStore
	DocumentWriter
}

func seedAxisDocuments(t *testing.T, s DocumentWriter) {
	t.Helper()
	docs := []Document{
		{ID: "dx", Content: "about x", Metadata: map[string]string{"title": "X"}, Embedding: []float32{1, 0, 0}},
		{ID: "dy", Content: "about y", Metadata: map[string]string{"title": "Y", "year": "2021"}, Embedding: []float32{0, 1, 0}},
		{ID: "dxy", Content: "about x and y", Embedding: []float32{1, 1, 0}},
	}
	if err := s.AddDocuments(context.Background(), docs); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
}

func runDocumentStoreContract(t *testing.T, open func(t *testing.T) writableDocuments) {
	ctx := context.Background()

	t.Run("ranks by similarity", func(t *testing.T) {
		s := open(t)
		seedAxisDocuments(t, s)

		hits, err := s.SimilaritySearch(ctx, "x", 3)
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if len(hits) != 3 {
			t.Fatalf("got %d hits, want 3", len(hits))
		}
		want := []string{"dx", "dxy", "dy"}
		for i, h := range hits {
			if h.ID != want[i] {
				t.Errorf("hit %d = %s, want %s", i, h.ID, want[i])
			}
		}
		if math.Abs(hits[0].Similarity-1) > 1e-6 {
			t.Errorf("top similarity = %f, want 1", hits[0].Similarity)
		}
		if math.Abs(hits[1].Similarity-1/math.Sqrt2) > 1e-6 {
			t.Errorf("second similarity = %f, want %f", hits[1].Similarity, 1/math.Sqrt2)
		}
		if hits[0].Content != "about x" || hits[0].Metadata["title"] != "X" {
			t.Errorf("fields not round-tripped: %+v", hits[0])
		}
	})

	t.Run("caps results", func(t *testing.T) {
		s := open(t)
		seedAxisDocuments(t, s)

		hits, err := s.SimilaritySearch(ctx, "y", 1)
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if len(hits) != 1 || hits[0].ID != "dy" {
			t.Errorf("unexpected hits %+v", hits)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		s := open(t)
		hits, err := s.SimilaritySearch(ctx, "x", 5)
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if len(hits) != 0 {
			t.Errorf("got %d hits from an empty store", len(hits))
		}
	})

	t.Run("upsert replaces", func(t *testing.T) {
		s := open(t)
		seedAxisDocuments(t, s)
		err := s.AddDocuments(ctx, []Document{{ID: "dx", Content: "now about z", Embedding: []float32{0, 0, 1}}})
		if err != nil {
			t.Fatalf("AddDocuments failed: %v", err)
		}
		hits, err := s.SimilaritySearch(ctx, "z", 1)
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if len(hits) != 1 || hits[0].ID != "dx" || hits[0].Content != "now about z" {
			t.Errorf("unexpected hits %+v", hits)
		}
	})

	t.Run("embedding failures are wrapped", func(t *testing.T) {
		s := open(t)
		seedAxisDocuments(t, s)

		_, err := s.SimilaritySearch(ctx, "fail", 3)
		if !errors.Is(err, ErrQueryEmbedding) || !errors.Is(err, errEmbedderDown) {
			t.Errorf("expected wrapped embedding error, got %v", err)
		}
		_, err = s.SimilaritySearch(ctx, "blank", 3)
		if !errors.Is(err, ErrQueryEmbedding) {
			t.Errorf("expected ErrQueryEmbedding for an empty vector, got %v", err)
		}
	})
}
