package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dan-solli/graphrag/pkg/chunker"
)

// BatchEmbedder embeds many texts in one call. embeddings.EmbeddingClient satisfies it.
type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentIndexer chunks, embeds and stores source documents.
type DocumentIndexer struct {
	Chunker  chunker.Chunker
	Embedder BatchEmbedder
	Writer   DocumentWriter
}

// SourceDocument is a document before chunking.
type SourceDocument struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Index splits each source into chunks and writes them. A source that fits
// in one chunk keeps its ID; otherwise chunk IDs are "<id>#<index>" and carry
// parent_id and chunk_index metadata. Returns the number of chunks written.
func (ix *DocumentIndexer) Index(ctx context.Context, sources []SourceDocument) (int, error) {
	var docs []Document
	var texts []string
	for _, src := range sources {
		if src.ID == "" {
			return 0, fmt.Errorf("source document without id")
		}
		chunks := ix.Chunker.Chunk(src.Content)
		for _, c := range chunks {
			d := Document{ID: src.ID, Content: c.Text, Metadata: copyMetadata(src.Metadata)}
			if len(chunks) > 1 {
				d.ID = src.ID + "#" + strconv.Itoa(c.Index)
				if d.Metadata == nil {
					d.Metadata = make(map[string]string)
				}
				d.Metadata["parent_id"] = src.ID
				d.Metadata["chunk_index"] = strconv.Itoa(c.Index)
			}
			docs = append(docs, d)
			texts = append(texts, c.Text)
		}
	}
	if len(docs) == 0 {
		return 0, nil
	}

	vectors, err := ix.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks: %w", len(vectors), len(docs), ErrMalformedRecord)
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	if err := ix.Writer.AddDocuments(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
