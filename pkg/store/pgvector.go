package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq" // registers the "postgres" driver
	"github.com/pgvector/pgvector-go"
)

// PgVectorDocumentStore implements DocumentStore on PostgreSQL with the
// pgvector extension. Similarity is 1 - cosine distance.
type PgVectorDocumentStore struct {
	db       *sql.DB
	embedder QueryEmbedder
}

// NewPgVectorDocumentStore connects to dsn and ensures the documents table
// exists with an embedding column of embeddingDim dimensions.
func NewPgVectorDocumentStore(ctx context.Context, dsn string, embeddingDim int, embedder QueryEmbedder) (*PgVectorDocumentStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PgVectorDocumentStore{db: db, embedder: embedder}
	if err := s.initSchema(ctx, embeddingDim); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize document schema: %w", err)
	}
	return s, nil
}

func (s *PgVectorDocumentStore) initSchema(ctx context.Context, dim int) error {
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		)`, dim))
	return err
}

// AddDocuments upserts documents.
func (s *PgVectorDocumentStore) AddDocuments(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, d := range docs {
		metaJSON, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (id, content, metadata, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
			d.ID, d.Content, metaJSON, pgvector.NewVector(d.Embedding))
		if err != nil {
			return fmt.Errorf("failed to add document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// SimilaritySearch implements DocumentStore.
func (s *PgVectorDocumentStore) SimilaritySearch(ctx context.Context, text string, n int) ([]DocumentHit, error) {
	query, err := embedQuery(ctx, s.embedder, text)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(query), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var hits []DocumentHit
	for rows.Next() {
		var hit DocumentHit
		var metaJSON []byte
		if err := rows.Scan(&hit.ID, &hit.Content, &metaJSON, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &hit.Metadata); err != nil {
				return nil, fmt.Errorf("document %s metadata: %w", hit.ID, ErrMalformedRecord)
			}
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return hits, nil
}

// Ping verifies the database is reachable.
func (s *PgVectorDocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *PgVectorDocumentStore) Close() error {
	return s.db.Close()
}
