package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// SQLiteDocumentStore implements DocumentStore and DocumentWriter on SQLite.
//
// Embeddings are stored as little-endian float32 BLOBs next to the content.
// Search is an exact scan: every row is scored with CosineSimilarity and
// the top n are returned.
type SQLiteDocumentStore struct {
	db       *sql.DB
	embedder QueryEmbedder
	ownsDB   bool
}

// NewSQLiteDocumentStore creates a document store on a shared database
// connection, typically SQLiteGraphStore.DB(). Close does not close db.
func NewSQLiteDocumentStore(db *sql.DB, embedder QueryEmbedder) (*SQLiteDocumentStore, error) {
	s := &SQLiteDocumentStore{db: db, embedder: embedder}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize document schema: %w", err)
	}
	return s, nil
}

// OpenSQLiteDocumentStore opens a dedicated database for documents.
func OpenSQLiteDocumentStore(driver, dbPath string, embedder QueryEmbedder) (*SQLiteDocumentStore, error) {
	db, err := OpenSQLite(driver, dbPath)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteDocumentStore(db, embedder)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

func (s *SQLiteDocumentStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`)
	return err
}

// AddDocuments adds or replaces documents in a single transaction.
func (s *SQLiteDocumentStore) AddDocuments(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO documents (id, content, metadata, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if len(d.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", d.ID)
		}
		var metaJSON []byte
		if d.Metadata != nil {
			if metaJSON, err = json.Marshal(d.Metadata); err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Content, metaJSON, serializeEmbedding(d.Embedding)); err != nil {
			return fmt.Errorf("failed to add document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// SimilaritySearch implements DocumentStore.
func (s *SQLiteDocumentStore) SimilaritySearch(ctx context.Context, text string, n int) ([]DocumentHit, error) {
	query, err := embedQuery(ctx, s.embedder, text)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var hits []DocumentHit
	for rows.Next() {
		var hit DocumentHit
		var metaJSON, blob []byte
		if err := rows.Scan(&hit.ID, &hit.Content, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		vec := deserializeEmbedding(blob)
		if vec == nil {
			return nil, fmt.Errorf("document %s embedding: %w", hit.ID, ErrMalformedRecord)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &hit.Metadata); err != nil {
				return nil, fmt.Errorf("document %s metadata: %w", hit.ID, ErrMalformedRecord)
			}
		}
		hit.Similarity = CosineSimilarity(query, vec)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return rankHits(hits, n), nil
}

// Count returns the number of stored documents.
func (s *SQLiteDocumentStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteDocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying database handle.
func (s *SQLiteDocumentStore) DB() *sql.DB {
	return s.db
}

// Close closes the database only when the store opened it.
func (s *SQLiteDocumentStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// serializeEmbedding converts a float32 slice to a binary BLOB for storage.
// Uses little-endian encoding for consistency across platforms.
func serializeEmbedding(embedding []float32) []byte {
	blob := make([]byte, len(embedding)*4)
	for i, val := range embedding {
		binary.LittleEndian.PutUint32(blob[i*4:(i+1)*4], math.Float32bits(val))
	}
	return blob
}

// deserializeEmbedding converts a binary BLOB back to a float32 slice.
// Returns nil if the data is malformed (empty or not a multiple of 4 bytes).
func deserializeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return embedding
}
