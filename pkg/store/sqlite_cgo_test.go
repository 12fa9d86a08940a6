//go:build cgo

package store

import "testing"

func TestSQLiteGraphStore_CgoDriverContract(t *testing.T) {
	runGraphStoreContract(t, func(t *testing.T) writableGraph {
		return openTestSQLiteGraph(t, CgoSQLiteDriver)
	})
}

func TestSQLiteDocumentStore_CgoDriver(t *testing.T) {
	s := openTestDocumentStore(t, CgoSQLiteDriver, &axisEmbedder{})
	seedAxisDocuments(t, s)
	hits, err := s.SimilaritySearch(t.Context(), "x", 1)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "dx" {
		t.Errorf("unexpected hits %+v", hits)
	}
}
