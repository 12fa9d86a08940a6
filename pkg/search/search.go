// Package search implements the hybrid retrieval core: entity resolution,
// graph expansion, path finding, document location, merging, context
// assembly and citation extraction.
package search

import (
	"fmt"

	"github.com/dan-solli/graphrag/pkg/store"
)

// SourceType is the provenance tag of a retrieved document.
type SourceType string

const (
	// SourceGraphConnected marks documents found through expanded entities.
	SourceGraphConnected SourceType = "graph_connected"

	// SourceVectorSimilar marks documents found by plain query similarity.
	SourceVectorSimilar SourceType = "vector_similar"
)

// Entity is a graph node discovered during one query. Identity is NodeID.
type Entity struct {
	NodeID      string            `json:"node_id"`
	Name        string            `json:"display_name"`
	Labels      []string          `json:"type_labels"`
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	// GraphDistance is 0 for seeds and parent distance + 1 for expanded nodes.
	GraphDistance       int    `json:"graph_distance"`
	ArrivalRelationship string `json:"arrival_relationship,omitempty"`
	ArrivalSource       string `json:"arrival_source_entity,omitempty"`
	// Similarity is set only for seeds found by the semantic fallback.
	Similarity *float64 `json:"similarity,omitempty"`
}

// EntityFromNode builds a seed entity from a store node.
func EntityFromNode(n *store.Node) Entity {
	e := Entity{
		NodeID:      n.ID,
		Name:        n.DisplayName(),
		Labels:      append([]string(nil), n.Labels...),
		Description: n.Description,
	}
	if len(n.Attributes) > 0 {
		e.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			e.Attributes[k] = v
		}
	}
	return e
}

// PrimaryLabel returns the first type label, or "Unknown".
func (e Entity) PrimaryLabel() string {
	if len(e.Labels) == 0 {
		return "Unknown"
	}
	return e.Labels[0]
}

// EntityRef is a lightweight reference from a document to an entity it mentions.
type EntityRef struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Distance int    `json:"distance"`
}

// KnowledgePath is a 2-hop chain Start -r1-> Intermediate -r2-> End.
type KnowledgePath struct {
	Start         string    `json:"start_name"`
	Intermediate  string    `json:"intermediate_name"`
	End           string    `json:"end_name"`
	Relationships [2]string `json:"relationship_types"`
	Length        int       `json:"length"`
}

// String renders the path as "A —r1→ M —r2→ B".
func (p KnowledgePath) String() string {
	return fmt.Sprintf("%s —%s→ %s —%s→ %s", p.Start, p.Relationships[0], p.Intermediate, p.Relationships[1], p.End)
}

// Document is a retrieved document chunk with provenance.
type Document struct {
	ID                string            `json:"doc_id"`
	Content           string            `json:"content"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Similarity        *float64          `json:"similarity,omitempty"`
	SourceType        SourceType        `json:"source_type"`
	ConnectedEntities []EntityRef       `json:"connected_entities"`
}

// Title returns the metadata title, or "" when absent.
func (d Document) Title() string {
	return d.Metadata["title"]
}

func documentFromHit(h store.DocumentHit, source SourceType) Document {
	sim := h.Similarity
	return Document{
		ID:                h.ID,
		Content:           h.Content,
		Metadata:          h.Metadata,
		Similarity:        &sim,
		SourceType:        source,
		ConnectedEntities: []EntityRef{},
	}
}

// CitationKind distinguishes document citations from entity citations.
type CitationKind string

const (
	CitationDocument    CitationKind = "document"
	CitationGraphEntity CitationKind = "graph_entity"
)

// Citation is one source reference of an answer, unique by SourceTitle.
type Citation struct {
	SourceTitle string            `json:"source_title"`
	Kind        CitationKind      `json:"kind"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Defaults for the retrieval stages.
const (
	DefaultLexicalLimit    = 20
	DefaultSampleSize      = 50
	DefaultMaxSeeds        = 10
	DefaultSimilarityFloor = 0.3
	DefaultNeighborLimit   = 100
	DefaultPathLimit       = 20
	DefaultProbeEntities   = 10
)
