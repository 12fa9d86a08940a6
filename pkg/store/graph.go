// Package store provides the graph and document store adapters the retrieval engine reads from.
package store

import (
	"context"
	"errors"
	"time"
)

// Node is a property-graph node reduced to a fixed attribute schema.
// Name and Title are both optional; at least one is expected for display.
type Node struct {
	ID          string            // Store-assigned identifier
	Name        string            // Entity name (may be empty)
	Title       string            // Title, used by document-like nodes (may be empty)
	Description string            // Free-text description
	Labels      []string          // Type labels (Company, Person, Paper, ...)
	Attributes  map[string]string // Remaining scalar properties
	CreatedAt   time.Time         // Timestamp of creation
}

// DisplayName returns Name when present, otherwise Title.
func (n *Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Title
}

// HasName reports whether the node can be shown to a user by name or title.
func (n *Node) HasName() bool {
	return n.Name != "" || n.Title != ""
}

// Edge represents a relationship between two nodes. Relation is the
// store's free-form relationship type (COLLABORATES_WITH, AUTHORED, ...).
type Edge struct {
	ID        string
	SourceID  string
	Relation  string
	TargetID  string
	Weight    float64
	CreatedAt time.Time
}

// Neighbor is one row of a batched neighborhood query: Node was reached
// from the frontier node FromID over an edge of type Relation.
type Neighbor struct {
	FromID   string
	FromName string
	Relation string
	Node     *Node
}

// TwoHopPath is a chain Start -Relations[0]- Intermediate -Relations[1]- End.
type TwoHopPath struct {
	Start        *Node
	Intermediate *Node
	End          *Node
	Relations    [2]string
}

// GraphStore is the read-only query surface over the property graph.
// All traversal treats edges as undirected. Implementations must be safe
// for concurrent use.
type GraphStore interface {
	// LookupByText returns nodes whose name, title or description contains
	// phrase, or whose name or title contains any of keywords. Matching is
	// case-insensitive; phrase and keywords are expected lowercased.
	LookupByText(ctx context.Context, phrase string, keywords []string, limit int) ([]*Node, error)

	// SampleNodes returns up to limit nodes that have a name or a title.
	SampleNodes(ctx context.Context, limit int) ([]*Node, error)

	// Neighbors returns the direct neighbors of every id in ids, in one
	// batched query, capped at limit rows.
	Neighbors(ctx context.Context, ids []string, limit int) ([]Neighbor, error)

	// TwoHopPaths returns simple 2-hop chains whose endpoints are both in ids
	// and where Start.ID < End.ID, capped at limit.
	TwoHopPaths(ctx context.Context, ids []string, limit int) ([]TwoHopPath, error)

	// Close releases any resources held by the store.
	Close() error
}

// GraphWriter is implemented by stores that can be populated locally.
type GraphWriter interface {
	// AddNode adds or replaces a node. An empty ID is filled with a UUID.
	AddNode(ctx context.Context, node *Node) error
	// AddEdge adds or replaces an edge. An empty ID is filled with a UUID.
	AddEdge(ctx context.Context, edge *Edge) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrNodeNotFound indicates that an edge references a node that does not exist.
var ErrNodeNotFound = errors.New("node not found")

// ErrMalformedRecord indicates that a backend returned a row of an unexpected shape.
var ErrMalformedRecord = errors.New("malformed store record")

// ErrQueryEmbedding wraps failures to embed the text of a similarity search.
var ErrQueryEmbedding = errors.New("query embedding failed")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")
