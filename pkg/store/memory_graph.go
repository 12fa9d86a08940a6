package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGraphStore is an in-memory GraphStore. Query results follow node
// and edge insertion order, which keeps tests deterministic.
// Note: This implementation does not persist anything across restarts.
type MemoryGraphStore struct {
	mu        sync.RWMutex
	nodes     map[string]*Node
	nodeOrder []string
	edges     []*Edge
	adjacency map[string][]int // node id -> indexes into edges
	closed    bool
}

// NewMemoryGraphStore creates an empty in-memory graph store.
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string][]int),
	}
}

// AddNode adds or replaces a node.
func (m *MemoryGraphStore) AddNode(ctx context.Context, node *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}
	if _, exists := m.nodes[node.ID]; !exists {
		m.nodeOrder = append(m.nodeOrder, node.ID)
	}
	m.nodes[node.ID] = cloneNode(node)
	return nil
}

// AddEdge adds an edge between two existing nodes.
func (m *MemoryGraphStore) AddEdge(ctx context.Context, edge *Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.nodes[edge.SourceID]; !ok {
		return fmt.Errorf("source %q: %w", edge.SourceID, ErrNodeNotFound)
	}
	if _, ok := m.nodes[edge.TargetID]; !ok {
		return fmt.Errorf("target %q: %w", edge.TargetID, ErrNodeNotFound)
	}
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}

	e := *edge
	idx := len(m.edges)
	m.edges = append(m.edges, &e)
	m.adjacency[e.SourceID] = append(m.adjacency[e.SourceID], idx)
	if e.TargetID != e.SourceID {
		m.adjacency[e.TargetID] = append(m.adjacency[e.TargetID], idx)
	}
	return nil
}

// LookupByText implements GraphStore.
func (m *MemoryGraphStore) LookupByText(ctx context.Context, phrase string, keywords []string, limit int) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	var out []*Node
	for _, id := range m.nodeOrder {
		if limit > 0 && len(out) >= limit {
			break
		}
		n := m.nodes[id]
		if matchesText(n, phrase, keywords) {
			out = append(out, cloneNode(n))
		}
	}
	return out, nil
}

// SampleNodes implements GraphStore.
func (m *MemoryGraphStore) SampleNodes(ctx context.Context, limit int) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	var out []*Node
	for _, id := range m.nodeOrder {
		if limit > 0 && len(out) >= limit {
			break
		}
		if n := m.nodes[id]; n.HasName() {
			out = append(out, cloneNode(n))
		}
	}
	return out, nil
}

// Neighbors implements GraphStore.
func (m *MemoryGraphStore) Neighbors(ctx context.Context, ids []string, limit int) ([]Neighbor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	var out []Neighbor
	for _, id := range ids {
		from, ok := m.nodes[id]
		if !ok {
			continue
		}
		for _, idx := range m.adjacency[id] {
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
			e := m.edges[idx]
			other := e.TargetID
			if other == id {
				other = e.SourceID
			}
			out = append(out, Neighbor{
				FromID:   id,
				FromName: from.DisplayName(),
				Relation: e.Relation,
				Node:     cloneNode(m.nodes[other]),
			})
		}
	}
	return out, nil
}

// TwoHopPaths implements GraphStore.
func (m *MemoryGraphStore) TwoHopPaths(ctx context.Context, ids []string, limit int) ([]TwoHopPath, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	var out []TwoHopPath
	for _, a := range ids {
		if _, ok := m.nodes[a]; !ok {
			continue
		}
		for _, i1 := range m.adjacency[a] {
			e1 := m.edges[i1]
			mid := otherEnd(e1, a)
			if mid == a {
				continue
			}
			for _, i2 := range m.adjacency[mid] {
				if i2 == i1 {
					continue
				}
				e2 := m.edges[i2]
				b := otherEnd(e2, mid)
				if b == mid || !inSet[b] || !(a < b) {
					continue
				}
				if limit > 0 && len(out) >= limit {
					return out, nil
				}
				out = append(out, TwoHopPath{
					Start:        cloneNode(m.nodes[a]),
					Intermediate: cloneNode(m.nodes[mid]),
					End:          cloneNode(m.nodes[b]),
					Relations:    [2]string{e1.Relation, e2.Relation},
				})
			}
		}
	}
	return out, nil
}

// NodeCount returns the number of stored nodes.
func (m *MemoryGraphStore) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Close marks the store closed.
func (m *MemoryGraphStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func otherEnd(e *Edge, id string) string {
	if e.SourceID == id {
		return e.TargetID
	}
	return e.SourceID
}

// matchesText applies the lexical lookup rule shared by all backends.
func matchesText(n *Node, phrase string, keywords []string) bool {
	name := strings.ToLower(n.Name)
	title := strings.ToLower(n.Title)
	if phrase != "" {
		if strings.Contains(name, phrase) || strings.Contains(title, phrase) ||
			strings.Contains(strings.ToLower(n.Description), phrase) {
			return true
		}
	}
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(name, k) || strings.Contains(title, k) {
			return true
		}
	}
	return false
}

func cloneNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Labels != nil {
		c.Labels = append([]string(nil), n.Labels...)
	}
	if n.Attributes != nil {
		c.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}
