package store

import (
	"context"
	"fmt"
	"math"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jGraphStore implements GraphStore against a Neo4j database over Bolt.
// Node IDs are Neo4j element IDs; relationships are matched undirected.
type Neo4jGraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jGraphStore connects to uri and verifies connectivity.
// An empty database selects the server default.
func NewNeo4jGraphStore(ctx context.Context, uri, user, password, database string) (*Neo4jGraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	return &Neo4jGraphStore{driver: driver, database: database}, nil
}

const (
	cypherLookup = `
		MATCH (n)
		WHERE (n.name IS NOT NULL AND toLower(n.name) CONTAINS $phrase)
		   OR (n.title IS NOT NULL AND toLower(n.title) CONTAINS $phrase)
		   OR (n.description IS NOT NULL AND toLower(n.description) CONTAINS $phrase)
		   OR any(k IN $keywords WHERE
		          (n.name IS NOT NULL AND toLower(n.name) CONTAINS k)
		       OR (n.title IS NOT NULL AND toLower(n.title) CONTAINS k))
		RETURN n
		LIMIT $limit`

	cypherSample = `
		MATCH (n)
		WHERE n.name IS NOT NULL OR n.title IS NOT NULL
		RETURN n
		LIMIT $limit`

	cypherNeighbors = `
		MATCH (f)-[r]-(n)
		WHERE elementId(f) IN $ids
		RETURN elementId(f) AS from_id, coalesce(f.name, f.title, '') AS from_name, type(r) AS rel, n
		LIMIT $limit`

	cypherPaths = `
		MATCH (a)-[r1]-(m)-[r2]-(b)
		WHERE elementId(a) IN $ids AND elementId(b) IN $ids
		  AND elementId(a) < elementId(b)
		  AND a <> m AND b <> m
		RETURN a, m, b, type(r1) AS rel1, type(r2) AS rel2
		LIMIT $limit`
)

// LookupByText implements GraphStore.
func (s *Neo4jGraphStore) LookupByText(ctx context.Context, phrase string, keywords []string, limit int) ([]*Node, error) {
	if keywords == nil {
		keywords = []string{}
	}
	records, err := s.read(ctx, cypherLookup, map[string]any{
		"phrase":   phrase,
		"keywords": keywords,
		"limit":    cypherLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("lookup by text: %w", err)
	}
	return nodesFromRecords(records, "n")
}

// SampleNodes implements GraphStore.
func (s *Neo4jGraphStore) SampleNodes(ctx context.Context, limit int) ([]*Node, error) {
	records, err := s.read(ctx, cypherSample, map[string]any{"limit": cypherLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("sample nodes: %w", err)
	}
	return nodesFromRecords(records, "n")
}

// Neighbors implements GraphStore.
func (s *Neo4jGraphStore) Neighbors(ctx context.Context, ids []string, limit int) ([]Neighbor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	records, err := s.read(ctx, cypherNeighbors, map[string]any{"ids": ids, "limit": cypherLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}

	out := make([]Neighbor, 0, len(records))
	for _, rec := range records {
		fromID, err := recordString(rec, "from_id")
		if err != nil {
			return nil, err
		}
		fromName, err := recordString(rec, "from_name")
		if err != nil {
			return nil, err
		}
		rel, err := recordString(rec, "rel")
		if err != nil {
			return nil, err
		}
		node, err := recordNode(rec, "n")
		if err != nil {
			return nil, err
		}
		out = append(out, Neighbor{FromID: fromID, FromName: fromName, Relation: rel, Node: node})
	}
	return out, nil
}

// TwoHopPaths implements GraphStore.
func (s *Neo4jGraphStore) TwoHopPaths(ctx context.Context, ids []string, limit int) ([]TwoHopPath, error) {
	if len(ids) < 2 {
		return nil, nil
	}
	records, err := s.read(ctx, cypherPaths, map[string]any{"ids": ids, "limit": cypherLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("two hop paths: %w", err)
	}

	out := make([]TwoHopPath, 0, len(records))
	for _, rec := range records {
		var p TwoHopPath
		if p.Start, err = recordNode(rec, "a"); err != nil {
			return nil, err
		}
		if p.Intermediate, err = recordNode(rec, "m"); err != nil {
			return nil, err
		}
		if p.End, err = recordNode(rec, "b"); err != nil {
			return nil, err
		}
		if p.Relations[0], err = recordString(rec, "rel1"); err != nil {
			return nil, err
		}
		if p.Relations[1], err = recordString(rec, "rel2"); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Ping verifies the server is reachable.
func (s *Neo4jGraphStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close closes the driver and its connection pool.
func (s *Neo4jGraphStore) Close() error {
	return s.driver.Close(context.Background())
}

func (s *Neo4jGraphStore) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, ok := result.([]*neo4j.Record)
	if !ok {
		return nil, ErrMalformedRecord
	}
	return records, nil
}

func nodesFromRecords(records []*neo4j.Record, key string) ([]*Node, error) {
	nodes := make([]*Node, 0, len(records))
	for _, rec := range records {
		n, err := recordNode(rec, key)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func recordString(rec *neo4j.Record, key string) (string, error) {
	v, ok := rec.Get(key)
	if !ok {
		return "", fmt.Errorf("missing %q: %w", key, ErrMalformedRecord)
	}
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q is %T: %w", key, v, ErrMalformedRecord)
	}
	return s, nil
}

func recordNode(rec *neo4j.Record, key string) (*Node, error) {
	v, ok := rec.Get(key)
	if !ok {
		return nil, fmt.Errorf("missing %q: %w", key, ErrMalformedRecord)
	}
	n, ok := v.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("%q is %T: %w", key, v, ErrMalformedRecord)
	}
	return nodeFromProps(n.ElementId, n.Labels, n.Props), nil
}

// nodeFromProps maps an open property bag onto Node. Known keys fill the
// typed fields; other scalar properties become string attributes.
func nodeFromProps(id string, labels []string, props map[string]any) *Node {
	node := &Node{ID: id, Labels: append([]string(nil), labels...)}
	for k, v := range props {
		switch k {
		case "name":
			node.Name = propString(v)
		case "title":
			node.Title = propString(v)
		case "description":
			node.Description = propString(v)
		default:
			switch v.(type) {
			case nil, []any, map[string]any:
				continue
			}
			if node.Attributes == nil {
				node.Attributes = make(map[string]string)
			}
			node.Attributes[k] = propString(v)
		}
	}
	return node
}

// cypherLimit maps a non-positive limit to "no limit".
func cypherLimit(limit int) int {
	if limit <= 0 {
		return math.MaxInt32
	}
	return limit
}

func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
