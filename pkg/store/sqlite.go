package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultSQLiteDriver is the pure-Go driver registered by modernc.org/sqlite.
const DefaultSQLiteDriver = "sqlite"

// sqliteDrivers lists the database/sql driver names usable for SQLite stores.
// Builds with cgo enabled add "sqlite3" (mattn/go-sqlite3).
var sqliteDrivers = map[string]bool{DefaultSQLiteDriver: true}

// OpenSQLite opens a SQLite database with the named driver ("" selects the default).
// The dbPath can be a file path or ":memory:" for an in-memory database.
func OpenSQLite(driver, dbPath string) (*sql.DB, error) {
	if driver == "" {
		driver = DefaultSQLiteDriver
	}
	if !sqliteDrivers[driver] {
		return nil, fmt.Errorf("sqlite driver %q is not available in this build", driver)
	}
	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// SQLiteGraphStore implements GraphStore and GraphWriter using SQLite.
type SQLiteGraphStore struct {
	db *sql.DB
}

// NewSQLiteGraphStore creates a SQLite-backed graph store using the default driver.
// Creates tables and indexes if they don't exist.
func NewSQLiteGraphStore(dbPath string) (*SQLiteGraphStore, error) {
	db, err := OpenSQLite(DefaultSQLiteDriver, dbPath)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteGraphStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteGraphStoreFromDB wraps an already opened database.
func NewSQLiteGraphStoreFromDB(db *sql.DB) (*SQLiteGraphStore, error) {
	s := &SQLiteGraphStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// DB exposes the underlying database so a document store can share it.
func (s *SQLiteGraphStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteGraphStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		-- Lowercased with Go's Unicode folding; SQLite lower() only folds ASCII.
		name_fold TEXT NOT NULL DEFAULT '',
		title_fold TEXT NOT NULL DEFAULT '',
		description_fold TEXT NOT NULL DEFAULT '',
		labels TEXT,
		attributes TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		relation TEXT NOT NULL,
		target_id TEXT NOT NULL,
		weight REAL DEFAULT 1.0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES nodes(id),
		FOREIGN KEY (target_id) REFERENCES nodes(id)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database is reachable.
func (s *SQLiteGraphStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddNode adds or updates a node in the graph.
func (s *SQLiteGraphStore) AddNode(ctx context.Context, node *Node) error {
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}

	labelsJSON, err := json.Marshal(node.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	var attrsJSON []byte
	if node.Attributes != nil {
		attrsJSON, err = json.Marshal(node.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes: %w", err)
		}
	}

	query := `
		INSERT OR REPLACE INTO nodes (id, name, title, description, name_fold, title_fold, description_fold, labels, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		node.ID,
		node.Name,
		node.Title,
		node.Description,
		strings.ToLower(node.Name),
		strings.ToLower(node.Title),
		strings.ToLower(node.Description),
		labelsJSON,
		attrsJSON,
		node.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add node: %w", err)
	}
	return nil
}

// AddEdge adds or updates an edge between two existing nodes.
func (s *SQLiteGraphStore) AddEdge(ctx context.Context, edge *Edge) error {
	for _, end := range []struct{ role, id string }{{"source", edge.SourceID}, {"target", edge.TargetID}} {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, end.id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %q: %w", end.role, end.id, ErrNodeNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check %s node: %w", end.role, err)
		}
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

	query := `
		INSERT OR REPLACE INTO edges (id, source_id, relation, target_id, weight, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		edge.ID,
		edge.SourceID,
		edge.Relation,
		edge.TargetID,
		edge.Weight,
		edge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add edge: %w", err)
	}
	return nil
}

const nodeColumns = "n.id, n.name, n.title, n.description, n.labels, n.attributes, n.created_at"

// LookupByText implements GraphStore.
func (s *SQLiteGraphStore) LookupByText(ctx context.Context, phrase string, keywords []string, limit int) ([]*Node, error) {
	var conds []string
	var args []interface{}
	if phrase != "" {
		conds = append(conds, "instr(n.name_fold, ?) > 0 OR instr(n.title_fold, ?) > 0 OR instr(n.description_fold, ?) > 0")
		args = append(args, phrase, phrase, phrase)
	}
	for _, k := range keywords {
		if k == "" {
			continue
		}
		conds = append(conds, "instr(n.name_fold, ?) > 0 OR instr(n.title_fold, ?) > 0")
		args = append(args, k, k)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM nodes n WHERE %s ORDER BY n.created_at, n.id LIMIT ?`,
		nodeColumns, strings.Join(conds, " OR "))
	args = append(args, sqlLimit(limit))

	return s.queryNodes(ctx, query, args...)
}

// SampleNodes implements GraphStore.
func (s *SQLiteGraphStore) SampleNodes(ctx context.Context, limit int) ([]*Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM nodes n WHERE n.name <> '' OR n.title <> '' ORDER BY n.created_at, n.id LIMIT ?`, nodeColumns)
	return s.queryNodes(ctx, query, sqlLimit(limit))
}

// Neighbors implements GraphStore with a single query over both edge directions.
func (s *SQLiteGraphStore) Neighbors(ctx context.Context, ids []string, limit int) ([]Neighbor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, inArgs := inClause(ids)

	query := fmt.Sprintf(`
		SELECT f.id, f.name, f.title, x.relation, %[1]s
		FROM (
			SELECT e.source_id AS from_id, e.target_id AS to_id, e.relation, e.created_at, e.id AS eid
			FROM edges e WHERE e.source_id IN (%[2]s)
			UNION ALL
			SELECT e.target_id, e.source_id, e.relation, e.created_at, e.id
			FROM edges e WHERE e.target_id IN (%[2]s) AND e.source_id <> e.target_id
		) x
		JOIN nodes f ON f.id = x.from_id
		JOIN nodes n ON n.id = x.to_id
		ORDER BY x.created_at, x.eid
		LIMIT ?
	`, nodeColumns, in)

	args := append(append(append([]interface{}{}, inArgs...), inArgs...), sqlLimit(limit))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var nb Neighbor
		var fromName, fromTitle string
		node, err := scanNode(rows, &nb.FromID, &fromName, &fromTitle, &nb.Relation)
		if err != nil {
			return nil, err
		}
		nb.FromName = fromName
		if nb.FromName == "" {
			nb.FromName = fromTitle
		}
		nb.Node = node
		out = append(out, nb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating neighbors: %w", err)
	}
	return out, nil
}

// TwoHopPaths implements GraphStore using an undirected adjacency view.
func (s *SQLiteGraphStore) TwoHopPaths(ctx context.Context, ids []string, limit int) ([]TwoHopPath, error) {
	if len(ids) < 2 {
		return nil, nil
	}
	in, inArgs := inClause(ids)

	query := fmt.Sprintf(`
		WITH adj(a, rel, b, eid) AS (
			SELECT source_id, relation, target_id, id FROM edges
			UNION ALL
			SELECT target_id, relation, source_id, id FROM edges WHERE source_id <> target_id
		)
		SELECT x.a, x.rel, x.b, y.rel, y.b
		FROM adj x JOIN adj y ON y.a = x.b
		WHERE x.a IN (%[1]s) AND y.b IN (%[1]s)
			AND x.a < y.b AND x.a <> x.b AND y.b <> x.b AND x.eid <> y.eid
		LIMIT ?
	`, in)

	args := append(append(append([]interface{}{}, inArgs...), inArgs...), sqlLimit(limit))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query paths: %w", err)
	}
	defer rows.Close()

	type rawPath struct{ a, r1, m, r2, b string }
	var raws []rawPath
	need := make(map[string]bool)
	for rows.Next() {
		var p rawPath
		if err := rows.Scan(&p.a, &p.r1, &p.m, &p.r2, &p.b); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		raws = append(raws, p)
		need[p.a], need[p.m], need[p.b] = true, true, true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paths: %w", err)
	}
	if len(raws) == 0 {
		return nil, nil
	}

	nodes, err := s.nodesByID(ctx, need)
	if err != nil {
		return nil, err
	}
	out := make([]TwoHopPath, 0, len(raws))
	for _, p := range raws {
		a, m, b := nodes[p.a], nodes[p.m], nodes[p.b]
		if a == nil || m == nil || b == nil {
			// Dangling edge endpoints are skipped rather than reported.
			continue
		}
		out = append(out, TwoHopPath{Start: a, Intermediate: m, End: b, Relations: [2]string{p.r1, p.r2}})
	}
	return out, nil
}

func (s *SQLiteGraphStore) nodesByID(ctx context.Context, ids map[string]bool) (map[string]*Node, error) {
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	in, args := inClause(list)
	nodes, err := s.queryNodes(ctx, fmt.Sprintf(`SELECT %s FROM nodes n WHERE n.id IN (%s)`, nodeColumns, in), args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return byID, nil
}

// NodeCount returns the total number of nodes in the graph.
func (s *SQLiteGraphStore) NodeCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return count, nil
}

// EdgeCount returns the total number of edges in the graph.
func (s *SQLiteGraphStore) EdgeCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return count, nil
}

// Close releases database resources.
func (s *SQLiteGraphStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteGraphStore) queryNodes(ctx context.Context, query string, args ...interface{}) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// scanNode scans the nodeColumns projection, preceded by any extra destinations.
func scanNode(rows *sql.Rows, prefix ...interface{}) (*Node, error) {
	var node Node
	var labelsJSON, attrsJSON []byte

	dest := append(prefix,
		&node.ID,
		&node.Name,
		&node.Title,
		&node.Description,
		&labelsJSON,
		&attrsJSON,
		&node.CreatedAt,
	)
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan node: %w", err)
	}
	if len(labelsJSON) > 0 {
		if err := json.Unmarshal(labelsJSON, &node.Labels); err != nil {
			return nil, fmt.Errorf("node %s labels: %w", node.ID, ErrMalformedRecord)
		}
	}
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &node.Attributes); err != nil {
			return nil, fmt.Errorf("node %s attributes: %w", node.ID, ErrMalformedRecord)
		}
	}
	return &node, nil
}

func inClause(ids []string) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
