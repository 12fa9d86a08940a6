package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/dan-solli/graphrag/pkg/store"
)

// PathFinder lists 2-hop relationship chains between expanded entities.
type PathFinder struct {
	graph  store.GraphStore
	logger *slog.Logger

	Limit       int           // Max paths (default 20)
	CallTimeout time.Duration // Budget per external call; 0 means none
}

// NewPathFinder creates a new path finder.
func NewPathFinder(graph store.GraphStore, logger *slog.Logger) *PathFinder {
	return &PathFinder{graph: graph, logger: orDiscard(logger), Limit: DefaultPathLimit}
}

// FindPaths returns chains a -r1- m -r2- b with a and b both among entities.
// Fewer than two entities yields no paths; errors yield no paths and a *StageError.
func (p *PathFinder) FindPaths(ctx context.Context, entities []Entity) ([]KnowledgePath, error) {
	ids := make([]string, 0, len(entities))
	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		if !seen[e.NodeID] {
			seen[e.NodeID] = true
			ids = append(ids, e.NodeID)
		}
	}
	if len(ids) < 2 {
		return nil, nil
	}

	cctx, cancel := callContext(ctx, p.CallTimeout)
	rows, err := p.graph.TwoHopPaths(cctx, ids, p.Limit)
	cancel()
	if err != nil {
		return nil, stageError("paths", KindStoreUnavailable, err)
	}

	paths := make([]KnowledgePath, 0, len(rows))
	for _, r := range rows {
		if p.Limit > 0 && len(paths) == p.Limit {
			break
		}
		if r.Start == nil || r.Intermediate == nil || r.End == nil {
			return nil, stageError("paths", KindMalformedResponse, store.ErrMalformedRecord)
		}
		paths = append(paths, KnowledgePath{
			Start:         r.Start.DisplayName(),
			Intermediate:  r.Intermediate.DisplayName(),
			End:           r.End.DisplayName(),
			Relationships: r.Relations,
			Length:        2,
		})
	}
	return paths, nil
}
