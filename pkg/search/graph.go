package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dan-solli/graphrag/pkg/store"
)

// GraphExpander grows a seed set by breadth-first traversal. Each level is
// one batched neighborhood query over the whole frontier.
type GraphExpander struct {
	graph  store.GraphStore
	logger *slog.Logger

	NeighborLimit int           // Max neighbor rows per level (default 100)
	CallTimeout   time.Duration // Budget per external call; 0 means none
}

// NewGraphExpander creates a new graph expander.
func NewGraphExpander(graph store.GraphStore, logger *slog.Logger) *GraphExpander {
	return &GraphExpander{
		graph:         graph,
		logger:        orDiscard(logger),
		NeighborLimit: DefaultNeighborLimit,
	}
}

// Expand returns the seeds followed by every entity reached within maxDepth
// hops, in discovery order. A node keeps the distance of its first arrival.
// With maxDepth <= 0 the seeds are returned unchanged. A failed level stops
// the traversal; what was found so far is returned with a *StageError.
func (x *GraphExpander) Expand(ctx context.Context, seeds []Entity, maxDepth int) ([]Entity, error) {
	if maxDepth <= 0 || len(seeds) == 0 {
		return append([]Entity(nil), seeds...), nil
	}

	// Arena of entities indexed by node ID.
	arena := make([]Entity, 0, len(seeds))
	index := make(map[string]int, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, dup := index[s.NodeID]; dup {
			continue
		}
		index[s.NodeID] = len(arena)
		arena = append(arena, s)
		frontier = append(frontier, s.NodeID)
	}

	for level := 0; level < maxDepth && len(frontier) > 0; level++ {
		cctx, cancel := callContext(ctx, x.CallTimeout)
		rows, err := x.graph.Neighbors(cctx, frontier, x.NeighborLimit)
		cancel()
		if err != nil {
			return arena, stageError("expand", KindStoreUnavailable, fmt.Errorf("level %d: %w", level+1, err))
		}

		var next []string
		for _, nb := range rows {
			if nb.Node == nil || nb.Node.ID == "" {
				return arena, stageError("expand", KindMalformedResponse,
					fmt.Errorf("level %d: neighbor without node: %w", level+1, store.ErrMalformedRecord))
			}
			if _, seen := index[nb.Node.ID]; seen {
				continue
			}
			e := EntityFromNode(nb.Node)
			e.GraphDistance = level + 1
			e.ArrivalRelationship = nb.Relation
			e.ArrivalSource = nb.FromName

			index[e.NodeID] = len(arena)
			arena = append(arena, e)
			next = append(next, e.NodeID)
		}
		x.logger.Debug("graph expansion level", "level", level+1, "rows", len(rows), "new", len(next))
		frontier = next
	}

	return arena, nil
}
