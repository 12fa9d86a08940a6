package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dan-solli/graphrag/pkg/embeddings"
	"github.com/dan-solli/graphrag/pkg/store"
)

// EntityResolver maps a query to seed entities: a lexical lookup first,
// then embedding similarity over a sample of named nodes when nothing matched.
type EntityResolver struct {
	graph    store.GraphStore
	embedder embeddings.EmbeddingClient
	logger   *slog.Logger

	LexicalLimit    int           // Max lexical matches fetched (default 20)
	SampleSize      int           // Nodes sampled for the semantic fallback (default 50)
	MaxSeeds        int           // Max seeds returned (default 10)
	SimilarityFloor float64       // Minimum cosine similarity for semantic seeds (default 0.3)
	CallTimeout     time.Duration // Budget per external call; 0 means none
}

// NewEntityResolver creates a resolver with default limits.
func NewEntityResolver(graph store.GraphStore, embedder embeddings.EmbeddingClient, logger *slog.Logger) *EntityResolver {
	return &EntityResolver{
		graph:           graph,
		embedder:        embedder,
		logger:          orDiscard(logger),
		LexicalLimit:    DefaultLexicalLimit,
		SampleSize:      DefaultSampleSize,
		MaxSeeds:        DefaultMaxSeeds,
		SimilarityFloor: DefaultSimilarityFloor,
	}
}

// Resolve returns up to MaxSeeds seed entities, all at distance 0.
// On failure it returns no seeds and a *StageError.
func (r *EntityResolver) Resolve(ctx context.Context, query string) ([]Entity, error) {
	phrase := strings.ToLower(strings.TrimSpace(query))
	if phrase == "" {
		return nil, nil
	}

	cctx, cancel := callContext(ctx, r.CallTimeout)
	nodes, err := r.graph.LookupByText(cctx, phrase, uniqueTokens(phrase), r.LexicalLimit)
	cancel()
	if err != nil {
		return nil, stageError("resolve", KindStoreUnavailable, err)
	}
	if len(nodes) > 0 {
		seeds := make([]Entity, 0, min(len(nodes), r.MaxSeeds))
		for _, n := range nodes {
			if len(seeds) == r.MaxSeeds {
				break
			}
			seeds = append(seeds, EntityFromNode(n))
		}
		r.logger.Debug("lexical entity match", "matches", len(nodes), "seeds", len(seeds))
		return seeds, nil
	}

	return r.semanticMatch(ctx, query)
}

func (r *EntityResolver) semanticMatch(ctx context.Context, query string) ([]Entity, error) {
	cctx, cancel := callContext(ctx, r.CallTimeout)
	candidates, err := r.graph.SampleNodes(cctx, r.SampleSize)
	cancel()
	if err != nil {
		return nil, stageError("resolve", KindStoreUnavailable, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// One batch: the query first, then every candidate.
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, n := range candidates {
		texts = append(texts, entityText(n))
	}

	cctx, cancel = callContext(ctx, r.CallTimeout)
	vectors, err := r.embedder.Embed(cctx, texts)
	cancel()
	if err != nil {
		return nil, stageError("resolve", KindEmbeddingFailure, err)
	}
	if len(vectors) != len(texts) {
		return nil, stageError("resolve", KindMalformedResponse,
			fmt.Errorf("%w: %d vectors for %d texts", embeddings.ErrMalformedResponse, len(vectors), len(texts)))
	}

	queryVec := vectors[0]
	type scored struct {
		node *store.Node
		sim  float64
	}
	var ranked []scored
	for i, n := range candidates {
		vec := vectors[i+1]
		if len(vec) != len(queryVec) {
			return nil, stageError("resolve", KindMalformedResponse,
				fmt.Errorf("%w: dimension %d != %d", embeddings.ErrMalformedResponse, len(vec), len(queryVec)))
		}
		sim := store.CosineSimilarity(queryVec, vec)
		if sim >= r.SimilarityFloor {
			ranked = append(ranked, scored{node: n, sim: sim})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].sim > ranked[j].sim
	})
	if len(ranked) > r.MaxSeeds {
		ranked = ranked[:r.MaxSeeds]
	}

	seeds := make([]Entity, 0, len(ranked))
	for _, s := range ranked {
		e := EntityFromNode(s.node)
		sim := s.sim
		e.Similarity = &sim
		seeds = append(seeds, e)
	}
	r.logger.Debug("semantic entity match", "candidates", len(candidates), "seeds", len(seeds))
	return seeds, nil
}

// entityText is the representation embedded for semantic matching.
func entityText(n *store.Node) string {
	var b strings.Builder
	if n.Name != "" {
		fmt.Fprintf(&b, "Name: %s ", n.Name)
	}
	if n.Title != "" {
		fmt.Fprintf(&b, "Title: %s ", n.Title)
	}
	if n.Description != "" {
		fmt.Fprintf(&b, "Description: %s ", truncateRunes(n.Description, 200))
	}
	if industry := n.Attributes["industry"]; industry != "" {
		fmt.Fprintf(&b, "Industry: %s ", industry)
	}
	return strings.TrimSpace(b.String())
}

func uniqueTokens(s string) []string {
	fields := strings.Fields(s)
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// callContext bounds a single external call. A zero budget inherits ctx.
func callContext(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
