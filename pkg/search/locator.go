package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dan-solli/graphrag/pkg/store"
)

// DocumentLocator finds candidate documents through two independent
// channels: one probed with expanded entity names, one with the raw query.
type DocumentLocator struct {
	docs   store.DocumentStore
	logger *slog.Logger

	ProbeEntities int           // Entity names joined into the probe (default 10)
	CallTimeout   time.Duration // Budget per external call; 0 means none
}

// NewDocumentLocator creates a new document locator.
func NewDocumentLocator(docs store.DocumentStore, logger *slog.Logger) *DocumentLocator {
	return &DocumentLocator{docs: docs, logger: orDiscard(logger), ProbeEntities: DefaultProbeEntities}
}

// Located holds both channels' results, joined after concurrent execution.
type Located struct {
	Graph     []Document
	GraphErr  error
	Vector    []Document
	VectorErr error
}

// SplitBudget divides maxResults between the entity-keyed and query-keyed
// channels. Each channel gets at least one result when maxResults > 0.
func SplitBudget(maxResults int) (entityN, queryN int) {
	if maxResults <= 0 {
		return 0, 0
	}
	queryN = maxResults / 2
	entityN = maxResults - queryN
	if queryN == 0 {
		queryN = 1
	}
	return entityN, queryN
}

// Locate runs both channels concurrently and waits for both.
func (l *DocumentLocator) Locate(ctx context.Context, query string, entities []Entity, maxResults int) Located {
	entityN, queryN := SplitBudget(maxResults)

	var out Located
	var g errgroup.Group
	g.Go(func() error {
		out.Graph, out.GraphErr = l.EntityDocuments(ctx, entities, entityN)
		return nil
	})
	g.Go(func() error {
		out.Vector, out.VectorErr = l.QueryDocuments(ctx, query, queryN)
		return nil
	})
	_ = g.Wait()
	return out
}

// EntityDocuments searches with a probe built from up to ProbeEntities
// entity names and records which entities each document mentions.
func (l *DocumentLocator) EntityDocuments(ctx context.Context, entities []Entity, n int) ([]Document, error) {
	if n <= 0 {
		return nil, nil
	}
	names := make([]string, 0, l.ProbeEntities)
	for _, e := range entities {
		if len(names) == l.ProbeEntities {
			break
		}
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	probe := strings.Join(names, " ")

	cctx, cancel := callContext(ctx, l.CallTimeout)
	hits, err := l.docs.SimilaritySearch(cctx, probe, n)
	cancel()
	if err != nil {
		return nil, stageError("entity_documents", KindStoreUnavailable, err)
	}

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		d := documentFromHit(h, SourceGraphConnected)
		d.ConnectedEntities = connectedEntities(h.Content, entities)
		docs = append(docs, d)
	}
	l.logger.Debug("entity-keyed documents", "probe_entities", len(names), "documents", len(docs))
	return docs, nil
}

// QueryDocuments searches with the raw query text.
func (l *DocumentLocator) QueryDocuments(ctx context.Context, query string, n int) ([]Document, error) {
	if n <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	cctx, cancel := callContext(ctx, l.CallTimeout)
	hits, err := l.docs.SimilaritySearch(cctx, query, n)
	cancel()
	if err != nil {
		return nil, stageError("query_documents", KindStoreUnavailable, err)
	}

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, documentFromHit(h, SourceVectorSimilar))
	}
	l.logger.Debug("query-keyed documents", "documents", len(docs))
	return docs, nil
}

// connectedEntities lists entities whose name occurs in content, case-insensitively.
func connectedEntities(content string, entities []Entity) []EntityRef {
	lower := strings.ToLower(content)
	refs := []EntityRef{}
	seen := make(map[string]bool)
	for _, e := range entities {
		name := strings.ToLower(e.Name)
		if name == "" || seen[name] || !strings.Contains(lower, name) {
			continue
		}
		seen[name] = true
		refs = append(refs, EntityRef{Name: e.Name, Type: e.PrimaryLabel(), Distance: e.GraphDistance})
	}
	return refs
}
