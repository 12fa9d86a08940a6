package search

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/dan-solli/graphrag/pkg/store"
)

// vocabEmbedder embeds text as word counts over a fixed vocabulary.
// Words outside the vocabulary are ignored.
type vocabEmbedder struct {
	vocab []string

	mu    sync.Mutex
	calls int
	err   error
	short bool // return one vector fewer than requested
}

func newVocabEmbedder(words ...string) *vocabEmbedder {
	return &vocabEmbedder{vocab: words}
}

func (v *vocabEmbedder) vector(text string) []float32 {
	vec := make([]float32, len(v.vocab))
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		for i, w := range v.vocab {
			if tok == w {
				vec[i]++
			}
		}
	}
	return vec
}

func (v *vocabEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, v.vector(t))
	}
	if v.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (v *vocabEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.vector(text), nil
}

// flakyGraph wraps a graph store and fails selected operations.
type flakyGraph struct {
	store.GraphStore

	lookupErr    error
	sampleErr    error
	neighborsErr error
	pathsErr     error
	// failAtCall makes Neighbors fail from the given call number on (1-based).
	failAtCall int

	mu            sync.Mutex
	neighborCalls int
}

func (f *flakyGraph) LookupByText(ctx context.Context, phrase string, keywords []string, limit int) ([]*store.Node, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.GraphStore.LookupByText(ctx, phrase, keywords, limit)
}

func (f *flakyGraph) SampleNodes(ctx context.Context, limit int) ([]*store.Node, error) {
	if f.sampleErr != nil {
		return nil, f.sampleErr
	}
	return f.GraphStore.SampleNodes(ctx, limit)
}

func (f *flakyGraph) Neighbors(ctx context.Context, ids []string, limit int) ([]store.Neighbor, error) {
	f.mu.Lock()
	f.neighborCalls++
	call := f.neighborCalls
	f.mu.Unlock()
	if f.neighborsErr != nil && (f.failAtCall == 0 || call >= f.failAtCall) {
		return nil, f.neighborsErr
	}
	return f.GraphStore.Neighbors(ctx, ids, limit)
}

func (f *flakyGraph) TwoHopPaths(ctx context.Context, ids []string, limit int) ([]store.TwoHopPath, error) {
	if f.pathsErr != nil {
		return nil, f.pathsErr
	}
	return f.GraphStore.TwoHopPaths(ctx, ids, limit)
}

// companyGraph builds a small graph:
//
//	CompanyX -COLLABORATES_WITH-> CompanyY -SUPPLIES-> CompanyZ
//	CompanyX -EMPLOYS-> Alice
//	Lab (no name, title only) -FUNDED_BY-> CompanyZ
func companyGraph(t *testing.T) *store.MemoryGraphStore {
	t.Helper()
	ctx := context.Background()
	g := store.NewMemoryGraphStore()

	nodes := []*store.Node{
		{ID: "x", Name: "CompanyX", Labels: []string{"Company"}, Description: "cloud software vendor",
			Attributes: map[string]string{"industry": "Software"}},
		{ID: "y", Name: "CompanyY", Labels: []string{"Company"}, Description: "chip foundry services"},
		{ID: "z", Name: "CompanyZ", Labels: []string{"Company"}, Description: "research instruments"},
		{ID: "alice", Name: "Alice", Labels: []string{"Person"}},
		{ID: "lab", Title: "Quantum Lab", Labels: []string{"Organization"}},
	}
	for _, n := range nodes {
		require.NoError(t, g.AddNode(ctx, n))
	}
	edges := []*store.Edge{
		{SourceID: "x", Relation: "COLLABORATES_WITH", TargetID: "y"},
		{SourceID: "y", Relation: "SUPPLIES", TargetID: "z"},
		{SourceID: "x", Relation: "EMPLOYS", TargetID: "alice"},
		{SourceID: "lab", Relation: "FUNDED_BY", TargetID: "z"},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(ctx, e))
	}
	return g
}

func companyDocs(t *testing.T, emb store.QueryEmbedder) *store.MemoryDocumentStore {
	t.Helper()
	ctx := context.Background()
	docs := store.NewMemoryDocumentStore(emb)

	raw := []store.Document{
		{ID: "doc1", Content: "CompanyX and CompanyY announce a joint cloud chip program.",
			Metadata: map[string]string{"title": "Joint Program", "authors": "Doe", "year": "2023"}},
		{ID: "doc2", Content: "CompanyY expands foundry capacity for chip customers.",
			Metadata: map[string]string{"title": "Foundry Expansion", "source": "Trade Weekly"}},
		{ID: "doc3", Content: "A survey of research instruments used in chip labs.",
			Metadata: map[string]string{"title": "Instrument Survey", "type": "survey"}},
	}
	for i := range raw {
		vec, err := emb.EmbedOne(ctx, raw[i].Content)
		require.NoError(t, err)
		raw[i].Embedding = vec
	}
	require.NoError(t, docs.AddDocuments(ctx, raw))
	return docs
}

var testVocab = []string{"companyx", "companyy", "companyz", "cloud", "chip", "foundry", "research", "instruments", "software"}

func entityIDs(entities []Entity) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.NodeID)
	}
	return ids
}

func docIDs(docs []Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

func ptr(f float64) *float64 { return &f }
