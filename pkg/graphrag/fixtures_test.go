package graphrag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/dan-solli/graphrag/pkg/store"
)

var testVocab = []string{"companyx", "companyy", "companyz", "cloud", "chip", "foundry", "research", "instruments"}

// wordEmbedder embeds text as word counts over testVocab.
type wordEmbedder struct {
	err error
}

func (w *wordEmbedder) vector(text string) []float32 {
	vec := make([]float32, len(testVocab))
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		for i, word := range testVocab {
			if tok == word {
				vec[i]++
			}
		}
	}
	return vec
}

func (w *wordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = w.vector(t)
	}
	return out, nil
}

func (w *wordEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.vector(text), nil
}

// fakeGenerator records its last call and answers with a fixed string.
type fakeGenerator struct {
	answer string
	err    error
	panics bool

	mu           sync.Mutex
	calls        int
	systemPrompt string
	query        string
	contextText  string
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, query, contextText string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.systemPrompt, f.query, f.contextText = systemPrompt, query, contextText
	f.mu.Unlock()
	if f.panics {
		panic("generator exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// brokenGraph fails every query with err.
type brokenGraph struct {
	err error
}

func (b *brokenGraph) LookupByText(ctx context.Context, phrase string, keywords []string, limit int) ([]*store.Node, error) {
	return nil, b.err
}

func (b *brokenGraph) SampleNodes(ctx context.Context, limit int) ([]*store.Node, error) {
	return nil, b.err
}

func (b *brokenGraph) Neighbors(ctx context.Context, ids []string, limit int) ([]store.Neighbor, error) {
	return nil, b.err
}

func (b *brokenGraph) TwoHopPaths(ctx context.Context, ids []string, limit int) ([]store.TwoHopPath, error) {
	return nil, b.err
}

func (b *brokenGraph) Close() error { return nil }

// panickyGraph wraps a graph store and panics while finding paths.
type panickyGraph struct {
	store.GraphStore
}

func (p *panickyGraph) TwoHopPaths(ctx context.Context, ids []string, limit int) ([]store.TwoHopPath, error) {
	panic("paths exploded")
}

// brokenDocs fails every search.
type brokenDocs struct {
	err error
}

func (b *brokenDocs) SimilaritySearch(ctx context.Context, text string, n int) ([]store.DocumentHit, error) {
	return nil, b.err
}

func (b *brokenDocs) Close() error { return nil }

// pingDocs is a document store that answers health checks.
type pingDocs struct {
	store.DocumentStore
	err error
}

func (p *pingDocs) Ping(ctx context.Context) error { return p.err }

var errStoreDown = errors.New("dial tcp 127.0.0.1:7687: connection refused")

// companyGraph builds:
//
//	CompanyX -COLLABORATES_WITH-> CompanyY -SUPPLIES-> CompanyZ
//	CompanyX -EMPLOYS-> Alice
func companyGraph(t *testing.T) *store.MemoryGraphStore {
	t.Helper()
	ctx := context.Background()
	g := store.NewMemoryGraphStore()
	for _, n := range []*store.Node{
		{ID: "x", Name: "CompanyX", Labels: []string{"Company"}, Description: "cloud software vendor"},
		{ID: "y", Name: "CompanyY", Labels: []string{"Company"}, Description: "chip foundry services"},
		{ID: "z", Name: "CompanyZ", Labels: []string{"Company"}, Description: "research instruments"},
		{ID: "alice", Name: "Alice", Labels: []string{"Person"}},
	} {
		require.NoError(t, g.AddNode(ctx, n))
	}
	for _, e := range []*store.Edge{
		{SourceID: "x", Relation: "COLLABORATES_WITH", TargetID: "y"},
		{SourceID: "y", Relation: "SUPPLIES", TargetID: "z"},
		{SourceID: "x", Relation: "EMPLOYS", TargetID: "alice"},
	} {
		require.NoError(t, g.AddEdge(ctx, e))
	}
	return g
}

func companyDocs(t *testing.T, emb *wordEmbedder) *store.MemoryDocumentStore {
	t.Helper()
	ctx := context.Background()
	docs := store.NewMemoryDocumentStore(emb)
	raw := []store.Document{
		{ID: "doc1", Content: "CompanyX and CompanyY announce a joint cloud chip program.",
			Metadata: map[string]string{"title": "Joint Program", "authors": "Doe", "year": "2023"}},
		{ID: "doc2", Content: "CompanyY expands foundry capacity for chip customers.",
			Metadata: map[string]string{"title": "Foundry Expansion"}},
		{ID: "doc3", Content: "A survey of research instruments used in chip labs.",
			Metadata: map[string]string{"title": "Instrument Survey"}},
	}
	for i := range raw {
		raw[i].Embedding = emb.vector(raw[i].Content)
	}
	require.NoError(t, docs.AddDocuments(ctx, raw))
	return docs
}

func newTestEngine(t *testing.T, graph store.GraphStore, docs store.DocumentStore, gen *fakeGenerator, cfg Config) *Engine {
	t.Helper()
	emb := &wordEmbedder{}
	if graph == nil {
		graph = companyGraph(t)
	}
	if docs == nil {
		docs = companyDocs(t, emb)
	}
	if gen == nil {
		gen = &fakeGenerator{answer: "CompanyX works with CompanyY."}
	}
	e, err := New(graph, docs, emb, gen, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// traceStates returns the state prefix of every trace line.
func traceStates(res *RetrievalResult) []State {
	states := make([]State, 0, len(res.Trace))
	for _, line := range res.Trace {
		name, _, _ := strings.Cut(line, ":")
		states = append(states, State(name))
	}
	return states
}

// captureHandler is a slog.Handler that captures log records for test assertions
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) find(msg string) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []slog.Record
	for _, r := range h.records {
		if r.Message == msg {
			out = append(out, r)
		}
	}
	return out
}

func attr(r slog.Record, key string) (slog.Value, bool) {
	var (
		v     slog.Value
		found bool
	)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			v, found = a.Value, true
			return false
		}
		return true
	})
	return v, found
}
