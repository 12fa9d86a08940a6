package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var testVocab = []string{"companyx", "companyy", "companyz", "cloud", "chip", "foundry"}

// countEmbedder maps text to word counts over testVocab.
type countEmbedder struct{}

func (countEmbedder) vector(text string) []float32 {
	v := make([]float32, len(testVocab))
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,?!")
		for i, t := range testVocab {
			if w == t {
				v[i]++
			}
		}
	}
	return v
}

func (e countEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e countEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// ollamaStub serves /api/embed with countEmbedder vectors and /api/generate
// with a fixed answer.
func ollamaStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			var req struct {
				Input []string `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			out := make([][]float64, len(req.Input))
			for i, text := range req.Input {
				out[i] = []float64{}
				for _, v := range (countEmbedder{}).vector(text) {
					out[i] = append(out[i], float64(v))
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "generated answer", "done": true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

const companyFixture = `
nodes:
  - {id: x, name: CompanyX, labels: [Company], description: Cloud provider}
  - {id: y, name: CompanyY, labels: [Company]}
  - {id: z, name: CompanyZ, labels: [Company], attributes: {country: NL}}
edges:
  - {source: x, relation: COLLABORATES_WITH, target: y}
  - {source: y, relation: SUPPLIES, target: z, weight: 0.5}
documents:
  - id: doc1
    content: CompanyX and CompanyY run a joint cloud program.
    metadata: {title: Joint Program, year: "2023"}
  - id: doc2
    content: CompanyZ expands its chip foundry.
    metadata: {title: Foundry Expansion}
`

// writeSQLiteConfig writes a config using SQLite stores in dir and the
// Ollama stub for embeddings and generation.
func writeSQLiteConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	t.Setenv("OLLAMA_HOST", "")
	cfg := `
graph:
  backend: sqlite
  path: ` + filepath.Join(dir, "graph.db") + `
documents:
  backend: sqlite
embeddings:
  provider: ollama
  model: test-embed
  base_url: ` + baseURL + `
generation:
  provider: ollama
  model: test-generate
  base_url: ` + baseURL + `
logging:
  level: error
`
	path := filepath.Join(dir, "graphrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
