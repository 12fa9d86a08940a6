// Package config loads engine configuration from YAML with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of a graphrag deployment.
type Config struct {
	Graph      GraphConfig      `yaml:"graph"`
	Documents  DocumentsConfig  `yaml:"documents"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Metrics enables the Prometheus collector
	Metrics bool `yaml:"metrics"`

	// TracePath is a JSON Lines file for run traces; empty disables export
	TracePath string `yaml:"trace_path"`
	// TraceMaxSizeMB rotates the trace file once it reaches this size
	TraceMaxSizeMB int `yaml:"trace_max_size_mb"`
	// TraceMaxFiles is the number of rotated trace files kept
	TraceMaxFiles int `yaml:"trace_max_files"`
}

// GraphConfig selects the graph store backend.
type GraphConfig struct {
	Backend string `yaml:"backend"` // memory | sqlite | neo4j
	Path    string `yaml:"path"`    // sqlite file (":memory:" allowed)
	Driver  string `yaml:"driver"`  // sqlite driver: sqlite (pure Go) or sqlite3 (cgo)

	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DocumentsConfig selects the document store backend.
type DocumentsConfig struct {
	Backend    string `yaml:"backend"` // memory | sqlite | pgvector
	Path       string `yaml:"path"`    // sqlite file; defaults to the graph file
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`        // postgres connection string
	Dimensions int    `yaml:"dimensions"` // vector column size for pgvector
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"` // hugot | openai | ollama
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	ModelDir  string `yaml:"model_dir"`  // hugot model cache
	CacheSize int    `yaml:"cache_size"` // LRU entries; 0 disables caching
	Breaker   bool   `yaml:"breaker"`

	// Dimensions requests shortened vectors from providers that support it
	// (openai); zero keeps the model's native size
	Dimensions int `yaml:"dimensions"`
}

// GenerationConfig selects the answer generator.
type GenerationConfig struct {
	Provider    string  `yaml:"provider"` // anthropic | openai | ollama
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Breaker     bool    `yaml:"breaker"`
}

// RetrievalConfig holds the defaults of a query.
type RetrievalConfig struct {
	MaxResults      int           `yaml:"max_results"`
	MaxDepth        int           `yaml:"max_depth"`
	SimilarityFloor float64       `yaml:"similarity_floor"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
}

// ChunkingConfig controls how loaded documents are split.
type ChunkingConfig struct {
	MaxTokens int `yaml:"max_tokens"`
	Overlap   int `yaml:"overlap"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // pretty | json
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Graph:     GraphConfig{Backend: "sqlite", Path: "graphrag.db", Driver: "sqlite"},
		Documents: DocumentsConfig{Backend: "sqlite", Driver: "sqlite", Dimensions: 384},
		Embeddings: EmbeddingsConfig{
			Provider:  "hugot",
			ModelDir:  "models",
			CacheSize: 1024,
			Breaker:   true,
		},
		Generation: GenerationConfig{
			Provider:    "anthropic",
			MaxTokens:   300,
			Temperature: 0.3,
			Breaker:     true,
		},
		Retrieval: RetrievalConfig{
			MaxResults:      10,
			MaxDepth:        2,
			SimilarityFloor: 0.3,
			CallTimeout:     30 * time.Second,
		},
		Chunking:       ChunkingConfig{MaxTokens: 512, Overlap: 50},
		Logging:        LoggingConfig{Level: "info", Format: "pretty"},
		TraceMaxSizeMB: 10,
		TraceMaxFiles:  5,
	}
}

// Load reads path (optional), applies environment overrides and provider
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyProviderDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// decode overlays YAML onto cfg, rejecting unknown keys.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be an integer: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flt := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be a number: %w", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be a duration: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("GRAPHRAG_GRAPH_BACKEND", &c.Graph.Backend)
	str("GRAPHRAG_GRAPH_PATH", &c.Graph.Path)
	str("NEO4J_URI", &c.Graph.URI)
	str("NEO4J_USER", &c.Graph.User)
	str("NEO4J_PASSWORD", &c.Graph.Password)

	str("GRAPHRAG_DOCUMENTS_BACKEND", &c.Documents.Backend)
	str("GRAPHRAG_DOCUMENTS_PATH", &c.Documents.Path)
	str("DATABASE_URL", &c.Documents.DSN)

	str("GRAPHRAG_EMBEDDINGS_PROVIDER", &c.Embeddings.Provider)
	str("GRAPHRAG_EMBEDDINGS_MODEL", &c.Embeddings.Model)
	str("GRAPHRAG_GENERATION_PROVIDER", &c.Generation.Provider)
	str("GRAPHRAG_GENERATION_MODEL", &c.Generation.Model)
	str("OLLAMA_HOST", &c.Embeddings.BaseURL)
	if c.Generation.Provider == "ollama" {
		str("OLLAMA_HOST", &c.Generation.BaseURL)
	}

	// Provider keys apply to whichever side uses that provider.
	if c.Embeddings.Provider == "openai" {
		str("OPENAI_API_KEY", &c.Embeddings.APIKey)
	}
	switch c.Generation.Provider {
	case "anthropic":
		str("ANTHROPIC_API_KEY", &c.Generation.APIKey)
	case "openai":
		str("OPENAI_API_KEY", &c.Generation.APIKey)
	}

	num("GRAPHRAG_MAX_RESULTS", &c.Retrieval.MaxResults)
	num("GRAPHRAG_MAX_DEPTH", &c.Retrieval.MaxDepth)
	flt("GRAPHRAG_SIMILARITY_FLOOR", &c.Retrieval.SimilarityFloor)
	dur("GRAPHRAG_CALL_TIMEOUT", &c.Retrieval.CallTimeout)

	str("GRAPHRAG_LOG_LEVEL", &c.Logging.Level)
	str("GRAPHRAG_LOG_FORMAT", &c.Logging.Format)
	str("GRAPHRAG_TRACE_PATH", &c.TracePath)

	return errors.Join(errs...)
}

// applyProviderDefaults fills model names and paths that depend on other fields.
func (c *Config) applyProviderDefaults() {
	if c.Embeddings.Model == "" {
		switch c.Embeddings.Provider {
		case "hugot":
			c.Embeddings.Model = "sentence-transformers/all-MiniLM-L6-v2"
		case "openai":
			c.Embeddings.Model = "text-embedding-3-small"
		case "ollama":
			c.Embeddings.Model = "nomic-embed-text"
		}
	}
	if c.Generation.Model == "" {
		switch c.Generation.Provider {
		case "anthropic":
			c.Generation.Model = "claude-3-haiku-20240307"
		case "openai":
			c.Generation.Model = "gpt-4o-mini"
		case "ollama":
			c.Generation.Model = "llama3.2"
		}
	}
	if c.Documents.Path == "" && c.Documents.Backend == "sqlite" {
		c.Documents.Path = c.Graph.Path
	}
	if c.Documents.Driver == "" {
		c.Documents.Driver = c.Graph.Driver
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, v string, allowed ...string) {
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), v))
	}

	oneOf("graph.backend", c.Graph.Backend, "memory", "sqlite", "neo4j")
	oneOf("documents.backend", c.Documents.Backend, "memory", "sqlite", "pgvector")
	oneOf("embeddings.provider", c.Embeddings.Provider, "hugot", "openai", "ollama")
	oneOf("generation.provider", c.Generation.Provider, "anthropic", "openai", "ollama")
	oneOf("logging.level", strings.ToLower(c.Logging.Level), "debug", "info", "warn", "error")
	oneOf("logging.format", c.Logging.Format, "pretty", "json")

	if c.Graph.Backend == "sqlite" && c.Graph.Path == "" {
		errs = append(errs, errors.New("graph.path is required for the sqlite backend"))
	}
	if c.Graph.Backend == "neo4j" && c.Graph.URI == "" {
		errs = append(errs, errors.New("graph.uri is required for the neo4j backend"))
	}
	if c.Documents.Backend == "pgvector" {
		if c.Documents.DSN == "" {
			errs = append(errs, errors.New("documents.dsn is required for the pgvector backend"))
		}
		if c.Documents.Dimensions <= 0 {
			errs = append(errs, errors.New("documents.dimensions must be positive"))
		}
		if d := c.Embeddings.Dimensions; d > 0 && d != c.Documents.Dimensions {
			errs = append(errs, fmt.Errorf("embeddings.dimensions (%d) must match documents.dimensions (%d)", d, c.Documents.Dimensions))
		}
	}
	if c.Embeddings.Dimensions < 0 {
		errs = append(errs, errors.New("embeddings.dimensions must be zero or positive"))
	}
	if c.Retrieval.MaxResults <= 0 {
		errs = append(errs, errors.New("retrieval.max_results must be positive"))
	}
	if c.Retrieval.MaxDepth < 0 {
		errs = append(errs, errors.New("retrieval.max_depth must be zero or positive"))
	}
	if c.Retrieval.SimilarityFloor < -1 || c.Retrieval.SimilarityFloor > 1 {
		errs = append(errs, errors.New("retrieval.similarity_floor must be between -1 and 1"))
	}
	if c.Retrieval.CallTimeout <= 0 {
		errs = append(errs, errors.New("retrieval.call_timeout must be positive"))
	}
	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, errors.New("generation.max_tokens must be positive"))
	}
	if c.TracePath != "" && (c.TraceMaxSizeMB <= 0 || c.TraceMaxFiles <= 0) {
		errs = append(errs, errors.New("trace_max_size_mb and trace_max_files must be positive when trace_path is set"))
	}
	if c.Chunking.MaxTokens <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxTokens {
		errs = append(errs, errors.New("chunking.overlap must be smaller than chunking.max_tokens"))
	}
	return errors.Join(errs...)
}
