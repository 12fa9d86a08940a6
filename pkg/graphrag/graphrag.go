// Package graphrag answers questions by fusing knowledge-graph and vector
// retrieval, then generating an answer from the combined evidence.
package graphrag

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dan-solli/graphrag/pkg/embeddings"
	"github.com/dan-solli/graphrag/pkg/llm"
	"github.com/dan-solli/graphrag/pkg/metrics"
	"github.com/dan-solli/graphrag/pkg/resilience"
	"github.com/dan-solli/graphrag/pkg/search"
	"github.com/dan-solli/graphrag/pkg/store"
	"github.com/dan-solli/graphrag/pkg/trace"
)

// Config holds engine settings. Zero values take the defaults below.
type Config struct {
	// MaxResults is the default document budget per query (default: 10)
	MaxResults int

	// MaxDepth is the default graph expansion depth (default: 2).
	// SeedsOnly disables expansion.
	MaxDepth int

	// SimilarityFloor is the minimum cosine similarity for semantic seed
	// matching (default: 0.3)
	SimilarityFloor float64

	// CallTimeout bounds every external call (default: 30s)
	CallTimeout time.Duration

	// System prompts for hybrid and baseline generation
	SystemPrompt         string
	BaselineSystemPrompt string

	// Logger receives engine logs. Nil discards them.
	Logger *slog.Logger

	// Metrics receives counters and timings. Nil uses a no-op collector.
	Metrics metrics.Collector

	// Tracer receives one record per run. Nil uses a no-op exporter.
	Tracer trace.Exporter
}

const (
	DefaultMaxResults  = 10
	DefaultMaxDepth    = 2
	DefaultCallTimeout = 30 * time.Second

	// SeedsOnly as Config.MaxDepth keeps only the resolved seed entities.
	SeedsOnly = -1
)

// Engine runs hybrid and baseline retrieval. It is safe for concurrent use;
// each run builds its own result and shares only the read-only collaborators.
type Engine struct {
	config    Config
	graph     store.GraphStore
	docs      store.DocumentStore
	embedder  embeddings.EmbeddingClient
	generator llm.Generator

	resolver *search.EntityResolver
	expander *search.GraphExpander
	paths    *search.PathFinder
	locator  *search.DocumentLocator

	logger  *slog.Logger
	metrics metrics.Collector
	tracer  trace.Exporter

	// breakers are reported by Health; closers run on Close.
	breakers []*resilience.Breaker
	closers  []func() error
}

// New creates an engine over the given collaborators.
func New(graph store.GraphStore, docs store.DocumentStore, embedder embeddings.EmbeddingClient, generator llm.Generator, cfg Config) (*Engine, error) {
	if graph == nil || docs == nil || embedder == nil || generator == nil {
		return nil, errors.New("graph store, document store, embedder and generator are required")
	}

	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	switch {
	case cfg.MaxDepth == 0:
		cfg.MaxDepth = DefaultMaxDepth
	case cfg.MaxDepth < 0:
		cfg.MaxDepth = 0
	}
	if cfg.SimilarityFloor == 0 {
		cfg.SimilarityFloor = search.DefaultSimilarityFloor
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = HybridSystemPrompt
	}
	if cfg.BaselineSystemPrompt == "" {
		cfg.BaselineSystemPrompt = BaselineSystemPrompt
	}

	e := &Engine{
		config:    cfg,
		graph:     graph,
		docs:      docs,
		embedder:  embedder,
		generator: generator,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}
	if e.metrics == nil {
		e.metrics = metrics.NewNoopCollector()
	}
	if e.tracer == nil {
		e.tracer = trace.NoopExporter{}
	}
	e.setLogger(cfg.Logger)

	e.logger.Info("graphrag engine configured",
		"max_results", cfg.MaxResults,
		"max_depth", cfg.MaxDepth,
		"similarity_floor", cfg.SimilarityFloor,
		"call_timeout", cfg.CallTimeout.String(),
	)
	return e, nil
}

// WithLogger replaces the engine logger and returns the engine.
// A nil logger discards output.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.setLogger(logger)
	return e
}

func (e *Engine) setLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e.logger = logger

	e.resolver = search.NewEntityResolver(e.graph, e.embedder, logger)
	e.resolver.SimilarityFloor = e.config.SimilarityFloor
	e.resolver.CallTimeout = e.config.CallTimeout

	e.expander = search.NewGraphExpander(e.graph, logger)
	e.expander.CallTimeout = e.config.CallTimeout

	e.paths = search.NewPathFinder(e.graph, logger)
	e.paths.CallTimeout = e.config.CallTimeout

	e.locator = search.NewDocumentLocator(e.docs, logger)
	e.locator.CallTimeout = e.config.CallTimeout
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Close releases resources acquired by Open and closes the stores and tracer.
func (e *Engine) Close() error {
	var errs []error
	if err := e.tracer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.docs.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.graph.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range e.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
