package graphrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dan-solli/graphrag/pkg/config"
	"github.com/dan-solli/graphrag/pkg/embeddings"
	"github.com/dan-solli/graphrag/pkg/llm"
	"github.com/dan-solli/graphrag/pkg/metrics"
	"github.com/dan-solli/graphrag/pkg/resilience"
	"github.com/dan-solli/graphrag/pkg/store"
	"github.com/dan-solli/graphrag/pkg/trace"
)

const defaultOllamaURL = "http://localhost:11434"

// Components are the collaborators built from a configuration.
type Components struct {
	Graph     store.GraphStore
	Documents store.DocumentStore
	Embedder  embeddings.EmbeddingClient
	Generator llm.Generator
	Metrics   metrics.Collector
	Tracer    trace.Exporter
	Breakers  []*resilience.Breaker

	closers []func() error
}

// Close releases everything the components opened.
func (c *Components) Close() error {
	var errs []error
	if c.Tracer != nil {
		errs = append(errs, c.Tracer.Close())
	}
	if c.Documents != nil {
		errs = append(errs, c.Documents.Close())
	}
	if c.Graph != nil {
		errs = append(errs, c.Graph.Close())
	}
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

// OpenComponents builds stores, clients and observability from cfg. On
// error everything opened so far is closed.
func OpenComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Components, err error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if cfg.Metrics {
		c.Metrics = metrics.NewCollector()
	} else {
		c.Metrics = metrics.NewNoopCollector()
	}
	var traceOpts []trace.FileExporterOption
	if cfg.TraceMaxSizeMB > 0 {
		traceOpts = append(traceOpts, trace.WithMaxSize(int64(cfg.TraceMaxSizeMB)<<20))
	}
	if cfg.TraceMaxFiles > 0 {
		traceOpts = append(traceOpts, trace.WithMaxRotatedFiles(cfg.TraceMaxFiles))
	}
	if c.Tracer, err = trace.NewExporter(cfg.TracePath, traceOpts...); err != nil {
		return nil, err
	}

	if err = c.openEmbedder(cfg.Embeddings, logger); err != nil {
		return nil, err
	}
	if err = c.openGenerator(cfg.Generation, logger); err != nil {
		return nil, err
	}
	if err = c.openStores(ctx, cfg); err != nil {
		return nil, err
	}

	logger.Info("components opened",
		"graph_backend", cfg.Graph.Backend,
		"documents_backend", cfg.Documents.Backend,
		"embeddings_provider", cfg.Embeddings.Provider,
		"embeddings_model", cfg.Embeddings.Model,
		"generation_provider", cfg.Generation.Provider,
		"generation_model", cfg.Generation.Model,
		"metrics", cfg.Metrics,
		"tracing", cfg.TracePath != "",
	)
	return c, nil
}

func (c *Components) openEmbedder(cfg config.EmbeddingsConfig, logger *slog.Logger) error {
	var client embeddings.EmbeddingClient
	switch cfg.Provider {
	case "hugot":
		h, err := embeddings.NewHugotClient(cfg.Model, cfg.ModelDir)
		if err != nil {
			return fmt.Errorf("open hugot embeddings: %w", err)
		}
		c.closers = append(c.closers, h.Close)
		client = h
	case "openai":
		if cfg.APIKey == "" {
			logger.Warn("openai embeddings configured without an API key")
		}
		o := embeddings.NewOpenAIClient(cfg.APIKey)
		if cfg.Model != "" {
			o.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			o.BaseURL = cfg.BaseURL
		}
		o.Dimensions = cfg.Dimensions
		client = o
	case "ollama":
		client = embeddings.NewOllamaClient(orDefault(cfg.BaseURL, defaultOllamaURL), cfg.Model)
	default:
		return fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}

	if cfg.Breaker {
		client = embeddings.NewBreakerClient(client, c.newBreaker("embeddings", logger))
	}
	if cfg.CacheSize > 0 {
		cached, err := embeddings.NewCachedClient(client, cfg.CacheSize)
		if err != nil {
			return fmt.Errorf("create embedding cache: %w", err)
		}
		client = cached
	}
	c.Embedder = client
	return nil
}

func (c *Components) openGenerator(cfg config.GenerationConfig, logger *slog.Logger) error {
	opts := llm.Options{Model: cfg.Model, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}

	var gen llm.Generator
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			logger.Warn("anthropic generation configured without an API key")
		}
		gen = llm.NewAnthropicGenerator(cfg.APIKey, cfg.BaseURL, opts)
	case "openai":
		if cfg.APIKey == "" {
			logger.Warn("openai generation configured without an API key")
		}
		o := llm.NewOpenAIGenerator(cfg.APIKey, opts)
		if cfg.BaseURL != "" {
			o.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
		gen = o
	case "ollama":
		gen = llm.NewOllamaGenerator(orDefault(cfg.BaseURL, defaultOllamaURL), opts)
	default:
		return fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	if cfg.Breaker {
		gen = llm.NewBreakerGenerator(gen, c.newBreaker("generation", logger))
	}
	c.Generator = gen
	return nil
}

func (c *Components) openStores(ctx context.Context, cfg *config.Config) error {
	var sqliteGraph *store.SQLiteGraphStore

	switch cfg.Graph.Backend {
	case "memory":
		c.Graph = store.NewMemoryGraphStore()
	case "sqlite":
		db, err := store.OpenSQLite(cfg.Graph.Driver, cfg.Graph.Path)
		if err != nil {
			return err
		}
		g, err := store.NewSQLiteGraphStoreFromDB(db)
		if err != nil {
			db.Close()
			return err
		}
		sqliteGraph = g
		c.Graph = g
	case "neo4j":
		g, err := store.NewNeo4jGraphStore(ctx, cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			return err
		}
		c.Graph = g
	default:
		return fmt.Errorf("unknown graph backend %q", cfg.Graph.Backend)
	}

	switch cfg.Documents.Backend {
	case "memory":
		c.Documents = store.NewMemoryDocumentStore(c.Embedder)
	case "sqlite":
		// Share the graph's connection when both live in the same file.
		if sqliteGraph != nil && cfg.Documents.Path == cfg.Graph.Path && cfg.Documents.Driver == cfg.Graph.Driver {
			d, err := store.NewSQLiteDocumentStore(sqliteGraph.DB(), c.Embedder)
			if err != nil {
				return err
			}
			c.Documents = d
			return nil
		}
		d, err := store.OpenSQLiteDocumentStore(cfg.Documents.Driver, cfg.Documents.Path, c.Embedder)
		if err != nil {
			return err
		}
		c.Documents = d
	case "pgvector":
		d, err := store.NewPgVectorDocumentStore(ctx, cfg.Documents.DSN, cfg.Documents.Dimensions, c.Embedder)
		if err != nil {
			return err
		}
		c.Documents = d
	default:
		return fmt.Errorf("unknown documents backend %q", cfg.Documents.Backend)
	}
	return nil
}

// Open builds the components described by cfg and an engine over them.
// Closing the engine closes the components.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	c, err := OpenComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	maxDepth := cfg.Retrieval.MaxDepth
	if maxDepth == 0 {
		maxDepth = SeedsOnly
	}
	e, err := New(c.Graph, c.Documents, c.Embedder, c.Generator, Config{
		MaxResults:      cfg.Retrieval.MaxResults,
		MaxDepth:        maxDepth,
		SimilarityFloor: cfg.Retrieval.SimilarityFloor,
		CallTimeout:     cfg.Retrieval.CallTimeout,
		Logger:          logger,
		Metrics:         c.Metrics,
		Tracer:          c.Tracer,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	e.breakers = c.Breakers
	e.closers = c.closers
	return e, nil
}

func (c *Components) newBreaker(name string, logger *slog.Logger) *resilience.Breaker {
	cfg := resilience.DefaultBreakerConfig(name)
	cfg.Logger = logger
	m := c.Metrics
	cfg.OnStateChange = func(name, _, to string) {
		m.SetBreakerState(context.Background(), name, to)
	}
	b := resilience.NewBreaker(cfg)
	m.SetBreakerState(context.Background(), name, b.State())
	c.Breakers = append(c.Breakers, b)
	return b
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
