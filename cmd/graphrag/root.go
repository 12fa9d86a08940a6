package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dan-solli/graphrag/pkg/config"
	"github.com/dan-solli/graphrag/pkg/graphrag"
	"github.com/dan-solli/graphrag/pkg/logging"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "graphrag",
		Short: "GraphRAG - hybrid knowledge-graph and vector retrieval",
		Long: `graphrag answers questions by combining entities, relationships and
2-hop paths from a knowledge graph with documents found by vector similarity.

Configuration is read from --config (YAML) and overridden by GRAPHRAG_*
environment variables and provider keys such as ANTHROPIC_API_KEY.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newQueryCmd(a),
		newBaselineCmd(a),
		newLoadCmd(a),
		newHealthCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger. Logs go to stderr so
// stdout stays machine readable.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logger, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// withEngine opens an engine for the duration of fn.
func (a *app) withEngine(ctx context.Context, fn func(*graphrag.Engine) error) (err error) {
	e, err := graphrag.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(e)
}
