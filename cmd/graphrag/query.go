package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dan-solli/graphrag/pkg/graphrag"
)

type queryOptions struct {
	maxResults int
	maxDepth   int
	json       bool
	trace      bool
}

func newQueryCmd(a *app) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question with hybrid graph and vector retrieval",
		Long: `Answer a question with hybrid retrieval.

Examples:
  graphrag query "Which companies does CompanyX collaborate with?"
  graphrag query --max-depth 1 "CompanyX cloud"
  graphrag query --json "chip foundry" | jq '.citations'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(e *graphrag.Engine) error {
				res := e.Run(cmd.Context(), strings.Join(args, " "), opts.maxResults, opts.maxDepth)
				return writeResult(cmd.OutOrStdout(), res, opts)
			})
		},
	}
	cmd.Flags().IntVarP(&opts.maxResults, "max-results", "n", 0, "Document budget (0 uses retrieval.max_results)")
	cmd.Flags().IntVarP(&opts.maxDepth, "max-depth", "d", -1, "Graph expansion depth (negative uses retrieval.max_depth)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output the full result as JSON")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Print the state trace")
	return cmd
}

func newBaselineCmd(a *app) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "baseline <question>",
		Short: "Answer a question from vector similarity alone",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(e *graphrag.Engine) error {
				res := e.RunBaseline(cmd.Context(), strings.Join(args, " "), opts.maxResults)
				return writeResult(cmd.OutOrStdout(), res, opts)
			})
		},
	}
	cmd.Flags().IntVarP(&opts.maxResults, "max-results", "n", 0, "Document budget (0 uses retrieval.max_results)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output the full result as JSON")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Print the state trace")
	return cmd
}

// writeResult prints res and turns a FAILED run into a command error.
func writeResult(w io.Writer, res *graphrag.RetrievalResult, opts *queryOptions) error {
	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(w, res, opts.trace)
	}
	if res.State == graphrag.StateFailed {
		return fmt.Errorf("retrieval failed: %s", res.Answer)
	}
	return nil
}

func printResult(w io.Writer, res *graphrag.RetrievalResult, withTrace bool) {
	heading := color.New(color.Bold, color.FgCyan).SprintFunc()

	fmt.Fprintln(w, res.Answer)

	if len(res.Paths) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, heading("Paths"))
		for _, p := range res.Paths {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}

	if len(res.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, heading("Sources"))
		for i, c := range res.Citations {
			fmt.Fprintf(w, "  [%d] %s %s\n", i+1, c.SourceTitle, color.HiBlackString("(%s)", c.Kind))
		}
	}

	if len(res.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.YellowString("Degraded stages:"))
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  %s: %s (%s)\n", f.Stage, f.Message, f.Kind)
		}
	}

	if withTrace {
		fmt.Fprintln(w)
		fmt.Fprintln(w, heading("Trace"))
		for _, line := range res.Trace {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
