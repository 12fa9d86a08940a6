package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dan-solli/graphrag/pkg/graphrag"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check store connectivity and circuit breaker state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(e *graphrag.Engine) error {
				h := e.Health(cmd.Context())
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(h); err != nil {
					return err
				}
				if h.Status != "ok" {
					return fmt.Errorf("status %s", h.Status)
				}
				return nil
			})
		},
	}
}
