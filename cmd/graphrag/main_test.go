package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-solli/graphrag/pkg/graphrag"
)

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func findCmd(t *testing.T, name string) *cobra.Command {
	t.Helper()
	cmd, _, err := newRootCmd().Find([]string{name})
	require.NoError(t, err)
	return cmd
}

func TestRootCmd_Definition(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "graphrag", root.Use)

	cfgFlag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, cfgFlag)
	assert.Equal(t, "c", cfgFlag.Shorthand)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"query", "baseline", "load", "health"}, names)
}

func TestQueryCmd_Flags(t *testing.T) {
	cmd := findCmd(t, "query")

	depth := cmd.Flags().Lookup("max-depth")
	require.NotNil(t, depth)
	assert.Equal(t, "-1", depth.DefValue)

	results := cmd.Flags().Lookup("max-results")
	require.NotNil(t, results)
	assert.Equal(t, "n", results.Shorthand)
	assert.Equal(t, "0", results.DefValue)

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"CompanyX", "cloud"}))

	assert.Nil(t, findCmd(t, "baseline").Flags().Lookup("max-depth"))
}

func TestCLI_LoadQueryHealth(t *testing.T) {
	srv := ollamaStub(t)
	dir := t.TempDir()
	cfgPath := writeSQLiteConfig(t, dir, srv.URL)
	fixturePath := writeFile(t, dir, "fixture.yaml", companyFixture)

	out, err := execute(t, "--config", cfgPath, "load", fixturePath)
	require.NoError(t, err)
	assert.Equal(t, "loaded 3 nodes, 2 edges, 2 document chunks\n", out)

	t.Run("query", func(t *testing.T) {
		out, err := execute(t, "-c", cfgPath, "query", "--json", "CompanyX", "cloud")
		require.NoError(t, err)

		var res graphrag.RetrievalResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, graphrag.StateDone, res.State)
		assert.Equal(t, graphrag.ModeHybrid, res.Mode)
		assert.Equal(t, "generated answer", res.Answer)
		assert.Empty(t, res.Failures)

		var names []string
		for _, e := range res.Entities {
			names = append(names, e.Name)
		}
		assert.Contains(t, names, "CompanyX")
		assert.Contains(t, names, "CompanyY")
		assert.NotEmpty(t, res.Documents)
		assert.NotEmpty(t, res.Citations)
	})

	t.Run("query text output", func(t *testing.T) {
		out, err := execute(t, "-c", cfgPath, "query", "--trace", "CompanyX", "cloud")
		require.NoError(t, err)
		assert.Contains(t, out, "generated answer")
		assert.Contains(t, out, "Sources")
		assert.Contains(t, out, "Trace")
		assert.Contains(t, out, "RESOLVING")
	})

	t.Run("baseline", func(t *testing.T) {
		out, err := execute(t, "-c", cfgPath, "baseline", "--json", "-n", "1", "chip foundry")
		require.NoError(t, err)

		var res graphrag.RetrievalResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, graphrag.ModeBaseline, res.Mode)
		assert.Empty(t, res.Entities)
		require.Len(t, res.Documents, 1)
		assert.Equal(t, "doc2", res.Documents[0].ID)
	})

	t.Run("empty query fails", func(t *testing.T) {
		out, err := execute(t, "-c", cfgPath, "query", "   ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retrieval failed")
		assert.Contains(t, out, "Query is empty")
	})

	t.Run("health", func(t *testing.T) {
		out, err := execute(t, "-c", cfgPath, "health")
		require.NoError(t, err)

		var h graphrag.HealthStatus
		require.NoError(t, json.Unmarshal([]byte(out), &h))
		assert.Equal(t, "ok", h.Status)
		assert.Equal(t, "ok", h.Components["graph_store"])
		assert.Equal(t, "closed", h.Components["breaker:embeddings"])
		assert.Equal(t, "closed", h.Components["breaker:generation"])
	})
}

func TestCLI_Errors(t *testing.T) {
	srv := ollamaStub(t)
	dir := t.TempDir()
	cfgPath := writeSQLiteConfig(t, dir, srv.URL)

	t.Run("missing config file", func(t *testing.T) {
		_, err := execute(t, "-c", dir+"/missing.yaml", "health")
		assert.ErrorContains(t, err, "read config")
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := execute(t, "-c", cfgPath, "--log-level", "loud", "health")
		assert.ErrorContains(t, err, "unknown log level")
	})

	t.Run("missing fixture", func(t *testing.T) {
		_, err := execute(t, "-c", cfgPath, "load", dir+"/nope.yaml")
		assert.ErrorContains(t, err, "read fixture")
	})

	t.Run("invalid fixture", func(t *testing.T) {
		path := writeFile(t, dir, "bad.yaml", "edges:\n  - {source: x}\n")
		_, err := execute(t, "-c", cfgPath, "load", path)
		assert.ErrorContains(t, err, "edges[0]")
	})
}
