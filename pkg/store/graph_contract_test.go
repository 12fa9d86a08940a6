package store

import (
	"context"
	"errors"
	"sort"
	"testing"
)

// writableGraph is a graph store that tests can populate.
type writableGraph interface {
	GraphStore
	GraphWriter
}

// seedCompanyGraph adds:
//
//	x CompanyX -COLLABORATES_WITH-> y CompanyY -SUPPLIES-> z CompanyZ
//	x -EMPLOYS-> alice
//	lab (title only) -FUNDED_BY-> z
//	orphan (no name, no title)
func seedCompanyGraph(t *testing.T, g writableGraph) {
	t.Helper()
	ctx := context.Background()
	nodes := []*Node{
		{ID: "x", Name: "CompanyX", Labels: []string{"Company"}, Description: "Cloud software vendor",
			Attributes: map[string]string{"industry": "Software"}},
		{ID: "y", Name: "CompanyY", Labels: []string{"Company"}, Description: "Chip foundry services"},
		{ID: "z", Name: "CompanyZ", Labels: []string{"Company"}, Description: "Research instruments"},
		{ID: "alice", Name: "Alice", Labels: []string{"Person"}},
		{ID: "lab", Title: "Quantum Lab", Labels: []string{"Organization"}},
		{ID: "orphan", Description: "no display name"},
	}
	for _, n := range nodes {
		if err := g.AddNode(ctx, n); err != nil {
			t.Fatalf("AddNode(%s) failed: %v", n.ID, err)
		}
	}
	edges := []*Edge{
		{ID: "e1", SourceID: "x", Relation: "COLLABORATES_WITH", TargetID: "y"},
		{ID: "e2", SourceID: "y", Relation: "SUPPLIES", TargetID: "z"},
		{ID: "e3", SourceID: "x", Relation: "EMPLOYS", TargetID: "alice"},
		{ID: "e4", SourceID: "lab", Relation: "FUNDED_BY", TargetID: "z"},
	}
	for _, e := range edges {
		if err := g.AddEdge(ctx, e); err != nil {
			t.Fatalf("AddEdge(%s) failed: %v", e.ID, err)
		}
	}
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// runGraphStoreContract checks the behavior every GraphStore backend shares.
func runGraphStoreContract(t *testing.T, open func(t *testing.T) writableGraph) {
	ctx := context.Background()

	t.Run("LookupByText", func(t *testing.T) {
		g := open(t)
		seedCompanyGraph(t, g)

		tests := []struct {
			name     string
			phrase   string
			keywords []string
			limit    int
			want     []string
		}{
			{"phrase matches name", "companyx", nil, 20, []string{"x"}},
			{"phrase matches description", "chip foundry", nil, 20, []string{"y"}},
			{"phrase matches title", "quantum lab", nil, 20, []string{"lab"}},
			{"keyword matches names", "no such phrase", []string{"company"}, 20, []string{"x", "y", "z"}},
			{"keyword ignores description", "no such phrase", []string{"vendor"}, 20, []string{}},
			{"keyword matches title", "no such phrase", []string{"quantum"}, 20, []string{"lab"}},
			{"limit", "no such phrase", []string{"company"}, 2, nil},
			{"nothing", "nothing here", []string{"nothing", "here"}, 20, []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				nodes, err := g.LookupByText(ctx, tt.phrase, tt.keywords, tt.limit)
				if err != nil {
					t.Fatalf("LookupByText failed: %v", err)
				}
				if tt.want == nil {
					if len(nodes) != tt.limit {
						t.Errorf("got %d nodes, want limit %d", len(nodes), tt.limit)
					}
					return
				}
				if got := nodeIDs(nodes); !equalStrings(got, tt.want) {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("LookupByText round-trips fields", func(t *testing.T) {
		g := open(t)
		seedCompanyGraph(t, g)

		nodes, err := g.LookupByText(ctx, "companyx", nil, 5)
		if err != nil || len(nodes) != 1 {
			t.Fatalf("LookupByText = %v, %v", nodes, err)
		}
		n := nodes[0]
		if n.Name != "CompanyX" || n.Description != "Cloud software vendor" {
			t.Errorf("unexpected node %+v", n)
		}
		if len(n.Labels) != 1 || n.Labels[0] != "Company" {
			t.Errorf("labels = %v", n.Labels)
		}
		if n.Attributes["industry"] != "Software" {
			t.Errorf("attributes = %v", n.Attributes)
		}
	})

	t.Run("LookupByText folds non-ASCII case", func(t *testing.T) {
		g := open(t)
		for _, n := range []*Node{
			{ID: "eco", Name: "Ökologie Institut", Description: "Forschung zur ÄRA der Städte"},
			{ID: "other", Name: "Okologie"},
		} {
			if err := g.AddNode(ctx, n); err != nil {
				t.Fatalf("AddNode failed: %v", err)
			}
		}

		tests := []struct {
			name     string
			phrase   string
			keywords []string
		}{
			{"keyword on name", "no such phrase", []string{"ökologie"}},
			{"phrase on description", "ära der städte", nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				nodes, err := g.LookupByText(ctx, tt.phrase, tt.keywords, 20)
				if err != nil {
					t.Fatalf("LookupByText failed: %v", err)
				}
				if got := nodeIDs(nodes); !equalStrings(got, []string{"eco"}) {
					t.Errorf("got %v, want [eco]", got)
				}
			})
		}
	})

	t.Run("SampleNodes skips nameless nodes", func(t *testing.T) {
		g := open(t)
		seedCompanyGraph(t, g)

		nodes, err := g.SampleNodes(ctx, 50)
		if err != nil {
			t.Fatalf("SampleNodes failed: %v", err)
		}
		want := []string{"alice", "lab", "x", "y", "z"}
		if got := nodeIDs(nodes); !equalStrings(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}

		nodes, err = g.SampleNodes(ctx, 3)
		if err != nil {
			t.Fatalf("SampleNodes failed: %v", err)
		}
		if len(nodes) != 3 {
			t.Errorf("got %d nodes, want 3", len(nodes))
		}
	})

	t.Run("Neighbors is undirected and batched", func(t *testing.T) {
		g := open(t)
		seedCompanyGraph(t, g)

		got, err := g.Neighbors(ctx, []string{"y", "lab"}, 100)
		if err != nil {
			t.Fatalf("Neighbors failed: %v", err)
		}
		var rows []string
		for _, nb := range got {
			rows = append(rows, nb.FromID+"|"+nb.FromName+"|"+nb.Relation+"|"+nb.Node.ID)
		}
		sort.Strings(rows)
		want := []string{
			"lab|Quantum Lab|FUNDED_BY|z",
			"y|CompanyY|COLLABORATES_WITH|x",
			"y|CompanyY|SUPPLIES|z",
		}
		if !equalStrings(rows, want) {
			t.Errorf("got %v, want %v", rows, want)
		}
	})

	t.Run("Neighbors respects limit and unknown ids", func(t *testing.T) {
		g := open(t)
		seedCompanyGraph(t, g)

		got, err := g.Neighbors(ctx, []string{"x", "y", "z"}, 2)
		if err != nil {
			t.Fatalf("Neighbors failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %d rows, want 2", len(got))
		}

		got, err = g.Neighbors(ctx, []string{"missing"}, 10)
		if err != nil {
			t.Fatalf("Neighbors failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d rows for unknown id", len(got))
		}
	})

	t.Run("TwoHopPaths", func(t *testing.T) {
		g := open(t)
		seedCompanyGraph(t, g)

		paths, err := g.TwoHopPaths(ctx, []string{"x", "y", "z", "alice"}, 20)
		if err != nil {
			t.Fatalf("TwoHopPaths failed: %v", err)
		}
		var got []string
		for _, p := range paths {
			if !(p.Start.ID < p.End.ID) {
				t.Errorf("path %s..%s is not ordered", p.Start.ID, p.End.ID)
			}
			got = append(got, p.Start.ID+"-"+p.Relations[0]+"-"+p.Intermediate.ID+"-"+p.Relations[1]+"-"+p.End.ID)
		}
		sort.Strings(got)
		want := []string{
			"alice-EMPLOYS-x-COLLABORATES_WITH-y",
			"x-COLLABORATES_WITH-y-SUPPLIES-z",
		}
		if !equalStrings(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("TwoHopPaths intermediate may be outside the set", func(t *testing.T) {
		g := open(t)
		seedCompanyGraph(t, g)

		paths, err := g.TwoHopPaths(ctx, []string{"lab", "y"}, 20)
		if err != nil {
			t.Fatalf("TwoHopPaths failed: %v", err)
		}
		if len(paths) != 1 || paths[0].Intermediate.ID != "z" || paths[0].Start.ID != "lab" {
			t.Errorf("unexpected paths %+v", paths)
		}
	})

	t.Run("TwoHopPaths limit and small sets", func(t *testing.T) {
		g := open(t)
		seedCompanyGraph(t, g)

		paths, err := g.TwoHopPaths(ctx, []string{"x", "y", "z", "alice", "lab"}, 1)
		if err != nil {
			t.Fatalf("TwoHopPaths failed: %v", err)
		}
		if len(paths) != 1 {
			t.Errorf("got %d paths, want 1", len(paths))
		}
		paths, err = g.TwoHopPaths(ctx, []string{"x"}, 20)
		if err != nil {
			t.Fatalf("TwoHopPaths failed: %v", err)
		}
		if len(paths) != 0 {
			t.Errorf("got %d paths for a single id", len(paths))
		}
	})

	t.Run("AddNode assigns id and upserts", func(t *testing.T) {
		g := open(t)
		n := &Node{Name: "Generated"}
		if err := g.AddNode(ctx, n); err != nil {
			t.Fatalf("AddNode failed: %v", err)
		}
		if n.ID == "" {
			t.Fatal("expected an id to be assigned")
		}
		if n.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}

		if err := g.AddNode(ctx, &Node{ID: n.ID, Name: "Renamed"}); err != nil {
			t.Fatalf("AddNode upsert failed: %v", err)
		}
		nodes, err := g.SampleNodes(ctx, 10)
		if err != nil {
			t.Fatalf("SampleNodes failed: %v", err)
		}
		if len(nodes) != 1 || nodes[0].Name != "Renamed" {
			t.Errorf("expected one renamed node, got %+v", nodes)
		}
	})

	t.Run("AddEdge requires both nodes", func(t *testing.T) {
		g := open(t)
		if err := g.AddNode(ctx, &Node{ID: "a", Name: "A"}); err != nil {
			t.Fatalf("AddNode failed: %v", err)
		}
		err := g.AddEdge(ctx, &Edge{SourceID: "a", Relation: "KNOWS", TargetID: "ghost"})
		if !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("expected ErrNodeNotFound, got %v", err)
		}
		err = g.AddEdge(ctx, &Edge{SourceID: "ghost", Relation: "KNOWS", TargetID: "a"})
		if !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("expected ErrNodeNotFound, got %v", err)
		}
	})

	t.Run("operations fail after Close", func(t *testing.T) {
		g := open(t)
		seedCompanyGraph(t, g)
		if err := g.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if _, err := g.LookupByText(ctx, "companyx", nil, 5); err == nil {
			t.Error("expected an error after Close")
		}
	})
}
