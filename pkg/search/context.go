package search

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Section caps and truncation limits for rendered context.
const (
	ContextMaxEntities    = 15
	ContextMaxPaths       = 10
	ContextMaxDocuments   = 8
	ContextMaxDescription = 200
	ContextMaxContent     = 800
	ContextConnectedShown = 3
	BaselineMaxContent    = 1000
)

// AssembleContext renders the evidence into the prompt context: a query
// header followed by entity, relationship and document sections, always in
// that order. It performs no I/O and is deterministic.
func AssembleContext(query string, entities []Entity, paths []KnowledgePath, docs []Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "USER QUERY: %s\n\n", query)
	b.WriteString("=== GRAPHRAG ENHANCED CONTEXT ===\n\n")

	b.WriteString("KNOWLEDGE GRAPH ENTITIES:\n")
	if len(entities) == 0 {
		b.WriteString("None found.\n")
	}
	for i, e := range entities {
		if i == ContextMaxEntities {
			break
		}
		name := e.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "%d. %s", i+1, name)
		if len(e.Labels) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(e.Labels, ", "))
		}
		if e.GraphDistance > 0 {
			fmt.Fprintf(&b, " [Distance: %d]", e.GraphDistance)
		}
		if e.ArrivalRelationship != "" {
			fmt.Fprintf(&b, " [Via: %s]", e.ArrivalRelationship)
		}
		b.WriteByte('\n')
		if e.Description != "" {
			fmt.Fprintf(&b, "   Description: %s\n", truncateRunes(e.Description, ContextMaxDescription))
		}
		if industry := e.Attributes["industry"]; industry != "" {
			fmt.Fprintf(&b, "   Industry: %s\n", industry)
		}
	}
	b.WriteByte('\n')

	b.WriteString("KNOWLEDGE RELATIONSHIPS:\n")
	if len(paths) == 0 {
		b.WriteString("None found.\n")
	}
	for i, p := range paths {
		if i == ContextMaxPaths {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.String())
	}
	b.WriteByte('\n')

	b.WriteString("RELEVANT DOCUMENTS:\n")
	if len(docs) == 0 {
		b.WriteString("None found.\n")
	}
	for i, d := range docs {
		if i == ContextMaxDocuments {
			break
		}
		title := d.Title()
		if title == "" {
			title = fmt.Sprintf("Document %d", i+1)
		}
		fmt.Fprintf(&b, "%d. %s", i+1, title)
		if d.SourceType != "" {
			fmt.Fprintf(&b, " [%s]", humanize(string(d.SourceType)))
		}
		b.WriteByte('\n')
		if len(d.ConnectedEntities) > 0 {
			names := make([]string, 0, ContextConnectedShown)
			for j, ref := range d.ConnectedEntities {
				if j == ContextConnectedShown {
					break
				}
				names = append(names, ref.Name)
			}
			fmt.Fprintf(&b, "   Connected Entities: %s\n", strings.Join(names, ", "))
		}
		fmt.Fprintf(&b, "   Content: %s\n\n", ellipsize(d.Content, ContextMaxContent))
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// AssembleBaselineContext renders documents only, for vector-only retrieval.
func AssembleBaselineContext(query string, docs []Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "USER QUERY: %s\n\n", query)
	b.WriteString("=== TRADITIONAL RAG CONTEXT ===\n")
	b.WriteString("(Based solely on vector similarity search of documents)\n\n")

	if len(docs) == 0 {
		b.WriteString("No relevant documents found.\n")
		return b.String()
	}

	b.WriteString("RETRIEVED DOCUMENTS:\n")
	for i, d := range docs {
		title := d.Title()
		if title == "" {
			title = fmt.Sprintf("Document %d", i+1)
		}
		sim := 0.0
		if d.Similarity != nil {
			sim = *d.Similarity
		}
		fmt.Fprintf(&b, "%d. %s [Similarity: %.3f]\n", i+1, title, sim)
		for _, f := range []struct{ label, key string }{
			{"Authors", "authors"}, {"Year", "year"}, {"Source", "source"}, {"Type", "type"},
		} {
			if v := d.Metadata[f.key]; v != "" {
				fmt.Fprintf(&b, "   %s: %s\n", f.label, v)
			}
		}
		fmt.Fprintf(&b, "   Content: %s\n\n", ellipsize(d.Content, BaselineMaxContent))
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// ellipsize truncates s to n runes and marks the cut with "...".
func ellipsize(s string, n int) string {
	t := truncateRunes(s, n)
	if len(t) < len(s) {
		return t + "..."
	}
	return t
}

// humanize turns "graph_connected" into "Graph Connected".
func humanize(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
