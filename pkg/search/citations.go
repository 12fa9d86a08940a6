package search

import (
	"fmt"
	"sort"
	"strconv"
)

// CitationEntityLimit caps entity citations.
const CitationEntityLimit = 5

const unknownDocumentTitle = "Unknown Document"

// ExtractCitations lists document citations in document order, then up to
// CitationEntityLimit entity citations, closest first. Titles are unique;
// the first occurrence wins.
func ExtractCitations(docs []Document, entities []Entity) []Citation {
	citations := make([]Citation, 0, len(docs)+CitationEntityLimit)
	seen := make(map[string]bool)

	for _, d := range docs {
		title := d.Title()
		if title == "" {
			title = unknownDocumentTitle
		}
		if seen[title] {
			continue
		}
		seen[title] = true

		attrs := pickMetadata(d.Metadata, "authors", "year", "venue", "doi")
		attrs["source_type"] = string(d.SourceType)
		attrs["connected_entities"] = strconv.Itoa(len(d.ConnectedEntities))
		citations = append(citations, Citation{SourceTitle: title, Kind: CitationDocument, Attributes: attrs})
	}

	for _, e := range closestEntities(entities, CitationEntityLimit) {
		if e.Name == "" || seen[e.Name] {
			continue
		}
		seen[e.Name] = true

		attrs := map[string]string{
			"entity_type":    e.PrimaryLabel(),
			"graph_distance": strconv.Itoa(e.GraphDistance),
		}
		if e.ArrivalRelationship != "" {
			attrs["source_relationship"] = e.ArrivalRelationship
		}
		citations = append(citations, Citation{SourceTitle: e.Name, Kind: CitationGraphEntity, Attributes: attrs})
	}

	return citations
}

// ExtractBaselineCitations lists document citations with their similarity.
func ExtractBaselineCitations(docs []Document) []Citation {
	citations := make([]Citation, 0, len(docs))
	seen := make(map[string]bool)

	for _, d := range docs {
		title := d.Title()
		if title == "" {
			title = unknownDocumentTitle
		}
		if seen[title] {
			continue
		}
		seen[title] = true

		attrs := pickMetadata(d.Metadata, "authors", "year", "doi")
		if venue := firstNonEmpty(d.Metadata["venue"], d.Metadata["source"]); venue != "" {
			attrs["venue"] = venue
		}
		attrs["document_type"] = firstNonEmpty(d.Metadata["type"], "unknown")
		if d.Similarity != nil {
			attrs["similarity"] = fmt.Sprintf("%.3f", *d.Similarity)
		}
		citations = append(citations, Citation{SourceTitle: title, Kind: CitationDocument, Attributes: attrs})
	}
	return citations
}

// closestEntities returns the n entities with the smallest distance,
// ties kept in discovery order.
func closestEntities(entities []Entity, n int) []Entity {
	sorted := append([]Entity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GraphDistance < sorted[j].GraphDistance
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func pickMetadata(m map[string]string, keys ...string) map[string]string {
	out := make(map[string]string, len(keys)+2)
	for _, k := range keys {
		if v := m[k]; v != "" {
			out[k] = v
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
