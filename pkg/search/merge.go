package search

// Merge combines the two channels into one list without duplicate IDs.
// Graph documents come first and win over vector documents with the same ID;
// relative order within each input is preserved. Inputs are not modified.
func Merge(graphDocs, vectorDocs []Document) []Document {
	out := make([]Document, 0, len(graphDocs)+len(vectorDocs))
	seen := make(map[string]bool, len(graphDocs)+len(vectorDocs))

	for _, d := range graphDocs {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		c := cloneDocument(d)
		c.SourceType = SourceGraphConnected
		if c.ConnectedEntities == nil {
			c.ConnectedEntities = []EntityRef{}
		}
		out = append(out, c)
	}

	for _, d := range vectorDocs {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		c := cloneDocument(d)
		c.SourceType = SourceVectorSimilar
		c.ConnectedEntities = []EntityRef{}
		out = append(out, c)
	}

	return out
}

func cloneDocument(d Document) Document {
	c := d
	if d.Metadata != nil {
		c.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			c.Metadata[k] = v
		}
	}
	if d.Similarity != nil {
		sim := *d.Similarity
		c.Similarity = &sim
	}
	if d.ConnectedEntities != nil {
		c.ConnectedEntities = append([]EntityRef{}, d.ConnectedEntities...)
	}
	return c
}
