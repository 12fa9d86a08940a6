package graphrag

// HybridSystemPrompt instructs the generator to answer from graph and document evidence.
const HybridSystemPrompt = `You answer questions using two kinds of evidence: documents retrieved for the query and a knowledge graph of entities and their relationships.

How to work:
- Read the entities, relationship paths and documents in the context.
- Use the relationships to connect facts that appear in different documents.
- Prefer information that is supported by both the graph and the documents.
- Say so when the context does not contain the answer.

When answering:
1. Combine document content with the entity relationships.
2. Point out connections and patterns across sources.
3. Name the documents, entities and relationships you relied on.

Give the most complete and accurate answer the combined evidence supports.`

// BaselineSystemPrompt instructs the generator to answer from retrieved documents only.
const BaselineSystemPrompt = `You answer questions from documents retrieved by vector similarity search.

How to work:
- Read the documents in the context; higher similarity means more relevant.
- Base the answer on what the documents state explicitly.
- Say so when the documents do not contain the answer.

When answering:
1. Combine information across all retrieved documents.
2. Give more weight to documents with higher similarity.
3. Name the documents and sources you relied on.

Give the most complete and accurate answer the documents support.`
