package graphrag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dan-solli/graphrag/pkg/search"
)

// RunBaseline answers query from vector similarity alone, without the
// knowledge graph. It follows the same never-fail contract as Run.
func (e *Engine) RunBaseline(ctx context.Context, query string, maxResults int) *RetrievalResult {
	if maxResults <= 0 {
		maxResults = e.config.MaxResults
	}

	r := e.newRun(ctx, ModeBaseline, "baseline", query)
	func() {
		defer r.recoverPanic()
		e.runBaseline(r, query, maxResults)
	}()
	return r.finish()
}

func (e *Engine) runBaseline(r *run, query string, maxResults int) {
	res := r.result
	if strings.TrimSpace(query) == "" {
		r.fail("Query is empty; nothing to retrieve.", errors.New("query cannot be empty"))
		return
	}
	r.result.State = StateRetrievingDocs
	if r.cancelled() {
		return
	}

	span := startSpan("documents")
	docs, err := e.locator.QueryDocuments(r.ctx, query, maxResults)
	r.record(span.finish(kindName(err), err, map[string]int64{"vector_documents": int64(len(docs))}), err)
	res.Documents = search.Merge(nil, docs)
	r.enter(StateRetrievingDocs, "%d vector-similar%s", len(res.Documents), degradedSuffix(err))
	if r.cancelled() {
		return
	}

	r.result.State = StateAssemblingContext
	span = startSpan("context")
	contextText := search.AssembleBaselineContext(query, res.Documents)
	r.record(span.finish("", nil, map[string]int64{"chars": int64(len(contextText))}), nil)
	r.enter(StateAssemblingContext, "%d characters", len(contextText))

	e.generate(r, e.config.BaselineSystemPrompt, query, contextText)

	r.result.State = StateExtractingCitations
	span = startSpan("citations")
	res.Citations = search.ExtractBaselineCitations(res.Documents)
	r.record(span.finish("", nil, map[string]int64{"citations": int64(len(res.Citations))}), nil)
	r.enter(StateExtractingCitations, "%d citations", len(res.Citations))

	r.enter(StateDone, "completed in %dms", time.Since(r.start).Milliseconds())
}
