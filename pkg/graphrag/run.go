package graphrag

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dan-solli/graphrag/pkg/search"
	"github.com/dan-solli/graphrag/pkg/trace"
)

// errStagePanic wraps a panic recovered inside a stage.
var errStagePanic = errors.New("stage panicked")

// run is the mutable state of a single query until it is finished.
type run struct {
	e         *Engine
	ctx       context.Context
	operation string
	start     time.Time
	result    *RetrievalResult
	timing    *OperationTrace
	firstErr  error
}

func (e *Engine) newRun(ctx context.Context, mode Mode, operation, query string) *run {
	return &run{
		e:         e,
		ctx:       ctx,
		operation: operation,
		start:     time.Now(),
		timing:    newTrace(),
		result: &RetrievalResult{
			RunID:     uuid.New().String(),
			Mode:      mode,
			Query:     query,
			Entities:  []search.Entity{},
			Documents: []search.Document{},
			Paths:     []search.KnowledgePath{},
			Citations: []search.Citation{},
			Trace:     []string{},
		},
	}
}

// enter moves to state and appends its trace line.
func (r *run) enter(state State, format string, args ...any) {
	r.result.State = state
	line := string(state)
	if format != "" {
		line += ": " + fmt.Sprintf(format, args...)
	}
	r.result.Trace = append(r.result.Trace, line)
	r.e.logger.Debug("retrieval state", "run_id", r.result.RunID, "state", string(state))
}

// record adds a finished span and notes a degraded stage.
func (r *run) record(span Span, err error) {
	r.timing.addSpan(span)
	r.e.metrics.RecordStage(r.ctx, r.operation, span.Name, span.DurationMs)
	if err == nil {
		return
	}
	kind := search.KindOf(err)
	if kind == "" {
		kind = search.ErrorKind(span.ErrorKind)
	}
	r.result.Failures = append(r.result.Failures, StageFailure{Stage: span.Name, Kind: kind, Message: err.Error()})
	if r.firstErr == nil {
		r.firstErr = err
	}
	r.e.metrics.RecordError(r.ctx, r.operation, string(kind))
	r.e.logger.Warn("retrieval stage degraded",
		"run_id", r.result.RunID,
		"stage", span.Name,
		"kind", string(kind),
		"error", err,
	)
}

// fail moves to FAILED with an explanatory answer.
func (r *run) fail(reason string, err error) {
	if err != nil && r.firstErr == nil {
		r.firstErr = err
	}
	r.result.Answer = reason
	r.enter(StateFailed, "%s", reason)
}

// cancelled fails the run when the caller's context is done.
func (r *run) cancelled() bool {
	if err := r.ctx.Err(); err != nil {
		r.fail(fmt.Sprintf("Query cancelled during %s: %v", r.result.State, err), err)
		return true
	}
	return false
}

// recoverPanic turns a panic in the run goroutine into FAILED.
func (r *run) recoverPanic() {
	if v := recover(); v != nil {
		err := fmt.Errorf("%w: %v", errStagePanic, v)
		r.e.logger.Error("retrieval panic", "run_id", r.result.RunID, "state", string(r.result.State),
			"panic", fmt.Sprint(v), "stack", string(debug.Stack()))
		r.fail(fmt.Sprintf("Internal error during %s: %v", r.result.State, v), err)
	}
}

// finish seals the result and reports it to metrics, tracer and log.
func (r *run) finish() *RetrievalResult {
	res := r.result
	r.timing.TotalDurationMs = time.Since(r.start).Milliseconds()
	res.Timing = r.timing

	status := "ok"
	switch {
	case res.State == StateFailed:
		status = "failed"
	case res.Degraded():
		status = "degraded"
	}

	ctx := context.WithoutCancel(r.ctx)
	r.e.metrics.RecordOperation(ctx, r.operation, status, r.timing.TotalDurationMs)
	counts := map[string]int{
		"entities":  len(res.Entities),
		"paths":     len(res.Paths),
		"documents": len(res.Documents),
		"citations": len(res.Citations),
	}
	for kind, n := range counts {
		r.e.metrics.RecordResultSize(ctx, r.operation, kind, n)
	}

	record := &trace.TraceRecord{
		Timestamp:  r.start,
		RunID:      res.RunID,
		Operation:  r.operation,
		DurationMs: r.timing.TotalDurationMs,
		State:      string(res.State),
		Status:     status,
		Spans:      r.timing.records(),
		ErrorType:  ClassifyError(r.firstErr),
		Counts:     counts,
	}
	if err := r.e.tracer.Export(ctx, record); err != nil {
		r.e.logger.Warn("trace export failed", "run_id", res.RunID, "error", err)
	}

	r.e.logger.Info("retrieval finished",
		"run_id", res.RunID,
		"mode", string(res.Mode),
		"state", string(res.State),
		"status", status,
		"entities", len(res.Entities),
		"paths", len(res.Paths),
		"documents", len(res.Documents),
		"citations", len(res.Citations),
		"duration_ms", r.timing.TotalDurationMs,
	)
	return res
}

// Run answers query with hybrid graph and vector retrieval. It never
// returns nil and never panics: failing stages degrade to partial results.
// maxResults <= 0 and maxDepth < 0 select the configured defaults.
func (e *Engine) Run(ctx context.Context, query string, maxResults, maxDepth int) *RetrievalResult {
	if maxResults <= 0 {
		maxResults = e.config.MaxResults
	}
	if maxDepth < 0 {
		maxDepth = e.config.MaxDepth
	}

	r := e.newRun(ctx, ModeHybrid, "run", query)
	func() {
		defer r.recoverPanic()
		e.runHybrid(r, query, maxResults, maxDepth)
	}()
	return r.finish()
}

func (e *Engine) runHybrid(r *run, query string, maxResults, maxDepth int) {
	res := r.result
	if strings.TrimSpace(query) == "" {
		r.fail("Query is empty; nothing to retrieve.", errors.New("query cannot be empty"))
		return
	}
	r.result.State = StateResolving
	if r.cancelled() {
		return
	}

	// Resolve
	span := startSpan("resolve")
	seeds, err := e.resolver.Resolve(r.ctx, query)
	r.record(span.finish(kindName(err), err, map[string]int64{"seeds": int64(len(seeds))}), err)
	r.enter(StateResolving, "%d seed entities%s", len(seeds), degradedSuffix(err))
	if r.cancelled() {
		return
	}

	// Expand
	r.result.State = StateExpanding
	span = startSpan("expand")
	entities, err := e.expander.Expand(r.ctx, seeds, maxDepth)
	r.record(span.finish(kindName(err), err, map[string]int64{"entities": int64(len(entities))}), err)
	if entities != nil {
		res.Entities = entities
	}
	r.enter(StateExpanding, "%d entities within depth %d%s", len(res.Entities), maxDepth, degradedSuffix(err))
	if r.cancelled() {
		return
	}

	// Path finding and both document channels share only the expanded set.
	r.result.State = StatePathFinding
	var (
		paths    []search.KnowledgePath
		pathErr  error
		pathSpan Span
		located  search.Located
		docSpan  Span
	)
	var g errgroup.Group
	g.Go(guard(func() {
		t := startSpan("paths")
		paths, pathErr = e.paths.FindPaths(r.ctx, res.Entities)
		pathSpan = t.finish(kindName(pathErr), pathErr, map[string]int64{"paths": int64(len(paths))})
	}))
	g.Go(guard(func() {
		t := startSpan("documents")
		located = e.locator.Locate(r.ctx, query, res.Entities, maxResults)
		docErr := errors.Join(located.GraphErr, located.VectorErr)
		docSpan = t.finish(kindName(docErr), docErr, map[string]int64{
			"graph_documents":  int64(len(located.Graph)),
			"vector_documents": int64(len(located.Vector)),
		})
	}))
	if err := g.Wait(); err != nil {
		panic(err)
	}

	r.record(pathSpan, pathErr)
	if paths != nil {
		res.Paths = paths
	}
	r.enter(StatePathFinding, "%d relationship paths%s", len(res.Paths), degradedSuffix(pathErr))

	r.result.State = StateRetrievingDocs
	r.timing.addSpan(docSpan)
	e.metrics.RecordStage(r.ctx, r.operation, docSpan.Name, docSpan.DurationMs)
	for _, chErr := range []error{located.GraphErr, located.VectorErr} {
		if chErr != nil {
			r.recordFailure("documents", chErr)
		}
	}
	r.enter(StateRetrievingDocs, "%d graph-connected, %d vector-similar%s",
		len(located.Graph), len(located.Vector), degradedSuffix(errors.Join(located.GraphErr, located.VectorErr)))
	if r.cancelled() {
		return
	}

	// Merge
	r.result.State = StateMerging
	span = startSpan("merge")
	res.Documents = search.Merge(located.Graph, located.Vector)
	r.record(span.finish("", nil, map[string]int64{"documents": int64(len(res.Documents))}), nil)
	r.enter(StateMerging, "%d documents", len(res.Documents))

	// Context
	r.result.State = StateAssemblingContext
	span = startSpan("context")
	contextText := search.AssembleContext(query, res.Entities, res.Paths, res.Documents)
	r.record(span.finish("", nil, map[string]int64{"chars": int64(len(contextText))}), nil)
	r.enter(StateAssemblingContext, "%d characters", len(contextText))

	e.generate(r, e.config.SystemPrompt, query, contextText)

	// Citations
	r.result.State = StateExtractingCitations
	span = startSpan("citations")
	res.Citations = search.ExtractCitations(res.Documents, res.Entities)
	r.record(span.finish("", nil, map[string]int64{"citations": int64(len(res.Citations))}), nil)
	r.enter(StateExtractingCitations, "%d citations", len(res.Citations))

	r.enter(StateDone, "completed in %dms", time.Since(r.start).Milliseconds())
}

// generate calls the generator under the per-call budget. A failure becomes
// the answer text instead of an error.
func (e *Engine) generate(r *run, systemPrompt, query, contextText string) {
	r.result.State = StateGenerating
	span := startSpan("generate")

	cctx, cancel := callContext(r.ctx, e.config.CallTimeout)
	answer, err := e.generator.Generate(cctx, systemPrompt, query, contextText)
	cancel()

	if err != nil {
		se := &search.StageError{Stage: "generate", Kind: search.Classify(search.KindGenerationFailure, err), Err: err}
		r.record(span.finish(string(se.Kind), se, nil), se)
		r.result.Answer = fmt.Sprintf("Error generating answer: %v", err)
		r.enter(StateGenerating, "failed (%s)", se.Kind)
		return
	}
	r.record(span.finish("", nil, map[string]int64{"chars": int64(len(answer))}), nil)
	r.result.Answer = answer
	r.enter(StateGenerating, "answer of %d characters", len(answer))
}

// recordFailure notes a degraded stage whose span was already recorded.
func (r *run) recordFailure(stage string, err error) {
	kind := search.KindOf(err)
	r.result.Failures = append(r.result.Failures, StageFailure{Stage: stage, Kind: kind, Message: err.Error()})
	if r.firstErr == nil {
		r.firstErr = err
	}
	r.e.metrics.RecordError(r.ctx, r.operation, string(kind))
	r.e.logger.Warn("retrieval stage degraded",
		"run_id", r.result.RunID,
		"stage", stage,
		"kind", string(kind),
		"error", err,
	)
}

// guard runs fn and reports a panic as an error.
func guard(fn func()) func() error {
	return func() (err error) {
		defer func() {
			if v := recover(); v != nil {
				err = fmt.Errorf("%v", v)
			}
		}()
		fn()
		return nil
	}
}

func kindName(err error) string {
	return string(search.KindOf(err))
}

func degradedSuffix(err error) string {
	if err == nil {
		return ""
	}
	if kind := search.KindOf(err); kind != "" {
		return fmt.Sprintf(" (degraded: %s)", kind)
	}
	return " (degraded)"
}

// callContext bounds a single external call. A zero budget inherits ctx.
func callContext(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}
