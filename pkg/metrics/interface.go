// Package metrics records retrieval operation counters and stage timings.
package metrics

import "context"

// Collector receives retrieval telemetry. MetricsCollector exports it to
// Prometheus; NoopCollector drops it when metrics are disabled.
type Collector interface {
	// RecordOperation counts a finished run by final status (ok, degraded, failed).
	RecordOperation(ctx context.Context, operation string, status string, durationMs int64)
	RecordStage(ctx context.Context, operation string, stage string, durationMs int64)
	// RecordError counts a degraded stage by error kind.
	RecordError(ctx context.Context, operation string, errorType string)
	// RecordResultSize observes how many items of kind (entities, paths,
	// documents, citations) an operation returned.
	RecordResultSize(ctx context.Context, operation string, kind string, count int)
	// SetStorageCount reports how many items of storageType a load wrote.
	SetStorageCount(ctx context.Context, storageType string, count int64)
	// SetBreakerState reports the state a circuit breaker moved to.
	SetBreakerState(ctx context.Context, breaker string, state string)
}
