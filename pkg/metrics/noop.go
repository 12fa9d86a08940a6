package metrics

import "context"

var (
	_ Collector = (*NoopCollector)(nil)
	_ Collector = (*MetricsCollector)(nil)
)

// NoopCollector discards everything. It is the default when metrics are disabled.
type NoopCollector struct{}

// NewNoopCollector creates a no-op collector
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (*NoopCollector) RecordOperation(context.Context, string, string, int64) {}
func (*NoopCollector) RecordStage(context.Context, string, string, int64)     {}
func (*NoopCollector) RecordError(context.Context, string, string)            {}
func (*NoopCollector) RecordResultSize(context.Context, string, string, int)  {}
func (*NoopCollector) SetStorageCount(context.Context, string, int64)         {}
func (*NoopCollector) SetBreakerState(context.Context, string, string)        {}
