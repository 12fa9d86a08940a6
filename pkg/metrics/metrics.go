package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector provides Prometheus metrics collection for retrieval operations
type MetricsCollector struct {
	operationsTotal *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	resultItems     *prometheus.HistogramVec
	storageCount    *prometheus.GaugeVec
	breakerState    *prometheus.GaugeVec
	registry        *prometheus.Registry
}

// NewCollector creates a new Prometheus metrics collector with its own registry
func NewCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_operations_total",
			Help: "Total number of retrieval operations by type and final status",
		},
		[]string{"operation", "status"},
	)

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphrag_stage_duration_seconds",
			Help:    "Duration of retrieval stages by operation and stage",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"operation", "stage"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_errors_total",
			Help: "Total number of degraded stages by operation and error type",
		},
		[]string{"operation", "error_type"},
	)

	resultItems := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphrag_result_items",
			Help:    "Number of items returned per operation by kind",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"operation", "kind"},
	)

	storageCount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graphrag_storage_count",
			Help: "Current count of stored items by type",
		},
		[]string{"type"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graphrag_breaker_state",
			Help: "Circuit breaker state: 1 for the current state, 0 otherwise",
		},
		[]string{"breaker", "state"},
	)

	registry.MustRegister(operationsTotal, stageDuration, errorsTotal, resultItems, storageCount, breakerState)

	return &MetricsCollector{
		operationsTotal: operationsTotal,
		stageDuration:   stageDuration,
		errorsTotal:     errorsTotal,
		resultItems:     resultItems,
		storageCount:    storageCount,
		breakerState:    breakerState,
		registry:        registry,
	}
}

// RecordOperation records the completion of an operation
func (m *MetricsCollector) RecordOperation(ctx context.Context, operation string, status string, durationMs int64) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.stageDuration.WithLabelValues(operation, "total").Observe(float64(durationMs) / 1000.0)
}

// RecordStage records the duration of a specific stage within an operation
func (m *MetricsCollector) RecordStage(ctx context.Context, operation string, stage string, durationMs int64) {
	m.stageDuration.WithLabelValues(operation, stage).Observe(float64(durationMs) / 1000.0)
}

// RecordError records an error occurrence
func (m *MetricsCollector) RecordError(ctx context.Context, operation string, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordResultSize records how many items of a kind an operation returned
func (m *MetricsCollector) RecordResultSize(ctx context.Context, operation string, kind string, count int) {
	m.resultItems.WithLabelValues(operation, kind).Observe(float64(count))
}

// SetStorageCount sets the current count for a storage type
func (m *MetricsCollector) SetStorageCount(ctx context.Context, storageType string, count int64) {
	m.storageCount.WithLabelValues(storageType).Set(float64(count))
}

// breakerStates are the states a circuit breaker can be in.
var breakerStates = []string{"closed", "half-open", "open"}

// SetBreakerState marks state as current for breaker and clears the others.
func (m *MetricsCollector) SetBreakerState(ctx context.Context, breaker string, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.breakerState.WithLabelValues(breaker, s).Set(v)
	}
}

// Registry returns the Prometheus registry for HTTP exposure
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}
