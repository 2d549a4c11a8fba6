package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records guard metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordExecution records a guarded operation with its duration,
	// memory delta, and error status.
	RecordExecution(ctx context.Context, operation string, duration time.Duration, deltaMB float64, err error)

	// RecordRejection records an Execute call refused by a threshold check.
	RecordRejection(ctx context.Context, operation, phase string, usageMB float64)

	// RecordCircuitTransition records a circuit open/close transition.
	RecordCircuitTransition(ctx context.Context, open bool, usageMB float64)

	// RecordCheckpoint records a checkpoint payload save.
	RecordCheckpoint(ctx context.Context, checkpointID string, sizeBytes int64)

	// RecordLeakFlag records a leak flag being raised for an operation.
	RecordLeakFlag(ctx context.Context, operation string)

	// RecordRecovery records a restore attempt and its outcome.
	RecordRecovery(ctx context.Context, success bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	executions     metric.Int64Counter
	execLatency    metric.Float64Histogram
	execErrors     metric.Int64Counter
	memoryDelta    metric.Float64Histogram
	rejections     metric.Int64Counter
	transitions    metric.Int64Counter
	checkpointSize metric.Int64Histogram
	leakFlags      metric.Int64Counter
	recoveries     metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("memsentry")

	executions, err := meter.Int64Counter("memsentry.executions",
		metric.WithDescription("Number of guarded operation executions"),
	)
	if err != nil {
		return nil, err
	}

	execLatency, err := meter.Float64Histogram("memsentry.execution.latency_ms",
		metric.WithDescription("Guarded operation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	execErrors, err := meter.Int64Counter("memsentry.execution.errors",
		metric.WithDescription("Number of guarded operation failures"),
	)
	if err != nil {
		return nil, err
	}

	memoryDelta, err := meter.Float64Histogram("memsentry.execution.memory_delta_mb",
		metric.WithDescription("Per-operation memory growth in megabytes"),
		metric.WithUnit("MBy"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter("memsentry.rejections",
		metric.WithDescription("Executions refused by threshold checks"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("memsentry.circuit.transitions",
		metric.WithDescription("Circuit open/close transitions"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("memsentry.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint payload size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	leakFlags, err := meter.Int64Counter("memsentry.leak.flags",
		metric.WithDescription("Leak flags raised per operation"),
	)
	if err != nil {
		return nil, err
	}

	recoveries, err := meter.Int64Counter("memsentry.recoveries",
		metric.WithDescription("Checkpoint restore attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		executions:     executions,
		execLatency:    execLatency,
		execErrors:     execErrors,
		memoryDelta:    memoryDelta,
		rejections:     rejections,
		transitions:    transitions,
		checkpointSize: checkpointSize,
		leakFlags:      leakFlags,
		recoveries:     recoveries,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordExecution records a guarded operation.
func (m *otelMetrics) RecordExecution(ctx context.Context, operation string, duration time.Duration, deltaMB float64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
	}

	m.executions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.execLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.memoryDelta.Record(ctx, deltaMB, metric.WithAttributes(attrs...))

	if err != nil {
		m.execErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRejection records a refused execution.
func (m *otelMetrics) RecordRejection(ctx context.Context, operation, phase string, usageMB float64) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("phase", phase),
	))
}

// RecordCircuitTransition records an open/close transition.
func (m *otelMetrics) RecordCircuitTransition(ctx context.Context, open bool, usageMB float64) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("open", open),
	))
}

// RecordCheckpoint records a checkpoint payload save.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, checkpointID string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes)
}

// RecordLeakFlag records a raised leak flag.
func (m *otelMetrics) RecordLeakFlag(ctx context.Context, operation string) {
	m.leakFlags.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordRecovery records a restore attempt.
func (m *otelMetrics) RecordRecovery(ctx context.Context, success bool) {
	m.recoveries.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}
