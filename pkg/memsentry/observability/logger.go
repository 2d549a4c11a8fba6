// Package observability provides production-grade observability
// features for memsentry: structured logging, metrics, and tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// LogExecuteStart logs the start of a guarded operation.
func LogExecuteStart(logger *slog.Logger, operation string, usageMB float64) {
	if logger == nil {
		return
	}
	logger.Debug("guarded operation starting",
		slog.String("operation", operation),
		slog.Float64("memory_mb", usageMB),
	)
}

// LogExecuteComplete logs successful completion of a guarded operation.
func LogExecuteComplete(logger *slog.Logger, operation string, durationMs, deltaMB float64) {
	if logger == nil {
		return
	}
	logger.Debug("guarded operation completed",
		slog.String("operation", operation),
		slog.Float64("duration_ms", durationMs),
		slog.Float64("memory_delta_mb", deltaMB),
	)
}

// LogExecuteError logs a guarded operation failure.
func LogExecuteError(logger *slog.Logger, operation string, err error) {
	if logger == nil {
		return
	}
	logger.Error("guarded operation failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// LogCircuitOpen logs the CLOSED to OPEN transition.
func LogCircuitOpen(logger *slog.Logger, usageMB, thresholdMB float64) {
	if logger == nil {
		return
	}
	logger.Error("memory circuit opened",
		slog.Float64("memory_mb", usageMB),
		slog.Float64("critical_threshold_mb", thresholdMB),
	)
}

// LogCircuitClose logs the OPEN to CLOSED transition.
func LogCircuitClose(logger *slog.Logger, usageMB, thresholdMB float64) {
	if logger == nil {
		return
	}
	logger.Info("memory circuit closed",
		slog.Float64("memory_mb", usageMB),
		slog.Float64("warning_threshold_mb", thresholdMB),
	)
}

// LogMemoryWarning logs usage inside the warning band.
// No event is recorded for plain warnings to avoid log flooding,
// so this is the only trace of the condition.
func LogMemoryWarning(logger *slog.Logger, usageMB, warningMB float64) {
	if logger == nil {
		return
	}
	logger.Warn("memory usage in warning band",
		slog.Float64("memory_mb", usageMB),
		slog.Float64("warning_threshold_mb", warningMB),
	)
}

// LogRejection logs an Execute call refused by a threshold check.
func LogRejection(logger *slog.Logger, operation, phase string, usageMB float64) {
	if logger == nil {
		return
	}
	logger.Warn("guarded operation rejected",
		slog.String("operation", operation),
		slog.String("phase", phase),
		slog.Float64("memory_mb", usageMB),
	)
}

// LogRestoreAttempt logs a checkpoint restore attempt (non-fatal path).
func LogRestoreAttempt(logger *slog.Logger, checkpointID string, success bool) {
	if logger == nil {
		return
	}
	logger.Info("checkpoint restore attempted",
		slog.String("checkpoint_id", checkpointID),
		slog.Bool("success", success),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
