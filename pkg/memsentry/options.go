package memsentry

import (
	"log/slog"

	"github.com/randalmurphal/memsentry/pkg/memsentry/checkpoint"
	"github.com/randalmurphal/memsentry/pkg/memsentry/event"
	"github.com/randalmurphal/memsentry/pkg/memsentry/leak"
	"github.com/randalmurphal/memsentry/pkg/memsentry/observability"
)

// Option configures a Guard at construction time.
type Option func(*Guard)

// WithThresholds sets the hysteresis thresholds in MB.
// The circuit opens at or above critical and closes below warning.
func WithThresholds(warningMB, criticalMB float64) Option {
	return func(g *Guard) {
		g.warningMB = warningMB
		g.criticalMB = criticalMB
	}
}

// WithCheckpoints attaches a checkpoint manager for rollback.
// Without one, Execute runs without checkpoint/restore support.
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(g *Guard) {
		g.checkpoints = m
	}
}

// WithLeakDetector attaches a leak detector fed after each
// successful execution.
func WithLeakDetector(d *leak.Detector) Option {
	return func(g *Guard) {
		g.leaks = d
	}
}

// WithEventLog attaches an event log for circuit and recovery events.
func WithEventLog(l *event.Log) Option {
	return func(g *Guard) {
		g.events = l
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// WithTracing enables OTel spans around guarded executions using the
// global tracer provider.
func WithTracing() Option {
	return func(g *Guard) {
		g.spans = observability.NewSpanManager()
		g.tracing = true
	}
}

// SnapshotFunc serializes the caller's state to an opaque payload.
// The guard never inspects the bytes.
type SnapshotFunc func() ([]byte, error)

// RestoreFunc rebuilds the caller's state from a payload previously
// produced by the paired SnapshotFunc.
type RestoreFunc func(data []byte) error

// execConfig holds per-execution configuration.
type execConfig struct {
	snapshot SnapshotFunc
	restore  RestoreFunc
}

// ExecOption configures a single Execute call.
type ExecOption func(*execConfig)

// WithSnapshot supplies the serialize/restore pair for this call.
// The payload is saved before the pre-check and restored best-effort
// on any failure path. Rollback correctness depends entirely on the
// caller's restore semantics; the guard cannot undo side effects it
// doesn't own.
func WithSnapshot(save SnapshotFunc, restore RestoreFunc) ExecOption {
	return func(c *execConfig) {
		c.snapshot = save
		c.restore = restore
	}
}
