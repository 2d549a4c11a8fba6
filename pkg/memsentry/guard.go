package memsentry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/memsentry/pkg/memsentry/checkpoint"
	"github.com/randalmurphal/memsentry/pkg/memsentry/config"
	"github.com/randalmurphal/memsentry/pkg/memsentry/event"
	"github.com/randalmurphal/memsentry/pkg/memsentry/leak"
	"github.com/randalmurphal/memsentry/pkg/memsentry/observability"
	"github.com/randalmurphal/memsentry/pkg/memsentry/probe"
)

// Func is a unit of work executed through the guard's
// pre-check/run/post-check/recover protocol.
type Func func(ctx context.Context) error

// Guard is a memory circuit breaker. It wraps operations with
// threshold checks against an injected memory probe, trips into a
// blocking OPEN state before resource exhaustion, drives
// checkpoint-based rollback on failure, and feeds a leak detector
// and event log for later diagnosis.
//
// The circuit has two states. CLOSED permits execution; a sample at
// or above the critical threshold opens it. OPEN refuses execution;
// only a sample below the warning threshold closes it again. The gap
// between the thresholds is deliberate hysteresis so the circuit
// doesn't flap near the critical line.
//
// A Guard is safe for concurrent use, but the persisted stores behind
// its checkpoint manager and event log assume a single writing
// process.
type Guard struct {
	probe       probe.Probe
	checkpoints *checkpoint.Manager
	leaks       *leak.Detector
	events      *event.Log
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	tracing     bool

	mu         sync.Mutex
	warningMB  float64
	criticalMB float64
	open       bool
}

// New creates a Guard around the given memory probe.
func New(p probe.Probe, opts ...Option) (*Guard, error) {
	if p == nil {
		return nil, ErrNilProbe
	}

	def := config.Default()
	g := &Guard{
		probe:      p,
		logger:     slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
		warningMB:  def.WarningThresholdMB,
		criticalMB: def.CriticalThresholdMB,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.warningMB >= g.criticalMB {
		return nil, fmt.Errorf(
			"warning threshold (%.1f MB) must be below critical threshold (%.1f MB): %w",
			g.warningMB, g.criticalMB, config.ErrInvalidThresholds)
	}
	return g, nil
}

// NewFromSettings builds a fully wired Guard from explicit settings:
// a file-backed checkpoint manager, a leak detector, and an event log
// that receives leak notifications. Additional options are applied on
// top and may override any of them.
func NewFromSettings(p probe.Probe, s config.Settings, opts ...Option) (*Guard, error) {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}

	store, err := checkpoint.NewFileStore(s.CheckpointDir)
	if err != nil {
		return nil, err
	}

	events := event.NewLog(s.EventLogPath,
		event.WithMaxInMemory(s.MaxEventsInMemory),
		event.WithAutoFlush(s.AutoFlushCount),
	)
	manager := checkpoint.NewManager(store,
		checkpoint.WithMaxCheckpoints(s.MaxCheckpoints),
	)
	detector := leak.NewDetector(
		leak.WithThresholdMB(s.LeakThresholdMB),
		leak.WithTrackingWindow(s.TrackingWindow),
		leak.WithConsecutive(s.LeakConsecutive),
		leak.WithRecorder(leak.RecorderFunc(func(operation string, increaseMB float64, samples int) {
			events.MemoryLeak(operation, increaseMB, samples)
		})),
	)

	base := []Option{
		WithThresholds(s.WarningThresholdMB, s.CriticalThresholdMB),
		WithCheckpoints(manager),
		WithLeakDetector(detector),
		WithEventLog(events),
	}
	return New(p, append(base, opts...)...)
}

// CheckThreshold samples current memory and runs the hysteresis state
// machine. It returns false when execution must be refused.
//
// Usage in the warning band (warning <= usage < critical) is
// permitted; it is logged but records no event, to avoid flooding the
// event store with non-transitions.
func (g *Guard) CheckThreshold(ctx context.Context) bool {
	_, allowed := g.checkThreshold(ctx)
	return allowed
}

// checkThreshold returns the sampled usage alongside the verdict.
func (g *Guard) checkThreshold(ctx context.Context) (float64, bool) {
	usage := g.probe.ProcessMemoryMB()

	g.mu.Lock()
	warning, critical := g.warningMB, g.criticalMB
	wasOpen := g.open
	switch {
	case usage >= critical:
		g.open = true
	case usage < warning:
		g.open = false
	}
	g.mu.Unlock()

	switch {
	case usage >= critical:
		if !wasOpen {
			observability.LogCircuitOpen(g.logger, usage, critical)
			if g.events != nil {
				g.events.CircuitBreak(usage, critical)
			}
			g.metrics.RecordCircuitTransition(ctx, true, usage)
		}
		return usage, false

	case usage >= warning:
		observability.LogMemoryWarning(g.logger, usage, warning)
		return usage, true

	default:
		if wasOpen {
			observability.LogCircuitClose(g.logger, usage, warning)
			if g.events != nil {
				g.events.CircuitReset(usage, warning)
			}
			g.metrics.RecordCircuitTransition(ctx, false, usage)
		}
		return usage, true
	}
}

// Execute runs fn through the guard protocol:
//
//  1. Allocate a checkpoint and save the caller's snapshot, if a
//     checkpoint manager and snapshot pair are configured.
//  2. Pre-check thresholds; on refusal the operation never starts and
//     a ThresholdError is returned after a best-effort restore.
//  3. Run fn. An error from fn triggers a best-effort restore and is
//     returned verbatim, never wrapped; a panic triggers the restore
//     and is re-panicked unchanged.
//  4. Post-check thresholds on memory sampled strictly after fn
//     returned; refusal rolls back and returns a ThresholdError even
//     though the operation ran.
//  5. Feed the before/after samples to the leak detector and record
//     duration and memory delta.
//
// Execute is synchronous: once fn starts the guard cannot interrupt
// it. Cancellation of ctx is fn's responsibility.
func (g *Guard) Execute(ctx context.Context, operation string, fn Func, opts ...ExecOption) (err error) {
	if fn == nil {
		return ErrNilOperation
	}

	var cfg execConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	execCtx := ctx
	var span trace.Span
	if g.tracing {
		execCtx, span = g.spans.StartExecuteSpan(ctx, operation)
		defer func() {
			g.spans.EndSpanWithError(span, err)
		}()
	}

	var cp *checkpoint.Checkpoint
	if g.checkpoints != nil {
		cp = g.checkpoints.Create()
		if cfg.snapshot != nil {
			payload, snapErr := cfg.snapshot()
			if snapErr != nil {
				g.logger.Warn("state snapshot failed",
					slog.String("operation", operation),
					slog.String("checkpoint_id", cp.ID),
					slog.String("error", snapErr.Error()),
				)
			} else if g.checkpoints.SaveState(cp, payload) == nil && cp.Saved() {
				g.metrics.RecordCheckpoint(execCtx, cp.ID, int64(len(payload)))
			}
		}
	}

	if usage, allowed := g.checkThreshold(execCtx); !allowed {
		g.attemptRestore(execCtx, cp, cfg.restore)
		observability.LogRejection(g.logger, operation, string(PhasePre), usage)
		g.metrics.RecordRejection(execCtx, operation, string(PhasePre), usage)
		return &ThresholdError{
			Operation:   operation,
			Phase:       PhasePre,
			UsageMB:     usage,
			ThresholdMB: g.critical(),
		}
	}

	before := g.probe.ProcessMemoryMB()
	observability.LogExecuteStart(g.logger, operation, before)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			g.attemptRestore(execCtx, cp, cfg.restore)
			panic(r)
		}
	}()

	if opErr := fn(execCtx); opErr != nil {
		g.attemptRestore(execCtx, cp, cfg.restore)
		observability.LogExecuteError(g.logger, operation, opErr)
		g.metrics.RecordExecution(execCtx, operation, time.Since(start), 0, opErr)
		// Recovery must never mask the original failure.
		return opErr
	}

	// Post-check observes memory sampled strictly after fn returned.
	if usage, allowed := g.checkThreshold(execCtx); !allowed {
		g.attemptRestore(execCtx, cp, cfg.restore)
		observability.LogRejection(g.logger, operation, string(PhasePost), usage)
		g.metrics.RecordRejection(execCtx, operation, string(PhasePost), usage)
		return &ThresholdError{
			Operation:   operation,
			Phase:       PhasePost,
			UsageMB:     usage,
			ThresholdMB: g.critical(),
		}
	}

	after := g.probe.ProcessMemoryMB()
	duration := time.Since(start)
	delta := after - before

	if g.leaks != nil {
		wasFlagged := g.leaks.Flagged(operation)
		withinBudget := g.leaks.RecordAndEvaluate(operation, before, after)
		if !withinBudget {
			g.logger.Warn("operation exceeded memory growth budget",
				slog.String("operation", operation),
				slog.Float64("delta_mb", delta),
			)
		}
		if !wasFlagged && g.leaks.Flagged(operation) {
			g.metrics.RecordLeakFlag(execCtx, operation)
		}
	}

	observability.LogExecuteComplete(g.logger, operation, float64(duration.Milliseconds()), delta)
	g.metrics.RecordExecution(execCtx, operation, duration, delta, nil)
	return nil
}

// WithCustomThreshold runs fn with a temporarily overridden critical
// threshold. The original threshold is restored afterward even if the
// operation fails or panics.
//
// The override is guard-wide for its duration; interleaved Execute
// calls on other goroutines observe it too.
func (g *Guard) WithCustomThreshold(ctx context.Context, criticalMB float64, operation string, fn Func, opts ...ExecOption) error {
	g.mu.Lock()
	original := g.criticalMB
	g.criticalMB = criticalMB
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.criticalMB = original
		g.mu.Unlock()
	}()

	return g.Execute(ctx, operation, fn, opts...)
}

// attemptRestore rolls the caller's state back from the checkpoint,
// best-effort. It runs at most once per failing Execute and records a
// recovery_attempt event with the outcome. Nothing here ever
// propagates an error: monitoring must not crash the monitored
// application.
func (g *Guard) attemptRestore(ctx context.Context, cp *checkpoint.Checkpoint, restore RestoreFunc) {
	if cp == nil || restore == nil || !cp.Saved() {
		return
	}

	payload, ok := g.checkpoints.Restore(cp)
	success := false
	if ok {
		if restoreErr := restore(payload); restoreErr != nil {
			g.logger.Warn("checkpoint restore failed",
				slog.String("checkpoint_id", cp.ID),
				slog.String("error", restoreErr.Error()),
			)
		} else {
			success = true
		}
	}

	observability.LogRestoreAttempt(g.logger, cp.ID, success)
	if g.tracing {
		g.spans.AddSpanEvent(ctx, "memsentry.restore",
			attribute.String("checkpoint_id", cp.ID),
			attribute.Bool("success", success),
		)
	}
	if g.events != nil {
		g.events.RecoveryAttempt(cp.ID, success)
	}
	g.metrics.RecordRecovery(ctx, success)
}

// IsOpen reports whether the circuit is currently open.
func (g *Guard) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Thresholds returns the warning and critical thresholds in force.
func (g *Guard) Thresholds() (warningMB, criticalMB float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.warningMB, g.criticalMB
}

func (g *Guard) critical() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.criticalMB
}

// GetLeakReport returns the leak detector's per-operation report, or
// nil when no detector is attached.
func (g *Guard) GetLeakReport() map[string]leak.OperationReport {
	if g.leaks == nil {
		return nil
	}
	return g.leaks.Report()
}

// Events returns the attached event log, or nil.
func (g *Guard) Events() *event.Log {
	return g.events
}

// Checkpoints returns the attached checkpoint manager, or nil.
func (g *Guard) Checkpoints() *checkpoint.Manager {
	return g.checkpoints
}

// Close flushes pending events and closes the checkpoint store.
func (g *Guard) Close() error {
	if g.events != nil {
		g.events.Close()
	}
	if g.checkpoints != nil {
		return g.checkpoints.Close()
	}
	return nil
}
