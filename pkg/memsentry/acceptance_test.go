package memsentry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/memsentry/pkg/memsentry/checkpoint"
	"github.com/randalmurphal/memsentry/pkg/memsentry/event"
	"github.com/randalmurphal/memsentry/pkg/memsentry/leak"
	"github.com/randalmurphal/memsentry/pkg/memsentry/probe"
)

// End-to-end journeys through the wired guard stack. Component-level
// behavior is covered in the per-package tests; these verify the
// pieces compose.

// TestAcceptance_CircuitTripSequence walks usage up through the
// warning band to a trip: the band permits execution, the trip records
// exactly one circuit_break event.
func TestAcceptance_CircuitTripSequence(t *testing.T) {
	events := event.NewLog("", event.WithAutoFlush(0))
	p := probe.NewStubProbe(3000, 3600, 3900)
	g, err := New(p,
		WithThresholds(3500, 3800),
		WithEventLog(events),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, g.CheckThreshold(ctx), "3000 MB: well clear")
	assert.True(t, g.CheckThreshold(ctx), "3600 MB: warning band still permits")
	assert.False(t, g.CheckThreshold(ctx), "3900 MB: tripped")

	breaks := events.EventsByType(event.TypeCircuitBreak)
	require.Len(t, breaks, 1, "only the trip itself is an event")
	assert.Equal(t, 3900.0, breaks[0].MemoryUsageMB)
	assert.Equal(t, 3800.0, breaks[0].Details["threshold_mb"])
	assert.Empty(t, events.EventsByType(event.TypeCircuitReset))
}

// TestAcceptance_LeakFlagAfterSustainedGrowth drives three consecutive
// over-threshold executions and expects a raised flag, a single
// memory_leak event, and the operation in the diagnostic report.
func TestAcceptance_LeakFlagAfterSustainedGrowth(t *testing.T) {
	events := event.NewLog("", event.WithAutoFlush(0))
	detector := leak.NewDetector(
		leak.WithThresholdMB(10),
		leak.WithConsecutive(3),
		leak.WithRecorder(leak.RecorderFunc(func(operation string, increaseMB float64, samples int) {
			events.MemoryLeak(operation, increaseMB, samples)
		})),
	)
	// Per execution: pre-check, before, post-check, after.
	// Growth per call: 12, 15, 20 MB.
	p := probe.NewStubProbe(
		100, 100, 112, 112,
		112, 112, 127, 127,
		127, 127, 147, 147,
	)
	g, err := New(p,
		WithThresholds(3500, 3800),
		WithLeakDetector(detector),
		WithEventLog(events),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	noop := func(ctx context.Context) error { return nil }
	ctx := context.Background()

	require.NoError(t, g.Execute(ctx, "cache-fill", noop))
	assert.False(t, detector.Flagged("cache-fill"), "one oversized call is not a leak")

	require.NoError(t, g.Execute(ctx, "cache-fill", noop))
	assert.False(t, detector.Flagged("cache-fill"))

	require.NoError(t, g.Execute(ctx, "cache-fill", noop))
	assert.True(t, detector.Flagged("cache-fill"), "third consecutive growth raises the flag")

	leaks := events.EventsByType(event.TypeMemoryLeak)
	require.Len(t, leaks, 1, "the flag notifies once per episode")
	assert.Equal(t, "cache-fill", leaks[0].Details["operation"])

	report := g.GetLeakReport()
	require.Contains(t, report, "cache-fill")
	assert.True(t, report["cache-fill"].Flagged)
	assert.InDelta(t, 20.0, report["cache-fill"].MaxIncreaseMB, 0.001)
}

// TestAcceptance_FailureRollsBackExactlyOnce runs an operation that
// mutates state and fails: the caller sees the operation's own error,
// the state is back to the snapshot, and restore ran exactly once.
func TestAcceptance_FailureRollsBackExactlyOnce(t *testing.T) {
	manager := checkpoint.NewManager(checkpoint.NewMemoryStore())
	events := event.NewLog("", event.WithAutoFlush(0))
	g, err := New(probe.NewStubProbe(100),
		WithThresholds(3500, 3800),
		WithCheckpoints(manager),
		WithEventLog(events),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	type appState struct{ Counter int }
	state := appState{Counter: 7}
	restoreCalls := 0

	opErr := errors.New("partition unavailable")
	err = g.Execute(context.Background(), "rebalance",
		func(ctx context.Context) error {
			state.Counter = 9999
			return opErr
		},
		WithSnapshot(
			func() ([]byte, error) { return []byte{byte(state.Counter)}, nil },
			func(data []byte) error {
				restoreCalls++
				state.Counter = int(data[0])
				return nil
			},
		),
	)

	assert.Same(t, opErr, err, "guard failure handling must not mask the cause")
	assert.Equal(t, 1, restoreCalls)
	assert.Equal(t, 7, state.Counter)

	attempts := events.EventsByType(event.TypeRecoveryAttempt)
	require.Len(t, attempts, 1)
	assert.Equal(t, true, attempts[0].Details["success"])

	summary := events.GetSummary()
	assert.Equal(t, 1, summary.RecoveryAttempts)
	assert.Equal(t, 1, summary.SuccessfulRecoveries)
	assert.Equal(t, 1.0, summary.RecoverySuccessRate)
}

// TestAcceptance_OpenCircuitRefusesUntilRecovery verifies the full
// trip/refuse/reset arc through Execute rather than bare checks.
func TestAcceptance_OpenCircuitRefusesUntilRecovery(t *testing.T) {
	// First Execute trips on pre-check (3900). Second runs entirely in
	// the warning band (3600) and leaves the circuit open. Third runs
	// below warning (3000) and closes it. Per successful execution the
	// probe is sampled four times: pre-check, before, post-check, after.
	p := probe.NewStubProbe(3900, 3600, 3600, 3600, 3600, 3000, 3000, 3000, 3000)
	events := event.NewLog("", event.WithAutoFlush(0))
	g, err := New(p,
		WithThresholds(3500, 3800),
		WithEventLog(events),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	noop := func(ctx context.Context) error { return nil }

	err = g.Execute(ctx, "work", noop)
	assert.ErrorIs(t, err, ErrThresholdExceeded)
	assert.True(t, g.IsOpen())

	err = g.Execute(ctx, "work", noop)
	assert.NoError(t, err, "warning band permits execution")
	assert.True(t, g.IsOpen(), "band samples never close an open circuit")

	err = g.Execute(ctx, "work", noop)
	assert.NoError(t, err)
	assert.False(t, g.IsOpen(), "sub-warning sample closed the circuit")

	assert.Len(t, events.EventsByType(event.TypeCircuitBreak), 1)
	assert.Len(t, events.EventsByType(event.TypeCircuitReset), 1)
}
