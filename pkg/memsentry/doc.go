/*
Package memsentry provides a memory-safety circuit breaker for guarded
execution.

# Overview

memsentry wraps arbitrary operations with memory threshold checks
against an injected probe. When usage reaches the critical threshold
the circuit opens and further executions are refused until usage drops
below the warning threshold (hysteresis). Failed or refused executions
roll the caller's state back from an opaque checkpoint, sustained
per-operation memory growth raises leak flags, and every notable
transition lands in a bounded event log for later diagnosis.

The design principle throughout: monitoring must never crash the
monitored application. Storage failures inside the guard are logged
and absorbed; only threshold refusals and the wrapped operation's own
failures surface to the caller, the latter always verbatim.

# Basic Usage

	func main() {
	    guard, err := memsentry.New(probe.NewRuntimeProbe(),
	        memsentry.WithThresholds(3500, 3800),
	    )
	    if err != nil {
	        log.Fatal(err)
	    }

	    err = guard.Execute(context.Background(), "load-model", func(ctx context.Context) error {
	        return loadModel(ctx)
	    })
	    if errors.Is(err, memsentry.ErrThresholdExceeded) {
	        // refused or rolled back; back off and retry later
	    }
	}

# Checkpointing

Supply a snapshot/restore pair and the guard rolls your state back on
any failure path. The payload is opaque; you own the serialization:

	store, _ := checkpoint.NewFileStore("checkpoints")
	guard, _ := memsentry.New(probe.NewRuntimeProbe(),
	    memsentry.WithCheckpoints(checkpoint.NewManager(store)),
	)

	err := guard.Execute(ctx, "rebuild-index", rebuild,
	    memsentry.WithSnapshot(index.Marshal, index.Unmarshal),
	)

The rollback is only as correct as the restore function: the guard
cannot undo side effects it doesn't own.

# Fully Wired

NewFromSettings builds the checkpoint manager, leak detector, and
event log from one explicit settings struct:

	settings, _ := config.FromFile("memsentry.yaml")
	guard, _ := memsentry.NewFromSettings(probe.NewRuntimeProbe(), settings)
	defer guard.Close()

# Concurrency

A Guard is safe for concurrent use. The persisted checkpoint and event
stores assume a single writing process; do not share their backing
files between processes or Guard instances.
*/
package memsentry
