package event

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Defaults for the in-memory buffer and flush cadence.
const (
	DefaultMaxInMemory = 1000
	DefaultAutoFlush   = 20
)

// Log is an append-only, bounded in-memory buffer of guard events.
//
// Events accumulate in memory (trimmed to the configured bound, oldest
// dropped first) and are merged into a persisted JSON array once the
// unflushed count reaches the auto-flush threshold. The flush is a
// read-merge-write of the whole file: the backing file must not be
// written by another process or Log instance concurrently.
//
// Analytics (EventsByType, BreakFrequency, Summary) are computed from
// the current in-memory buffer only, not the persisted history.
type Log struct {
	path      string
	maxEvents int
	autoFlush int
	logger    *slog.Logger

	mu        sync.Mutex
	events    []Event
	unflushed int
}

// Option configures a Log.
type Option func(*Log)

// WithMaxInMemory bounds the in-memory buffer. Default: DefaultMaxInMemory.
func WithMaxInMemory(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxEvents = n
		}
	}
}

// WithAutoFlush sets how many unflushed events trigger a flush.
// Default: DefaultAutoFlush. Zero or negative disables auto-flushing.
func WithAutoFlush(n int) Option {
	return func(l *Log) {
		l.autoFlush = n
	}
}

// WithLogger sets the logger for flush degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// NewLog creates an event log persisted at path.
// An empty path keeps the log purely in-memory (Flush is a no-op).
func NewLog(path string, opts ...Option) *Log {
	l := &Log{
		path:      path,
		maxEvents: DefaultMaxInMemory,
		autoFlush: DefaultAutoFlush,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an event of the given type and trims the buffer.
// Reaching the auto-flush threshold triggers a flush.
func (l *Log) Record(typ Type, memoryMB float64, details map[string]any) Event {
	evt := newEvent(typ, time.Now(), memoryMB, details)

	l.mu.Lock()
	l.events = append(l.events, evt)
	if len(l.events) > l.maxEvents {
		l.events = l.events[len(l.events)-l.maxEvents:]
	}
	l.unflushed++
	shouldFlush := l.autoFlush > 0 && l.unflushed >= l.autoFlush
	l.mu.Unlock()

	if shouldFlush {
		l.Flush()
	}
	return evt
}

// CircuitBreak records a circuit_break event.
func (l *Log) CircuitBreak(usageMB, thresholdMB float64) Event {
	return l.Record(TypeCircuitBreak, usageMB, map[string]any{
		"threshold_mb": thresholdMB,
	})
}

// CircuitReset records a circuit_reset event.
func (l *Log) CircuitReset(usageMB, thresholdMB float64) Event {
	return l.Record(TypeCircuitReset, usageMB, map[string]any{
		"threshold_mb": thresholdMB,
	})
}

// MemoryLeak records a memory_leak event for an operation.
func (l *Log) MemoryLeak(operation string, increaseMB float64, samples int) Event {
	return l.Record(TypeMemoryLeak, 0, map[string]any{
		"operation":   operation,
		"increase_mb": increaseMB,
		"samples":     samples,
	})
}

// RecoveryAttempt records a recovery_attempt event.
func (l *Log) RecoveryAttempt(checkpointID string, success bool) Event {
	return l.Record(TypeRecoveryAttempt, 0, map[string]any{
		"checkpoint_id": checkpointID,
		"success":       success,
	})
}

// Flush merges unflushed events into the persisted JSON array.
//
// The existing file is read, the unflushed tail appended, and the
// whole array rewritten. A missing or corrupt file is tolerated by
// starting fresh with a warning. Flush failures are logged, never
// propagated: monitoring must not crash the monitored application.
func (l *Log) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushLocked()
}

func (l *Log) flushLocked() {
	if l.path == "" || l.unflushed == 0 {
		l.unflushed = 0
		return
	}

	tail := l.events
	if l.unflushed < len(tail) {
		tail = tail[len(tail)-l.unflushed:]
	}

	persisted := l.readPersisted()
	persisted = append(persisted, tail...)

	if err := l.writePersisted(persisted); err != nil {
		l.logger.Warn("event flush failed",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
		return
	}
	l.unflushed = 0
}

// readPersisted loads the existing event array, or nil if absent/corrupt.
func (l *Log) readPersisted() []Event {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		l.logger.Warn("event store unreadable, starting fresh",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
		return nil
	}

	var persisted []Event
	if err := json.Unmarshal(data, &persisted); err != nil {
		l.logger.Warn("event store corrupt, starting fresh",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return persisted
}

// writePersisted rewrites the event array via temp file + rename.
func (l *Log) writePersisted(events []Event) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create event dir: %w", err)
		}
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}

// Events returns a snapshot of the in-memory buffer, oldest first.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// UnflushedCount returns how many events await the next flush.
func (l *Log) UnflushedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unflushed
}

// Close flushes any pending events.
func (l *Log) Close() {
	l.Flush()
}
