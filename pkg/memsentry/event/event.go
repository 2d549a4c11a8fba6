// Package event provides a bounded in-memory log of guard events
// with periodic merge-to-disk flushing and derived analytics.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of guard event.
type Type string

// Event types emitted by the guard and its collaborators.
const (
	TypeCircuitBreak    Type = "circuit_break"
	TypeCircuitReset    Type = "circuit_reset"
	TypeMemoryLeak      Type = "memory_leak"
	TypeRecoveryAttempt Type = "recovery_attempt"
	TypeGeneric         Type = "generic"
)

// Event is one structured record of a notable guard transition.
// The on-disk shape keeps both a unix-millisecond timestamp and an
// RFC3339 datetime; downstream diagnostics consumers parse either.
type Event struct {
	ID            string         `json:"id"`
	Type          Type           `json:"type"`
	Timestamp     int64          `json:"timestamp"`
	Datetime      string         `json:"datetime"`
	MemoryUsageMB float64        `json:"memory_usage_mb,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// newEvent stamps a fresh event at the given time.
func newEvent(typ Type, at time.Time, memoryMB float64, details map[string]any) Event {
	return Event{
		ID:            uuid.New().String(),
		Type:          typ,
		Timestamp:     at.UnixMilli(),
		Datetime:      at.Format(time.RFC3339),
		MemoryUsageMB: memoryMB,
		Details:       details,
	}
}

// Time returns the event timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}
