// Package config defines explicit constructor-time settings for the
// guard and its collaborators. There is no ambient global state: the
// application builds a Settings value and passes it in.
package config

import (
	"errors"
	"fmt"
)

// Settings holds every tunable of the guard stack.
// Zero values are filled from Default() by Normalize.
type Settings struct {
	// WarningThresholdMB is the hysteresis reset line: an open
	// circuit closes again only below this usage.
	WarningThresholdMB float64 `yaml:"warning_threshold_mb" json:"warning_threshold_mb"`

	// CriticalThresholdMB is the trip line: usage at or above it
	// opens the circuit.
	CriticalThresholdMB float64 `yaml:"critical_threshold_mb" json:"critical_threshold_mb"`

	// LeakThresholdMB is the per-call growth considered suspicious.
	LeakThresholdMB float64 `yaml:"leak_threshold_mb" json:"leak_threshold_mb"`

	// TrackingWindow bounds each operation's leak sample window.
	TrackingWindow int `yaml:"tracking_window" json:"tracking_window"`

	// LeakConsecutive is the streak length that raises or clears a
	// leak flag.
	LeakConsecutive int `yaml:"leak_detection_consecutive" json:"leak_detection_consecutive"`

	// MaxCheckpoints bounds the checkpoint registry (FIFO eviction).
	MaxCheckpoints int `yaml:"max_checkpoints" json:"max_checkpoints"`

	// AutoFlushCount is how many unflushed events trigger an event
	// log flush.
	AutoFlushCount int `yaml:"auto_save_count" json:"auto_save_count"`

	// MaxEventsInMemory bounds the in-memory event buffer.
	MaxEventsInMemory int `yaml:"max_events_in_memory" json:"max_events_in_memory"`

	// CheckpointDir is where checkpoint payload blobs live.
	CheckpointDir string `yaml:"checkpoint_dir" json:"checkpoint_dir"`

	// EventLogPath is the persisted event store (JSON array).
	// Empty keeps events in memory only.
	EventLogPath string `yaml:"event_log_path" json:"event_log_path"`
}

// Default returns the documented defaults.
func Default() Settings {
	return Settings{
		WarningThresholdMB:  3500,
		CriticalThresholdMB: 3800,
		LeakThresholdMB:     50,
		TrackingWindow:      20,
		LeakConsecutive:     3,
		MaxCheckpoints:      5,
		AutoFlushCount:      20,
		MaxEventsInMemory:   1000,
		CheckpointDir:       "checkpoints",
		EventLogPath:        "guard_events.json",
	}
}

// Normalize fills unset numeric fields from Default().
func (s Settings) Normalize() Settings {
	def := Default()
	if s.WarningThresholdMB <= 0 {
		s.WarningThresholdMB = def.WarningThresholdMB
	}
	if s.CriticalThresholdMB <= 0 {
		s.CriticalThresholdMB = def.CriticalThresholdMB
	}
	if s.LeakThresholdMB <= 0 {
		s.LeakThresholdMB = def.LeakThresholdMB
	}
	if s.TrackingWindow <= 0 {
		s.TrackingWindow = def.TrackingWindow
	}
	if s.LeakConsecutive <= 0 {
		s.LeakConsecutive = def.LeakConsecutive
	}
	if s.MaxCheckpoints <= 0 {
		s.MaxCheckpoints = def.MaxCheckpoints
	}
	if s.MaxEventsInMemory <= 0 {
		s.MaxEventsInMemory = def.MaxEventsInMemory
	}
	return s
}

// Validate checks threshold coherence after normalization.
func (s Settings) Validate() error {
	if s.WarningThresholdMB >= s.CriticalThresholdMB {
		return fmt.Errorf(
			"warning threshold (%.1f MB) must be below critical threshold (%.1f MB): %w",
			s.WarningThresholdMB, s.CriticalThresholdMB, ErrInvalidThresholds)
	}
	return nil
}

// ErrInvalidThresholds indicates the hysteresis gap is inverted or absent.
var ErrInvalidThresholds = errors.New("invalid threshold configuration")
