// Package leak detects sustained per-operation memory growth across
// guarded calls.
//
// Two signals come out of every recorded call and they are not the
// same thing: the immediate verdict (did this one call grow more than
// the threshold) and the persistent per-operation flag (did the last
// N calls all grow). A single oversized call can fail the immediate
// check while the flag stays down; the flag only rises after a
// sustained streak and only clears after an equally long quiet streak.
package leak

import (
	"sync"
	"time"
)

// Defaults for window bookkeeping.
const (
	DefaultTrackingWindow = 20
	DefaultConsecutive    = 3
	DefaultThresholdMB    = 50
)

// Recorder receives leak notifications.
type Recorder interface {
	MemoryLeak(operation string, increaseMB float64, samples int)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(operation string, increaseMB float64, samples int)

// MemoryLeak implements Recorder.
func (f RecorderFunc) MemoryLeak(operation string, increaseMB float64, samples int) {
	f(operation, increaseMB, samples)
}

// sample is one before/after observation of a guarded call.
type sample struct {
	beforeMB   float64
	afterMB    float64
	observedAt time.Time
}

func (s sample) diff() float64 {
	return s.afterMB - s.beforeMB
}

// OperationReport summarizes one operation's window for diagnostics.
type OperationReport struct {
	AvgIncreaseMB float64 `json:"average_increase_mb"`
	MaxIncreaseMB float64 `json:"max_increase_mb"`
	CallCount     int     `json:"call_count"`
	Flagged       bool    `json:"is_flagged"`
}

// Detector tracks per-operation memory deltas over a sliding window
// and maintains a persistent leak flag per operation name.
// Safe for concurrent use.
type Detector struct {
	thresholdMB float64
	window      int
	consecutive int
	recorder    Recorder

	mu      sync.Mutex
	samples map[string][]sample
	flagged map[string]bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithThresholdMB sets the per-call growth threshold in MB.
// Default: DefaultThresholdMB.
func WithThresholdMB(mb float64) Option {
	return func(d *Detector) {
		if mb > 0 {
			d.thresholdMB = mb
		}
	}
}

// WithTrackingWindow bounds each operation's sample window.
// Default: DefaultTrackingWindow.
func WithTrackingWindow(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.window = n
		}
	}
}

// WithConsecutive sets how many consecutive over-threshold calls raise
// the flag (and how many quiet calls clear it). Default: DefaultConsecutive.
func WithConsecutive(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.consecutive = n
		}
	}
}

// WithRecorder sets the sink for memory_leak notifications.
func WithRecorder(r Recorder) Option {
	return func(d *Detector) {
		d.recorder = r
	}
}

// NewDetector creates a leak detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		thresholdMB: DefaultThresholdMB,
		window:      DefaultTrackingWindow,
		consecutive: DefaultConsecutive,
		samples:     make(map[string][]sample),
		flagged:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RecordAndEvaluate appends a before/after observation for the
// operation and returns the immediate, call-local verdict:
// true when this call's growth stayed within the threshold.
//
// Independently of the return value, the persistent flag is raised
// after `consecutive` strictly-positive over-threshold diffs in a row
// (emitting a memory_leak notification exactly once per episode) and
// cleared after `consecutive` within-threshold diffs in a row.
func (d *Detector) RecordAndEvaluate(operation string, beforeMB, afterMB float64) bool {
	d.mu.Lock()

	window := append(d.samples[operation], sample{
		beforeMB:   beforeMB,
		afterMB:    afterMB,
		observedAt: time.Now(),
	})
	if len(window) > d.window {
		window = window[len(window)-d.window:]
	}
	d.samples[operation] = window

	diff := afterMB - beforeMB

	var notifyIncrease float64
	notify := false

	if diff > d.thresholdMB && !d.flagged[operation] {
		if d.streak(window, func(v float64) bool { return v > d.thresholdMB }) {
			d.flagged[operation] = true
			notify = true
			notifyIncrease = avgDiff(window)
		}
	}

	if d.flagged[operation] && !notify {
		if d.streak(window, func(v float64) bool { return v <= d.thresholdMB }) {
			d.flagged[operation] = false
		}
	}

	samples := len(window)
	d.mu.Unlock()

	if notify && d.recorder != nil {
		d.recorder.MemoryLeak(operation, notifyIncrease, samples)
	}

	return diff <= d.thresholdMB
}

// streak reports whether the `consecutive` most-recent diffs all
// satisfy the predicate.
func (d *Detector) streak(window []sample, pred func(float64) bool) bool {
	if len(window) < d.consecutive {
		return false
	}
	for i := len(window) - 1; i >= len(window)-d.consecutive; i-- {
		if !pred(window[i].diff()) {
			return false
		}
	}
	return true
}

// Flagged reports whether the operation currently carries a leak flag.
func (d *Detector) Flagged(operation string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flagged[operation]
}

// Report returns per-operation window statistics. An operation is
// included when it is flagged or its average increase exceeds the
// threshold.
func (d *Detector) Report() map[string]OperationReport {
	d.mu.Lock()
	defer d.mu.Unlock()

	report := make(map[string]OperationReport)
	for op, window := range d.samples {
		if len(window) == 0 {
			continue
		}

		var sum, max float64
		for i, s := range window {
			diff := s.diff()
			sum += diff
			if i == 0 || diff > max {
				max = diff
			}
		}
		avg := sum / float64(len(window))

		if d.flagged[op] || avg > d.thresholdMB {
			report[op] = OperationReport{
				AvgIncreaseMB: avg,
				MaxIncreaseMB: max,
				CallCount:     len(window),
				Flagged:       d.flagged[op],
			}
		}
	}
	return report
}

// Reset clears the window and flag for one operation.
func (d *Detector) Reset(operation string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.samples, operation)
	delete(d.flagged, operation)
}

// ResetAll clears all windows and flags.
func (d *Detector) ResetAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = make(map[string][]sample)
	d.flagged = make(map[string]bool)
}

// avgDiff returns the mean growth across the window.
func avgDiff(window []sample) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		sum += s.diff()
	}
	return sum / float64(len(window))
}
