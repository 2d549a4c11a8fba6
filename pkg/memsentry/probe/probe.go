// Package probe provides process memory sampling for the guard.
package probe

import (
	"runtime"
	"sync"
)

// Probe reports the current process memory usage in megabytes.
// Implementations must be safe for concurrent use.
type Probe interface {
	// ProcessMemoryMB returns the current resident memory of this
	// process in MB. Implementations should be cheap enough to call
	// twice per guarded operation.
	ProcessMemoryMB() float64
}

// Func adapts a function to the Probe interface.
type Func func() float64

// ProcessMemoryMB implements Probe.
func (f Func) ProcessMemoryMB() float64 {
	return f()
}

// RuntimeProbe samples the Go heap via runtime.ReadMemStats.
// HeapAlloc understates true RSS (it excludes stacks and cgo
// allocations) but tracks the allocations a guarded operation makes,
// which is what the leak detector needs.
type RuntimeProbe struct{}

// NewRuntimeProbe creates a probe backed by runtime.ReadMemStats.
func NewRuntimeProbe() *RuntimeProbe {
	return &RuntimeProbe{}
}

// ProcessMemoryMB implements Probe.
func (*RuntimeProbe) ProcessMemoryMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024 * 1024)
}

// StubProbe returns a scripted sequence of readings.
// Intended for tests; the last value repeats once exhausted.
type StubProbe struct {
	mu       sync.Mutex
	readings []float64
	pos      int
	calls    int
}

// NewStubProbe creates a probe that replays the given readings in order.
func NewStubProbe(readings ...float64) *StubProbe {
	return &StubProbe{readings: readings}
}

// ProcessMemoryMB implements Probe.
func (p *StubProbe) ProcessMemoryMB() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if len(p.readings) == 0 {
		return 0
	}
	v := p.readings[p.pos]
	if p.pos < len(p.readings)-1 {
		p.pos++
	}
	return v
}

// Calls returns how many times the probe has been sampled.
func (p *StubProbe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
