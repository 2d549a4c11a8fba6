package probe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFunc verifies the adapter.
func TestFunc(t *testing.T) {
	var p Probe = Func(func() float64 { return 42.5 })
	assert.Equal(t, 42.5, p.ProcessMemoryMB())
}

// TestRuntimeProbe verifies the heap probe returns a sane reading.
func TestRuntimeProbe(t *testing.T) {
	p := NewRuntimeProbe()
	usage := p.ProcessMemoryMB()
	assert.Greater(t, usage, 0.0, "a running test binary has a non-empty heap")
	assert.Less(t, usage, 100000.0)
}

// TestStubProbe_ReplaysReadings tests the scripted sequence.
func TestStubProbe_ReplaysReadings(t *testing.T) {
	p := NewStubProbe(100, 200, 300)

	assert.Equal(t, 100.0, p.ProcessMemoryMB())
	assert.Equal(t, 200.0, p.ProcessMemoryMB())
	assert.Equal(t, 300.0, p.ProcessMemoryMB())
	assert.Equal(t, 300.0, p.ProcessMemoryMB(), "last reading repeats")
	assert.Equal(t, 4, p.Calls())
}

// TestStubProbe_Empty tests the degenerate case.
func TestStubProbe_Empty(t *testing.T) {
	p := NewStubProbe()
	assert.Equal(t, 0.0, p.ProcessMemoryMB())
	assert.Equal(t, 1, p.Calls())
}

// TestStubProbe_Concurrent exercises the mutex under the race detector.
func TestStubProbe_Concurrent(t *testing.T) {
	p := NewStubProbe(1, 2, 3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				p.ProcessMemoryMB()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, p.Calls())
}
