package memsentry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestThresholdError_Unwrap verifies errors.Is branching on the sentinel.
func TestThresholdError_Unwrap(t *testing.T) {
	err := &ThresholdError{
		Operation:   "ingest",
		Phase:       PhasePre,
		UsageMB:     3900,
		ThresholdMB: 3800,
	}

	assert.ErrorIs(t, err, ErrThresholdExceeded)
	assert.NotErrorIs(t, err, ErrNilProbe)
}

// TestThresholdError_Message verifies the message carries the facts a
// caller needs to triage without unwrapping.
func TestThresholdError_Message(t *testing.T) {
	err := &ThresholdError{
		Operation:   "ingest",
		Phase:       PhasePost,
		UsageMB:     3950.5,
		ThresholdMB: 3800,
	}

	msg := err.Error()
	assert.Contains(t, msg, "ingest")
	assert.Contains(t, msg, "post")
	assert.Contains(t, msg, "3950.5")
	assert.Contains(t, msg, "3800.0")
}

// TestThresholdError_As verifies typed extraction from a wrapped chain.
func TestThresholdError_As(t *testing.T) {
	var target *ThresholdError
	base := &ThresholdError{Operation: "ingest", Phase: PhasePre}
	wrapped := errors.Join(errors.New("context"), base)

	assert.ErrorAs(t, wrapped, &target)
	assert.Equal(t, "ingest", target.Operation)
}
