package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault verifies the documented defaults.
func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, 3500.0, s.WarningThresholdMB)
	assert.Equal(t, 3800.0, s.CriticalThresholdMB)
	assert.Equal(t, 50.0, s.LeakThresholdMB)
	assert.Equal(t, 20, s.TrackingWindow)
	assert.Equal(t, 3, s.LeakConsecutive)
	assert.Equal(t, 5, s.MaxCheckpoints)
	assert.Equal(t, 20, s.AutoFlushCount)
	assert.Equal(t, 1000, s.MaxEventsInMemory)
	assert.NoError(t, s.Validate())
}

// TestSettings_Normalize tests zero-value backfill.
func TestSettings_Normalize(t *testing.T) {
	s := Settings{CriticalThresholdMB: 4000}.Normalize()

	assert.Equal(t, 3500.0, s.WarningThresholdMB, "unset fields filled from defaults")
	assert.Equal(t, 4000.0, s.CriticalThresholdMB, "explicit fields kept")
	assert.Equal(t, 20, s.TrackingWindow)
	assert.Equal(t, 5, s.MaxCheckpoints)
}

// TestSettings_Validate tests threshold coherence.
func TestSettings_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		warning  float64
		critical float64
		wantErr  bool
	}{
		{"valid gap", 3500, 3800, false},
		{"inverted", 3800, 3500, true},
		{"equal", 3800, 3800, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := Settings{
				WarningThresholdMB:  tc.warning,
				CriticalThresholdMB: tc.critical,
			}
			err := s.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidThresholds)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestFromYAML tests YAML parsing with normalization.
func TestFromYAML(t *testing.T) {
	data := []byte(`
warning_threshold_mb: 1000
critical_threshold_mb: 2000
leak_threshold_mb: 25
max_checkpoints: 10
checkpoint_dir: /var/lib/app/checkpoints
event_log_path: /var/log/app/events.json
`)
	s, err := FromYAML(data)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, s.WarningThresholdMB)
	assert.Equal(t, 2000.0, s.CriticalThresholdMB)
	assert.Equal(t, 25.0, s.LeakThresholdMB)
	assert.Equal(t, 10, s.MaxCheckpoints)
	assert.Equal(t, "/var/lib/app/checkpoints", s.CheckpointDir)
	assert.Equal(t, 20, s.TrackingWindow, "omitted fields normalized")
}

// TestFromYAML_Invalid tests parse and validation failures.
func TestFromYAML_Invalid(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		_, err := FromYAML([]byte("warning_threshold_mb: [not a number"))
		assert.Error(t, err)
	})

	t.Run("inverted thresholds", func(t *testing.T) {
		_, err := FromYAML([]byte("warning_threshold_mb: 5000\ncritical_threshold_mb: 4000\n"))
		assert.ErrorIs(t, err, ErrInvalidThresholds)
	})
}

// TestFromJSON tests JSON parsing.
func TestFromJSON(t *testing.T) {
	data := []byte(`{"warning_threshold_mb": 1500, "critical_threshold_mb": 2500, "auto_save_count": 5}`)
	s, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, 1500.0, s.WarningThresholdMB)
	assert.Equal(t, 2500.0, s.CriticalThresholdMB)
	assert.Equal(t, 5, s.AutoFlushCount)
}

// TestFromFile tests extension-based dispatch.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "settings.yaml")
		require.NoError(t, os.WriteFile(path, []byte("critical_threshold_mb: 4200\n"), 0o644))

		s, err := FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 4200.0, s.CriticalThresholdMB)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "settings.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"critical_threshold_mb": 4100}`), 0o644))

		s, err := FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 4100.0, s.CriticalThresholdMB)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "settings.toml")
		require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

		_, err := FromFile(path)
		assert.ErrorContains(t, err, "unsupported config file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := FromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
