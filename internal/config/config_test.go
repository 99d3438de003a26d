package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driver-controls/internal/arbiter"
	"driver-controls/internal/controls"
	"driver-controls/internal/event"
	"driver-controls/internal/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.InstanceID)
	assert.Equal(t, arbiter.Exhaustive, cfg.DispatchMode())
	assert.Equal(t, logger.LogLevelInfo, cfg.LogLevel())

	hw, err := cfg.Hardware()
	require.NoError(t, err)
	for _, in := range hw.Inputs {
		want := event.PriorityNormal
		if in.Press == controls.BPSFault {
			want = event.PriorityHighest
		}
		assert.Equal(t, want, in.Priority, in.Name)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6379, cfg.Redis.Port)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
instance_id: bench-1
redis:
  host: redis.local
  port: 6380
log:
  level: debug
arbiter:
  mode: stop-on-first-transition
gpio:
  debounce: 25ms
  inputs:
    - name: power
      line: 4
      active_low: true
      press: power_button
      priority: high
  outputs:
    - name: brake_light
      line: 5
throttle:
  device: ""
drive:
  update_period: 50ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bench-1", cfg.InstanceID)
	assert.Equal(t, "redis.local", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, logger.LogLevelDebug, cfg.LogLevel())
	assert.Equal(t, arbiter.StopOnFirstTransition, cfg.DispatchMode())
	assert.Equal(t, 25*time.Millisecond, cfg.GPIO.Debounce)
	assert.Equal(t, 50*time.Millisecond, cfg.Drive.UpdatePeriod)
	// Untouched sections keep their defaults.
	assert.Equal(t, arbiter.DefaultCapacity, cfg.Arbiter.Capacity)

	hw, err := cfg.Hardware()
	require.NoError(t, err)
	require.Len(t, hw.Inputs, 1)
	assert.Equal(t, controls.PowerButton, hw.Inputs[0].Press)
	assert.Zero(t, hw.Inputs[0].Release)
	assert.Equal(t, 4, hw.Inputs[0].Offset)
	assert.True(t, hw.Inputs[0].ActiveLow)
	assert.Equal(t, event.PriorityHigh, hw.Inputs[0].Priority)
	require.Len(t, hw.Outputs, 1)
	assert.Equal(t, controls.LineBrakeLight, hw.Outputs[0].Name)
	assert.Empty(t, hw.ADCDevice)
	assert.Equal(t, controls.PedalFault, hw.ThrottleEvents.Fault)
}

func TestLoadThrottleCalibration(t *testing.T) {
	path := writeConfig(t, `
throttle:
  device: iio:device1
  period: 20ms
  main_channel: 2
  secondary_channel: 3
  tolerance: 40
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "iio:device1", cfg.Throttle.Device)
	assert.Equal(t, 20*time.Millisecond, cfg.Throttle.Period)
	assert.Equal(t, 2, cfg.Throttle.MainChannel)
	assert.Equal(t, 3, cfg.Throttle.SecondaryChannel)
	assert.Equal(t, 40, cfg.Throttle.Tolerance)
	assert.Equal(t, 1199, cfg.Throttle.Brake.Max)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "redis: [\n"},
		{"bad port", "redis:\n  port: 0\n"},
		{"bad level", "log:\n  level: chatty\n"},
		{"bad mode", "arbiter:\n  mode: random\n"},
		{"zero queue", "queue:\n  capacity: 0\n"},
		{"bad priority", "gpio:\n  inputs:\n    - name: x\n      line: 1\n      press: drl\n      priority: urgent\n"},
		{"unknown event", "gpio:\n  inputs:\n    - name: x\n      line: 1\n      press: eject_seat\n"},
		{"line reuse", "gpio:\n  inputs:\n    - {name: a, line: 1, press: drl}\n    - {name: b, line: 1, press: lowbeams}\n  outputs: []\n"},
		{"overlapping zones", "throttle:\n  coast: {min: 1000, max: 1700}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
