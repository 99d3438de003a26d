package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driver-controls/internal/config"
	"driver-controls/internal/controls"
	"driver-controls/internal/hardware"
	"driver-controls/internal/messaging"
	"driver-controls/internal/timer"
	"driver-controls/internal/types"
)

// Mock MessagingClient
type mockMessagingClient struct {
	mu sync.Mutex

	connectErr error
	connected  bool
	listening  bool
	closed     bool

	transmitted   []controls.Message
	faultsPresent []int
	faultsAbsent  []int
}

func (m *mockMessagingClient) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockMessagingClient) StartListening(raiser messaging.Raiser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = raiser != nil
	return nil
}

func (m *mockMessagingClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockMessagingClient) Transmit(msg controls.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transmitted = append(m.transmitted, msg)
	return nil
}

func (m *mockMessagingClient) ReportFaultPresent(code int, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faultsPresent = append(m.faultsPresent, code)
	return nil
}

func (m *mockMessagingClient) ReportFaultAbsent(code int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faultsAbsent = append(m.faultsAbsent, code)
	return nil
}

// last returns the most recent value transmitted for field.
func (m *mockMessagingClient) last(field string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.transmitted) - 1; i >= 0; i-- {
		if m.transmitted[i].Field == field {
			return m.transmitted[i].Value
		}
	}
	return ""
}

// Mock HardwareIO
type mockHardwareIO struct {
	mu sync.Mutex

	initErr     error
	initialized bool
	cleanedUp   bool
	lines       map[string]bool
	throttle    *hardware.Position
}

func newMockHardwareIO() *mockHardwareIO {
	return &mockHardwareIO{lines: make(map[string]bool)}
}

func (h *mockHardwareIO) Initialize(raiser hardware.Raiser, timers *timer.Service) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initErr != nil {
		return h.initErr
	}
	h.initialized = raiser != nil && timers != nil
	return nil
}

func (h *mockHardwareIO) Cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanedUp = true
}

func (h *mockHardwareIO) SetLine(name string, on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines[name] = on
	return nil
}

func (h *mockHardwareIO) ThrottlePosition() (hardware.Position, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.throttle == nil {
		return hardware.Position{}, false
	}
	return *h.throttle, true
}

func (h *mockHardwareIO) line(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lines[name]
}

func newTestSystem(t *testing.T) (*System, *mockHardwareIO, *mockMessagingClient) {
	t.Helper()
	cfg := config.Default()
	cfg.Drive.UpdatePeriod = time.Hour

	io := newMockHardwareIO()
	msg := &mockMessagingClient{}
	s, err := NewSystem(cfg, io, msg, nil)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s, io, msg
}

func TestNewSystemRegistersAllMachines(t *testing.T) {
	s, _, _ := newTestSystem(t)

	var names []string
	for _, m := range s.Snapshot() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{
		"power", "mech_brake", "direction", "pedal",
		"cruise", "turn_signal", "hazards", "headlight",
	}, names)
	assert.True(t, s.registry.Sealed())
	assert.Equal(t, types.StateInit, s.State())
}

func TestNewSystemArbiterTooSmall(t *testing.T) {
	cfg := config.Default()
	cfg.Arbiter.Capacity = 4

	_, err := NewSystem(cfg, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cruise")
}

func TestDriveSequence(t *testing.T) {
	s, io, msg := newTestSystem(t)

	require.NoError(t, s.Raise(controls.MechBrakePressed, 100))
	require.NoError(t, s.Raise(controls.PowerButton, 0))
	require.NoError(t, s.Raise(controls.DirectionDrive, 0))
	assert.Greater(t, s.Drain(), 3, "follow-up events are drained too")

	c := s.Controls()
	assert.Equal(t, controls.PowerDrive, c.Power.Mode())
	assert.Equal(t, "forward", c.Direction.Current())
	assert.True(t, io.line(controls.LineBrakeLight))
	assert.Equal(t, "drive", msg.last(controls.FieldPower))

	// Forward gear blocks the power button.
	require.NoError(t, s.Raise(controls.PowerButton, 0))
	s.Drain()
	assert.Equal(t, controls.PowerDrive, c.Power.Mode())

	require.NoError(t, s.Raise(controls.MechBrakeReleased, 0))
	s.Drain()
	assert.False(t, io.line(controls.LineBrakeLight))
}

func TestThrottlePassThrough(t *testing.T) {
	s, io, _ := newTestSystem(t)

	_, ok := s.Throttle()
	assert.False(t, ok)

	io.mu.Lock()
	io.throttle = &hardware.Position{Zone: hardware.ZoneBrake, Numerator: 1024}
	io.mu.Unlock()

	pos, ok := s.Throttle()
	require.True(t, ok)
	assert.Equal(t, hardware.ZoneBrake, pos.Zone)
	assert.Equal(t, uint16(1024), pos.Numerator)

	none, err := NewSystem(nil, nil, nil, nil)
	require.NoError(t, err)
	_, ok = none.Throttle()
	assert.False(t, ok)
}

func TestFaultsReported(t *testing.T) {
	s, _, msg := newTestSystem(t)

	require.NoError(t, s.Raise(controls.BPSFault, 0))
	s.Drain()
	assert.Equal(t, controls.PowerFault, s.Controls().Power.Mode())
	assert.True(t, s.faults.present(FaultBatteryProtection))

	require.NoError(t, s.Raise(controls.PowerButton, 0))
	s.Drain()
	assert.Equal(t, controls.PowerOff, s.Controls().Power.Mode())
	assert.False(t, s.faults.present(FaultBatteryProtection))

	// Pedal faults are tracked even while the power guard rejects them.
	require.NoError(t, s.Raise(controls.PedalFault, 0))
	require.NoError(t, s.Raise(controls.PedalFault, 0))
	require.NoError(t, s.Raise(controls.PedalCoast, 0))
	s.Drain()

	msg.mu.Lock()
	defer msg.mu.Unlock()
	assert.Equal(t, []int{FaultBatteryProtection.Code, FaultThrottle.Code}, msg.faultsPresent)
	assert.Equal(t, []int{FaultBatteryProtection.Code, FaultThrottle.Code}, msg.faultsAbsent)
}

func TestStartAndShutdown(t *testing.T) {
	s, io, msg := newTestSystem(t)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, types.StateRunning, s.State())
	assert.Error(t, s.Start(context.Background()))

	msg.mu.Lock()
	assert.True(t, msg.connected)
	assert.True(t, msg.listening)
	msg.mu.Unlock()
	io.mu.Lock()
	assert.True(t, io.initialized)
	io.mu.Unlock()

	require.NoError(t, s.Raise(controls.PowerButton, 0))
	assert.Eventually(t, func() bool {
		return msg.last(controls.FieldPower) == "charge"
	}, time.Second, 5*time.Millisecond)

	s.Shutdown()
	assert.Equal(t, types.StateStopped, s.State())
	assert.True(t, io.cleanedUp)
	assert.True(t, msg.closed)

	// Shutdown is idempotent.
	s.Shutdown()
}

func TestStartFailures(t *testing.T) {
	t.Run("redis", func(t *testing.T) {
		s, io, msg := newTestSystem(t)
		msg.connectErr = errors.New("connection refused")

		require.Error(t, s.Start(context.Background()))
		assert.Equal(t, types.StateInit, s.State())
		assert.False(t, io.initialized)
	})

	t.Run("hardware", func(t *testing.T) {
		s, io, msg := newTestSystem(t)
		io.initErr = errors.New("no such chip")

		require.Error(t, s.Start(context.Background()))
		assert.False(t, msg.listening)
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _, _ := newTestSystem(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, s.Raise(controls.MechBrakePressed, 100))
	assert.Eventually(t, func() bool {
		for _, m := range s.Snapshot() {
			if m.Name == "mech_brake" {
				return m.State == "engaged"
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
