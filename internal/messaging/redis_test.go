package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driver-controls/internal/controls"
	"driver-controls/internal/event"
)

type raised struct {
	id   event.ID
	data uint16
}

type recordingRaiser struct {
	mu     sync.Mutex
	events []raised
}

func (r *recordingRaiser) Raise(id event.ID, data uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, raised{id, data})
	return nil
}

func (r *recordingRaiser) snapshot() []raised {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]raised(nil), r.events...)
}

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisClientWithOptions(&redis.Options{
		Addr:                  mr.Addr(),
		ContextTimeoutEnabled: true,
	}, nil)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestConnectFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c := NewRedisClientWithOptions(&redis.Options{Addr: addr, MaxRetries: -1}, nil)
	defer c.Close()
	assert.Error(t, c.Connect())
}

func TestTransmit(t *testing.T) {
	c, mr := newTestClient(t)

	sub := c.client.Subscribe(context.Background(), StateChannel)
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Transmit(controls.Message{Field: controls.FieldPower, Value: "drive"}))

	assert.Equal(t, "drive", mr.HGet(StateHash, controls.FieldPower))
	v, err := c.GetField(controls.FieldPower)
	require.NoError(t, err)
	assert.Equal(t, "drive", v)

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, controls.FieldPower, msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no notification published")
	}

	v, err = c.GetField("unset")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestFaultReporting(t *testing.T) {
	c, _ := newTestClient(t)
	c.SetInstanceID("bench-1")
	ctx := context.Background()

	require.NoError(t, c.ReportFaultPresent(3, "throttle fault"))
	members, err := c.client.SMembers(ctx, FaultSet).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, members)

	require.NoError(t, c.ReportFaultAbsent(3))
	members, err = c.client.SMembers(ctx, FaultSet).Result()
	require.NoError(t, err)
	assert.Empty(t, members)

	entries, err := c.client.XRange(ctx, FaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "3", entries[0].Values["code"])
	assert.Equal(t, "throttle fault", entries[0].Values["description"])
	assert.Equal(t, "bench-1", entries[0].Values["instance"])
	assert.Equal(t, "-3", entries[1].Values["code"])
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		id   event.ID
		data uint16
		ok   bool
	}{
		{"power_button", controls.PowerButton, 0, true},
		{"vehicle_speed:42", controls.VehicleSpeed, 42, true},
		{" pedal_accel:4096 ", controls.PedalAccel, 4096, true},
		{"pedal_accel:70000", 0, 0, false},
		{"pedal_accel:-1", 0, 0, false},
		{"launch_rockets", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, data, err := ParseCommand(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.data, data)
		})
	}
}

func TestCommandListener(t *testing.T) {
	c, _ := newTestClient(t)
	raiser := &recordingRaiser{}

	require.Error(t, c.StartListening(nil))
	require.NoError(t, c.StartListening(raiser))

	ctx := context.Background()
	require.NoError(t, c.client.LPush(ctx, InputKey, "power_button").Err())
	require.NoError(t, c.client.LPush(ctx, InputKey, "bogus").Err())
	require.NoError(t, c.client.LPush(ctx, InputKey, "cruise_speed_plus").Err())

	assert.Eventually(t, func() bool {
		return len(raiser.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []raised{
		{controls.PowerButton, 0},
		{controls.CruiseSpeedPlus, 0},
	}, raiser.snapshot())
}

func TestCloseWithListener(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisClientWithOptions(&redis.Options{
		Addr:                  mr.Addr(),
		ContextTimeoutEnabled: true,
	}, nil)
	require.NoError(t, c.Connect())
	require.NoError(t, c.StartListening(&recordingRaiser{}))

	require.NoError(t, c.Close())
	assert.Error(t, c.client.Ping(context.Background()).Err())
}
