// Package core wires the event queue, timers, arbiter and control machines
// to hardware and Redis, and runs the dispatch loop.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"driver-controls/internal/arbiter"
	"driver-controls/internal/config"
	"driver-controls/internal/controls"
	"driver-controls/internal/event"
	"driver-controls/internal/hardware"
	"driver-controls/internal/logger"
	"driver-controls/internal/metrics"
	"driver-controls/internal/timer"
	"driver-controls/internal/types"
)

type System struct {
	cfg *config.Config
	log *logger.Logger
	io  HardwareIO
	msg MessagingClient

	queue    *event.Queue
	timers   *timer.Service
	registry *arbiter.Registry
	drive    *controls.DriveOutput
	controls *controls.Controls
	metrics  *metrics.Collectors
	faults   *faultTracker

	mu     sync.Mutex
	state  types.ServiceState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSystem builds every machine and seals the registry. Nothing touches
// hardware or Redis until Start.
func NewSystem(cfg *config.Config, io HardwareIO, msg MessagingClient, l *logger.Logger) (*System, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if l == nil {
		l = logger.Discard()
	}

	s := &System{
		cfg:      cfg,
		log:      l.WithTag("core"),
		io:       io,
		msg:      msg,
		queue:    event.NewQueue(cfg.Queue.Capacity),
		timers:   timer.New(cfg.Timers.Slots),
		registry: arbiter.New(cfg.Arbiter.Capacity, arbiter.WithDispatchMode(cfg.DispatchMode())),
		metrics:  metrics.New(),
		state:    types.StateInit,
	}
	s.faults = newFaultTracker(msg, s.log)

	deps := controls.Deps{
		Raiser: s.queue,
		Log:    l,
	}
	if msg != nil {
		deps.Transmitter = msg
	}
	if io != nil {
		deps.Lines = io
	}
	s.drive = controls.NewDriveOutput(s.timers, s.queue, deps.Transmitter, cfg.Drive.UpdatePeriod, l)
	deps.Drive = s.drive

	c, err := controls.Register(s.registry, deps)
	if err != nil {
		return nil, err
	}
	s.controls = c
	s.registry.Seal()

	s.log.Infof("Registered %d machines (%s dispatch): %v", s.registry.Len(), cfg.DispatchMode(), s.registry.Machines())
	s.metrics.ObserveStates(s.registry.Snapshot())
	return s, nil
}

// Start connects Redis, initializes hardware and runs the dispatch loop in
// the background.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.StateInit {
		return fmt.Errorf("cannot start from state %s", s.state)
	}
	s.log.Infof("Starting driver controls")

	if s.msg != nil {
		if err := s.msg.Connect(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}
	if s.io != nil {
		if err := s.io.Initialize(s.queue, s.timers); err != nil {
			return fmt.Errorf("failed to initialize hardware: %w", err)
		}
	}
	if s.msg != nil {
		if err := s.msg.StartListening(s.queue); err != nil {
			return fmt.Errorf("failed to start Redis listeners: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = types.StateRunning

	go func() {
		defer close(s.done)
		if err := s.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Errorf("Dispatch loop stopped: %v", err)
		}
	}()

	s.log.Infof("System started successfully")
	return nil
}

// Run drains the queue until ctx is done. Each event is offered to the
// arbiter exactly once; follow-up events raised by outputs are picked up
// by the same loop.
func (s *System) Run(ctx context.Context) error {
	for {
		s.Drain()
		if !s.queue.Wait(ctx) {
			return ctx.Err()
		}
	}
}

// Drain processes every queued event and returns how many were handled.
func (s *System) Drain() int {
	n := 0
	for {
		e, ok := s.queue.Pop()
		if !ok {
			return n
		}
		s.process(e)
		n++
	}
}

func (s *System) process(e event.Event) {
	s.faults.observe(e)

	res := s.registry.Dispatch(e)
	s.metrics.ObserveDispatch(e, res)
	s.metrics.SetQueueDepth(s.queue.Len())

	switch {
	case !res.Permitted:
		s.log.Debugf("%s(%d) denied by %s", controls.EventName(e.ID), e.Data, res.DeniedBy)
	case res.Transitioned:
		s.log.Debugf("%s(%d) dispatched", controls.EventName(e.ID), e.Data)
		s.metrics.ObserveStates(s.registry.Snapshot())
	}
}

// Raise queues an event as if it came from an input.
func (s *System) Raise(id event.ID, data uint16) error {
	return s.queue.Raise(id, data)
}

// Snapshot reports the current state of every machine.
func (s *System) Snapshot() []arbiter.MachineState {
	return s.registry.Snapshot()
}

func (s *System) State() types.ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Throttle is the last valid pedal reading, if hardware provides one.
func (s *System) Throttle() (hardware.Position, bool) {
	if s.io == nil {
		return hardware.Position{}, false
	}
	return s.io.ThrottlePosition()
}

func (s *System) Controls() *controls.Controls {
	return s.controls
}

func (s *System) Metrics() *metrics.Collectors {
	return s.metrics
}

func (s *System) Shutdown() {
	s.mu.Lock()
	if s.state == types.StateStopped || s.state == types.StateShuttingDown {
		s.mu.Unlock()
		return
	}
	s.state = types.StateShuttingDown
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	s.log.Infof("Shutting down driver controls")

	if cancel != nil {
		cancel()
		<-done
	}

	if err := s.drive.SetEnabled(false); err != nil {
		s.log.Warnf("Failed to stop drive broadcast: %v", err)
	}
	s.timers.Stop()

	if s.io != nil {
		s.io.Cleanup()
	}
	if s.msg != nil {
		if err := s.msg.Close(); err != nil {
			s.log.Warnf("Failed to close Redis client: %v", err)
		}
	}

	s.mu.Lock()
	s.state = types.StateStopped
	s.mu.Unlock()
	s.log.Infof("Shutdown complete")
}
