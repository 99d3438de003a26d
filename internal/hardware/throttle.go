package hardware

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"driver-controls/internal/event"
	"driver-controls/internal/logger"
	"driver-controls/internal/timer"
)

var (
	ErrOutOfRange = errors.New("throttle reading out of range")
	ErrOutOfSync  = errors.New("throttle channels out of sync")
)

type Zone int

const (
	ZoneBrake Zone = iota
	ZoneCoast
	ZoneAccel
)

func (z Zone) String() string {
	switch z {
	case ZoneBrake:
		return "brake"
	case ZoneCoast:
		return "coast"
	case ZoneAccel:
		return "accel"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// Range is an inclusive span of raw ADC values.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func (r Range) contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Line maps a channel's full brake and full accel readings. A secondary
// sensor may run in either direction.
type Line struct {
	FullBrake int `yaml:"full_brake"`
	FullAccel int `yaml:"full_accel"`
}

// Calibration of a dual-channel pedal. Zones apply to the main channel; the
// secondary channel only cross-checks it.
type Calibration struct {
	MainChannel      int   `yaml:"main_channel"`
	SecondaryChannel int   `yaml:"secondary_channel"`
	Brake            Range `yaml:"brake"`
	Coast            Range `yaml:"coast"`
	Accel            Range `yaml:"accel"`
	Main             Line  `yaml:"main"`
	Secondary        Line  `yaml:"secondary"`
	Tolerance        int   `yaml:"tolerance"`
}

func (c Calibration) Validate() error {
	var errs []error
	for _, z := range []struct {
		name string
		r    Range
	}{{"brake", c.Brake}, {"coast", c.Coast}, {"accel", c.Accel}} {
		if z.r.Min > z.r.Max {
			errs = append(errs, fmt.Errorf("%s zone: min %d above max %d", z.name, z.r.Min, z.r.Max))
		}
	}
	if c.Brake.Max >= c.Coast.Min || c.Coast.Max >= c.Accel.Min {
		errs = append(errs, errors.New("zones must be ascending and disjoint"))
	}
	if c.Brake.Min == c.Brake.Max || c.Accel.Min == c.Accel.Max {
		errs = append(errs, errors.New("brake and accel zones need a non-zero span"))
	}
	if c.Main.FullBrake >= c.Main.FullAccel {
		errs = append(errs, errors.New("main line must rise from full brake to full accel"))
	}
	if c.Tolerance < 0 {
		errs = append(errs, errors.New("tolerance must not be negative"))
	}
	return errors.Join(errs...)
}

// Position is a classified pedal reading. Numerator is out of Denominator.
type Position struct {
	Zone      Zone
	Numerator uint16
}

func (p Position) String() string {
	return fmt.Sprintf("%s %d/%d", p.Zone, p.Numerator, Denominator)
}

func scale(reading int, r Range) uint16 {
	return uint16(Denominator * (reading - r.Min) / (r.Max - r.Min))
}

// Classify turns a pair of raw readings into a pedal position. Brake depth
// grows towards the bottom of the brake zone.
func (c Calibration) Classify(main, secondary int) (Position, error) {
	if main < c.Brake.Min || main > c.Accel.Max {
		return Position{}, fmt.Errorf("%w: main=%d", ErrOutOfRange, main)
	}
	if !c.synced(main, secondary) {
		return Position{}, fmt.Errorf("%w: main=%d secondary=%d", ErrOutOfSync, main, secondary)
	}

	switch {
	case c.Brake.contains(main):
		return Position{Zone: ZoneBrake, Numerator: Denominator - scale(main, c.Brake)}, nil
	case c.Coast.contains(main):
		return Position{Zone: ZoneCoast, Numerator: Denominator}, nil
	case c.Accel.contains(main):
		return Position{Zone: ZoneAccel, Numerator: scale(main, c.Accel)}, nil
	}
	return Position{}, fmt.Errorf("%w: main=%d between zones", ErrOutOfRange, main)
}

func (c Calibration) synced(main, secondary int) bool {
	m := min(max(main, c.Main.FullBrake), c.Main.FullAccel)
	span := c.Secondary.FullAccel - c.Secondary.FullBrake
	expected := span*(m-c.Main.FullBrake)/(c.Main.FullAccel-c.Main.FullBrake) + c.Secondary.FullBrake
	diff := expected - secondary
	if diff < 0 {
		diff = -diff
	}
	return diff <= c.Tolerance
}

// Reader reads a raw ADC channel. *ADC implements it.
type Reader interface {
	Read(channel int) (int, error)
}

// ThrottleEvents are raised for each zone. Accel carries the numerator,
// brake the brake depth.
type ThrottleEvents struct {
	Brake event.ID
	Coast event.ID
	Accel event.ID
	Fault event.ID
}

// Throttle samples the pedal on a soft timer and raises one event per
// sample.
type Throttle struct {
	cal    Calibration
	reader Reader
	raiser Raiser
	timers *timer.Service
	period time.Duration
	events ThrottleEvents
	log    *logger.Logger

	mu       sync.Mutex
	running  bool
	timerID  timer.ID
	position Position
	valid    bool
	faulted  bool
}

func NewThrottle(cal Calibration, r Reader, raiser Raiser, timers *timer.Service, period time.Duration, events ThrottleEvents, log *logger.Logger) (*Throttle, error) {
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("invalid throttle calibration: %w", err)
	}
	if period <= 0 {
		period = DefaultThrottlePeriod
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Throttle{
		cal:     cal,
		reader:  r,
		raiser:  raiser,
		timers:  timers,
		period:  period,
		events:  events,
		log:     log.WithTag("throttle"),
		timerID: timer.InvalidID,
	}, nil
}

func (t *Throttle) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}
	id, err := t.timers.Start(t.period, t.tick, nil)
	if err != nil {
		return fmt.Errorf("failed to start throttle sampling: %w", err)
	}
	t.timerID = id
	t.running = true
	t.log.Infof("Sampling throttle every %v", t.period)
	return nil
}

func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = false
	t.timers.Cancel(t.timerID)
	t.timerID = timer.InvalidID
}

func (t *Throttle) tick(id timer.ID, _ any) {
	t.Sample()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || id != t.timerID {
		return
	}
	next, err := t.timers.Start(t.period, t.tick, nil)
	if err != nil {
		t.log.Errorf("Failed to re-arm throttle sampling: %v", err)
		t.running = false
		return
	}
	t.timerID = next
}

// Sample reads both channels once and raises the matching event.
func (t *Throttle) Sample() {
	pos, err := t.read()

	t.mu.Lock()
	wasFaulted := t.faulted
	t.faulted = err != nil
	if err == nil {
		t.position = pos
	}
	t.valid = err == nil
	t.mu.Unlock()

	if err != nil {
		if !wasFaulted {
			t.log.Warnf("Throttle fault: %v", err)
		}
		t.raiseFault()
		return
	}
	if wasFaulted {
		t.log.Infof("Throttle recovered at %s", pos)
	}

	switch pos.Zone {
	case ZoneBrake:
		t.raise(t.events.Brake, pos.Numerator)
	case ZoneCoast:
		t.raise(t.events.Coast, 0)
	case ZoneAccel:
		t.raise(t.events.Accel, pos.Numerator)
	}
}

func (t *Throttle) read() (Position, error) {
	main, err := t.reader.Read(t.cal.MainChannel)
	if err != nil {
		return Position{}, err
	}
	secondary, err := t.reader.Read(t.cal.SecondaryChannel)
	if err != nil {
		return Position{}, err
	}
	return t.cal.Classify(main, secondary)
}

func (t *Throttle) raise(id event.ID, data uint16) {
	if id == 0 {
		return
	}
	if err := t.raiser.Raise(id, data); err != nil {
		t.log.Debugf("Dropped throttle sample: %v", err)
	}
}

// Faults skip ahead of samples still waiting in the queue.
func (t *Throttle) raiseFault() {
	if t.events.Fault == 0 {
		return
	}
	if err := t.raiser.RaisePriority(event.PriorityHighest, t.events.Fault, 0); err != nil {
		t.log.Errorf("Dropped throttle fault: %v", err)
	}
}

// Position is the last valid reading; false while faulted or before the
// first sample.
func (t *Throttle) Position() (Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position, t.valid
}
