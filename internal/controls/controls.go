// Package controls holds the driver-control state machines: power, brake,
// direction, pedal, cruise and lights. Each one is registered with the
// arbiter and replaces its own guard as it changes state.
package controls

import (
	"fmt"
	"strings"

	"driver-controls/internal/arbiter"
	"driver-controls/internal/event"
	"driver-controls/internal/fsm"
	"driver-controls/internal/logger"
)

// Raiser queues follow-up events. *event.Queue implements it.
type Raiser interface {
	Raise(id event.ID, data uint16) error
}

// Message is one field update for the rest of the vehicle.
type Message struct {
	Field string
	Value string
}

// Transmitter publishes outputs.
type Transmitter interface {
	Transmit(msg Message) error
}

// Lines drives discrete outputs such as the brake light.
type Lines interface {
	SetLine(name string, on bool) error
}

// Output line names.
const (
	LineBrakeLight = "brake_light"
)

// Transmitted fields.
const (
	FieldPower       = "power"
	FieldBrake       = "brake"
	FieldDirection   = "direction"
	FieldCruise      = "cruise"
	FieldDrive       = "drive"
	FieldSignalLeft  = "signal_left"
	FieldSignalRight = "signal_right"
	FieldHazards     = "hazards"
	FieldDRL         = "drl"
	FieldLowBeam     = "lowbeam"
	FieldHighBeam    = "highbeam"
)

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// Deps are the collaborators shared by all machines. Transmitter and Lines
// may be nil.
type Deps struct {
	Raiser      Raiser
	Transmitter Transmitter
	Lines       Lines
	Drive       *DriveOutput
	Log         *logger.Logger
}

type base struct {
	deps   Deps
	handle arbiter.Handle
	log    *logger.Logger
}

func newBase(d Deps, tag string) base {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	return base{deps: d, log: log.WithTag(tag)}
}

func (b *base) raise(id event.ID) {
	if b.deps.Raiser == nil {
		return
	}
	if err := b.deps.Raiser.Raise(id, 0); err != nil {
		b.log.Warnf("Failed to raise %s: %v", EventName(id), err)
	}
}

func (b *base) transmit(field, value string) {
	if b.deps.Transmitter == nil {
		return
	}
	if err := b.deps.Transmitter.Transmit(Message{Field: field, Value: value}); err != nil {
		b.log.Warnf("Failed to transmit %s=%s: %v", field, value, err)
	}
}

func (b *base) setLine(name string, on bool) {
	if b.deps.Lines == nil {
		return
	}
	if err := b.deps.Lines.SetLine(name, on); err != nil {
		b.log.Warnf("Failed to set %s: %v", name, err)
	}
}

func (b *base) updateDrive(src DriveSource, v int16) {
	if b.deps.Drive == nil {
		return
	}
	if err := b.deps.Drive.Update(src, v); err != nil {
		b.log.Warnf("Failed to update drive output: %v", err)
	}
}

func register[C any](reg *arbiter.Registry, m *fsm.FSM[C], g arbiter.Guard) (arbiter.Handle, error) {
	h, err := reg.Add(m, g)
	if err != nil {
		return arbiter.Handle{}, fmt.Errorf("failed to register %s: %w", m.Name(), err)
	}
	return h, nil
}

// Controls is the full set of machines in registration order.
type Controls struct {
	Power      *Power
	MechBrake  *MechBrake
	Direction  *Direction
	Pedal      *Pedal
	Cruise     *Cruise
	TurnSignal *TurnSignal
	Hazards    *Hazards
	Headlight  *Headlight
}

// Register builds every machine and registers it with reg.
func Register(reg *arbiter.Registry, d Deps) (*Controls, error) {
	var (
		c   Controls
		err error
	)

	if c.Power, err = NewPower(reg, d); err != nil {
		return nil, err
	}
	if c.MechBrake, err = NewMechBrake(reg, d); err != nil {
		return nil, err
	}
	if c.Direction, err = NewDirection(reg, d); err != nil {
		return nil, err
	}
	if c.Pedal, err = NewPedal(reg, d); err != nil {
		return nil, err
	}
	if c.Cruise, err = NewCruise(reg, d); err != nil {
		return nil, err
	}
	if c.TurnSignal, err = NewTurnSignal(reg, d); err != nil {
		return nil, err
	}
	if c.Hazards, err = NewHazards(reg, d); err != nil {
		return nil, err
	}
	if c.Headlight, err = NewHeadlight(reg, d); err != nil {
		return nil, err
	}

	return &c, nil
}

// Table is the printable transition table of one machine.
type Table struct {
	Machine string
	Initial string
	Rows    []string
}

func (t Table) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (initial %s)\n", t.Machine, t.Initial)
	for _, row := range t.Rows {
		b.WriteString("  ")
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return b.String()
}

func describe[C any](m *fsm.FSM[C], initial *fsm.State[C]) Table {
	t := Table{Machine: m.Name(), Initial: initial.Name()}
	fsm.Walk(initial, func(s *fsm.State[C]) {
		for _, tr := range s.Transitions() {
			guard := ""
			if tr.Guard != nil {
				guard = " [guarded]"
			}
			t.Rows = append(t.Rows, fmt.Sprintf("%-20s %-26s%s -> %s", s.Name(), EventName(tr.Event), guard, tr.Target))
		}
	})
	return t
}

// Tables describes every machine.
func (c *Controls) Tables() []Table {
	return []Table{
		c.Power.Table(),
		c.MechBrake.Table(),
		c.Direction.Table(),
		c.Pedal.Table(),
		c.Cruise.Table(),
		c.TurnSignal.Table(),
		c.Hazards.Table(),
		c.Headlight.Table(),
	}
}
