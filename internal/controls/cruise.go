package controls

import (
	"strconv"

	"driver-controls/internal/arbiter"
	"driver-controls/internal/event"
	"driver-controls/internal/fsm"
)

// CruiseOffset is the target change per speed plus/minus press, in cm/s.
const CruiseOffset = 28

// Cruise holds the cruise target speed. Off clears the target, idle keeps it
// without commanding it, on commands it.
type Cruise struct {
	base
	m       *fsm.FSM[*Cruise]
	target  int16
	current int16

	off, idle, on *fsm.State[*Cruise]
}

func NewCruise(reg *arbiter.Registry, d Deps) (*Cruise, error) {
	c := &Cruise{base: newBase(d, "cruise")}

	c.off = fsm.NewState[*Cruise]("off", fsm.OutputFunc[*Cruise](c.offOutput))
	c.idle = fsm.NewState[*Cruise]("idle", fsm.OutputFunc[*Cruise](c.idleOutput))
	c.on = fsm.NewState[*Cruise]("on", fsm.OutputFunc[*Cruise](c.onOutput))

	c.off.
		On(DriveUpdateRequested, c.off).
		On(VehicleSpeed, c.off).
		On(CruiseOn, c.idle)
	c.idle.
		On(DriveUpdateRequested, c.idle).
		On(VehicleSpeed, c.idle).
		On(CruiseSpeedPlus, c.idle).
		On(CruiseSpeedMinus, c.idle).
		On(CruiseSet, c.idle).
		On(CruiseResume, c.on).
		On(CruiseOff, c.off).
		On(PowerStateOff, c.off).
		On(PowerStateFault, c.off)
	c.on.
		On(DriveUpdateRequested, c.on).
		On(VehicleSpeed, c.on).
		On(CruiseSpeedPlus, c.on).
		On(CruiseSpeedMinus, c.on).
		On(CruiseSet, c.on).
		On(CruiseCancel, c.idle).
		On(MechBrakePressed, c.idle).
		On(CruiseOff, c.off).
		On(PowerStateOff, c.off).
		On(PowerStateFault, c.off)

	c.m = fsm.New("cruise", c.off, c)

	h, err := register(reg, c.m, nil)
	if err != nil {
		return nil, err
	}
	c.handle = h
	return c, nil
}

func (c *Cruise) apply(e event.Event) {
	switch e.ID {
	case VehicleSpeed:
		c.current = int16(e.Data)
	case CruiseSpeedPlus:
		c.target += CruiseOffset
	case CruiseSpeedMinus:
		c.target -= CruiseOffset
		if c.target < 0 {
			c.target = 0
		}
	case CruiseSet:
		c.target = c.current
	}
}

func (c *Cruise) announce(m *fsm.FSM[*Cruise], e event.Event) {
	switch e.ID {
	case DriveUpdateRequested, VehicleSpeed:
		return
	}
	value := m.CurrentName()
	if m.In(c.on) || m.In(c.idle) {
		value += ":" + strconv.Itoa(int(c.target))
	}
	c.transmit(FieldCruise, value)
}

func (c *Cruise) offOutput(m *fsm.FSM[*Cruise], e event.Event, _ *Cruise) {
	c.apply(e)
	c.target = 0
	c.updateDrive(SourceCruise, 0)
	c.announce(m, e)
}

func (c *Cruise) idleOutput(m *fsm.FSM[*Cruise], e event.Event, _ *Cruise) {
	c.apply(e)
	c.updateDrive(SourceCruise, 0)
	c.announce(m, e)
}

func (c *Cruise) onOutput(m *fsm.FSM[*Cruise], e event.Event, _ *Cruise) {
	c.apply(e)
	c.updateDrive(SourceCruise, c.target)
	c.announce(m, e)
}

// Target is the cruise target speed in cm/s.
func (c *Cruise) Target() int16 {
	return c.target
}

func (c *Cruise) Current() string {
	return c.m.CurrentName()
}

func (c *Cruise) FSM() *fsm.FSM[*Cruise] {
	return c.m
}

func (c *Cruise) Table() Table {
	return describe(c.m, c.off)
}

func (c *Cruise) states() []*fsm.State[*Cruise] {
	return []*fsm.State[*Cruise]{c.off, c.idle, c.on}
}
