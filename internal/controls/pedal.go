package controls

import (
	"driver-controls/internal/arbiter"
	"driver-controls/internal/event"
	"driver-controls/internal/fsm"
)

var pedalBrakeGuard = arbiter.Deny(CruiseResume)

// Pedal tracks the throttle zone and feeds the throttle into the drive
// command. Cruise is entered from coast or driving and left through the
// mechanical brake or the cruise stalk. Throttle faults fall back to brake.
type Pedal struct {
	base
	m        *fsm.FSM[*Pedal]
	throttle int16

	brake, coast, driving, cruise *fsm.State[*Pedal]
}

func NewPedal(reg *arbiter.Registry, d Deps) (*Pedal, error) {
	p := &Pedal{base: newBase(d, "pedal")}

	p.brake = fsm.NewState[*Pedal]("brake", fsm.OutputFunc[*Pedal](p.brakeOutput))
	p.coast = fsm.NewState[*Pedal]("coast", fsm.OutputFunc[*Pedal](p.movingOutput))
	p.driving = fsm.NewState[*Pedal]("driving", fsm.OutputFunc[*Pedal](p.movingOutput))
	p.cruise = fsm.NewState[*Pedal]("cruise", fsm.OutputFunc[*Pedal](p.movingOutput))

	p.brake.
		On(DriveUpdateRequested, p.brake).
		On(PedalBrake, p.brake).
		On(PedalFault, p.brake).
		On(PedalCoast, p.coast).
		On(PedalAccel, p.driving)
	p.coast.
		On(DriveUpdateRequested, p.coast).
		On(PedalCoast, p.coast).
		On(MechBrakePressed, p.brake).
		On(PedalBrake, p.brake).
		On(PedalFault, p.brake).
		On(PedalAccel, p.driving).
		On(CruiseResume, p.cruise)
	p.driving.
		On(DriveUpdateRequested, p.driving).
		On(PedalAccel, p.driving).
		On(MechBrakePressed, p.brake).
		On(PedalBrake, p.brake).
		On(PedalFault, p.brake).
		On(PedalCoast, p.coast).
		On(CruiseResume, p.cruise)
	p.cruise.
		On(DriveUpdateRequested, p.cruise).
		On(MechBrakePressed, p.brake).
		On(CruiseCancel, p.brake).
		On(CruiseOff, p.brake).
		On(PedalFault, p.brake)

	p.m = fsm.New("pedal", p.brake, p)

	h, err := register(reg, p.m, pedalBrakeGuard)
	if err != nil {
		return nil, err
	}
	p.handle = h
	return p, nil
}

// track keeps the signed throttle position: negative is regen braking.
func (p *Pedal) track(e event.Event) {
	switch e.ID {
	case PedalBrake:
		p.throttle = -int16(e.Data)
	case PedalCoast, PedalFault:
		p.throttle = 0
	case PedalAccel:
		p.throttle = int16(e.Data)
	}
}

func (p *Pedal) brakeOutput(m *fsm.FSM[*Pedal], e event.Event, _ *Pedal) {
	p.handle.SetGuard(pedalBrakeGuard)
	p.track(e)
	// The mechanical brake can hold this state with the throttle outside the
	// brake zone; the position is still reported.
	p.updateDrive(SourceThrottle, p.throttle)
	if e.ID == PedalFault && !m.In(m.Last()) {
		p.log.Warnf("Throttle fault, braking")
	}
}

func (p *Pedal) movingOutput(m *fsm.FSM[*Pedal], e event.Event, _ *Pedal) {
	p.handle.SetGuard(nil)
	p.track(e)
	if m.In(p.cruise) {
		p.updateDrive(SourceThrottle, 0)
		return
	}
	p.updateDrive(SourceThrottle, p.throttle)
}

// Throttle is the last signed throttle position.
func (p *Pedal) Throttle() int16 {
	return p.throttle
}

func (p *Pedal) Current() string {
	return p.m.CurrentName()
}

func (p *Pedal) FSM() *fsm.FSM[*Pedal] {
	return p.m
}

func (p *Pedal) Table() Table {
	return describe(p.m, p.brake)
}

func (p *Pedal) states() []*fsm.State[*Pedal] {
	return []*fsm.State[*Pedal]{p.brake, p.coast, p.driving, p.cruise}
}
