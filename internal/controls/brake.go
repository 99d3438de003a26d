package controls

import (
	"driver-controls/internal/arbiter"
	"driver-controls/internal/event"
	"driver-controls/internal/fsm"
)

// MechBrake follows the mechanical brake switch. While engaged it blocks
// anything that would make the vehicle move; while released it blocks gear
// selection, neutral included, which requires the brake.
type MechBrake struct {
	base
	m        *fsm.FSM[*MechBrake]
	position uint16

	engaged, disengaged *fsm.State[*MechBrake]
}

var (
	brakeEngagedGuard    = arbiter.Deny(PedalCoast, PedalAccel, CruiseResume)
	brakeDisengagedGuard = arbiter.Deny(DirectionNeutral, DirectionDrive, DirectionReverse)
)

func NewMechBrake(reg *arbiter.Registry, d Deps) (*MechBrake, error) {
	b := &MechBrake{base: newBase(d, "mech_brake")}

	b.engaged = fsm.NewState[*MechBrake]("engaged", fsm.OutputFunc[*MechBrake](b.engagedOutput))
	b.disengaged = fsm.NewState[*MechBrake]("disengaged", fsm.OutputFunc[*MechBrake](b.disengagedOutput))

	b.engaged.
		On(MechBrakePressed, b.engaged).
		On(MechBrakeReleased, b.disengaged)
	b.disengaged.
		On(MechBrakePressed, b.engaged).
		On(MechBrakeReleased, b.disengaged)

	b.m = fsm.New("mech_brake", b.disengaged, b)

	h, err := register(reg, b.m, brakeDisengagedGuard)
	if err != nil {
		return nil, err
	}
	b.handle = h
	return b, nil
}

func (b *MechBrake) engagedOutput(m *fsm.FSM[*MechBrake], e event.Event, _ *MechBrake) {
	b.handle.SetGuard(brakeEngagedGuard)
	b.position = e.Data
	b.updateDrive(SourceMechBrake, int16(e.Data))

	if !m.In(m.Last()) {
		b.setLine(LineBrakeLight, true)
		b.transmit(FieldBrake, "engaged")
	}
}

func (b *MechBrake) disengagedOutput(m *fsm.FSM[*MechBrake], e event.Event, _ *MechBrake) {
	b.handle.SetGuard(brakeDisengagedGuard)
	b.position = e.Data
	b.updateDrive(SourceMechBrake, int16(e.Data))

	if !m.In(m.Last()) {
		b.setLine(LineBrakeLight, false)
		b.transmit(FieldBrake, "disengaged")
	}
}

// Engaged reports whether the brake is held.
func (b *MechBrake) Engaged() bool {
	return b.m.In(b.engaged)
}

// Position is the last reported brake position.
func (b *MechBrake) Position() uint16 {
	return b.position
}

func (b *MechBrake) FSM() *fsm.FSM[*MechBrake] {
	return b.m
}

func (b *MechBrake) Table() Table {
	return describe(b.m, b.disengaged)
}

func (b *MechBrake) states() []*fsm.State[*MechBrake] {
	return []*fsm.State[*MechBrake]{b.engaged, b.disengaged}
}
