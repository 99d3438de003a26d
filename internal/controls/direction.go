package controls

import (
	"driver-controls/internal/arbiter"
	"driver-controls/internal/event"
	"driver-controls/internal/fsm"
)

var (
	neutralGuard = arbiter.Deny(PedalCoast, PedalAccel, CruiseResume)
	forwardGuard = arbiter.Deny(PowerButton)
	reverseGuard = arbiter.Deny(PowerButton, CruiseResume)
)

// Direction is the gear selector. The vehicle can only be powered down in
// neutral, can only move in gear and never cruises in reverse. Power off and
// faults drop it back to neutral.
type Direction struct {
	base
	m *fsm.FSM[*Direction]

	neutral, forward, reverse *fsm.State[*Direction]
}

type directionInfo struct {
	guard arbiter.Guard
	value int16
	name  string
	state event.ID
}

func NewDirection(reg *arbiter.Registry, d Deps) (*Direction, error) {
	dir := &Direction{base: newBase(d, "direction")}

	dir.neutral = fsm.NewState[*Direction]("neutral", dir.output(directionInfo{neutralGuard, DriveDirectionNeutral, "neutral", DirectionStateNeutral}))
	dir.forward = fsm.NewState[*Direction]("forward", dir.output(directionInfo{forwardGuard, DriveDirectionForward, "forward", DirectionStateForward}))
	dir.reverse = fsm.NewState[*Direction]("reverse", dir.output(directionInfo{reverseGuard, DriveDirectionReverse, "reverse", DirectionStateReverse}))

	dir.neutral.
		On(DriveUpdateRequested, dir.neutral).
		On(DirectionReverse, dir.reverse).
		On(DirectionDrive, dir.forward)
	dir.forward.
		On(DriveUpdateRequested, dir.forward).
		On(DirectionNeutral, dir.neutral).
		On(DirectionReverse, dir.reverse).
		On(PowerStateOff, dir.neutral).
		On(PowerStateFault, dir.neutral)
	dir.reverse.
		On(DriveUpdateRequested, dir.reverse).
		On(DirectionDrive, dir.forward).
		On(DirectionNeutral, dir.neutral).
		On(PowerStateOff, dir.neutral).
		On(PowerStateFault, dir.neutral)

	dir.m = fsm.New("direction", dir.neutral, dir)

	h, err := register(reg, dir.m, neutralGuard)
	if err != nil {
		return nil, err
	}
	dir.handle = h
	return dir, nil
}

func (d *Direction) output(info directionInfo) fsm.Output[*Direction] {
	return fsm.OutputFunc[*Direction](func(m *fsm.FSM[*Direction], e event.Event, _ *Direction) {
		d.handle.SetGuard(info.guard)
		d.updateDrive(SourceDirection, info.value)

		// Periodic refreshes only update the drive command.
		if e.ID == DriveUpdateRequested {
			return
		}
		d.transmit(FieldDirection, info.name)
		d.raise(info.state)
		d.log.Debugf("Direction %s", info.name)
	})
}

func (d *Direction) Current() string {
	return d.m.CurrentName()
}

func (d *Direction) FSM() *fsm.FSM[*Direction] {
	return d.m
}

func (d *Direction) Table() Table {
	return describe(d.m, d.neutral)
}

func (d *Direction) states() []*fsm.State[*Direction] {
	return []*fsm.State[*Direction]{d.neutral, d.forward, d.reverse}
}
