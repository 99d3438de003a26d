package controls

import (
	"driver-controls/internal/arbiter"
	"driver-controls/internal/event"
	"driver-controls/internal/fsm"
)

// TurnSignal follows the stalk and resets when powered down.
type TurnSignal struct {
	base
	m *fsm.FSM[*TurnSignal]

	none, left, right *fsm.State[*TurnSignal]
}

func NewTurnSignal(reg *arbiter.Registry, d Deps) (*TurnSignal, error) {
	ts := &TurnSignal{base: newBase(d, "turn_signal")}

	ts.none = fsm.NewState[*TurnSignal]("none", ts.output(false, false))
	ts.left = fsm.NewState[*TurnSignal]("left", ts.output(true, false))
	ts.right = fsm.NewState[*TurnSignal]("right", ts.output(false, true))

	ts.none.
		On(TurnSignalLeft, ts.left).
		On(TurnSignalRight, ts.right)
	ts.left.
		On(PowerStateOff, ts.none).
		On(PowerStateFault, ts.none).
		On(TurnSignalNone, ts.none).
		On(TurnSignalRight, ts.right)
	ts.right.
		On(PowerStateOff, ts.none).
		On(PowerStateFault, ts.none).
		On(TurnSignalLeft, ts.left).
		On(TurnSignalNone, ts.none)

	ts.m = fsm.New("turn_signal", ts.none, ts)

	h, err := register(reg, ts.m, nil)
	if err != nil {
		return nil, err
	}
	ts.handle = h
	return ts, nil
}

func (ts *TurnSignal) output(left, right bool) fsm.Output[*TurnSignal] {
	return fsm.OutputFunc[*TurnSignal](func(*fsm.FSM[*TurnSignal], event.Event, *TurnSignal) {
		ts.transmit(FieldSignalLeft, onOff(left))
		ts.transmit(FieldSignalRight, onOff(right))
	})
}

func (ts *TurnSignal) Current() string {
	return ts.m.CurrentName()
}

func (ts *TurnSignal) FSM() *fsm.FSM[*TurnSignal] {
	return ts.m
}

func (ts *TurnSignal) Table() Table {
	return describe(ts.m, ts.none)
}

func (ts *TurnSignal) states() []*fsm.State[*TurnSignal] {
	return []*fsm.State[*TurnSignal]{ts.none, ts.left, ts.right}
}

// Hazards toggles on every press of the hazards button.
type Hazards struct {
	base
	m *fsm.FSM[*Hazards]

	off, on *fsm.State[*Hazards]
}

func NewHazards(reg *arbiter.Registry, d Deps) (*Hazards, error) {
	hz := &Hazards{base: newBase(d, "hazards")}

	hz.off = fsm.NewState[*Hazards]("off", hz.output(false, HazardsStateOff))
	hz.on = fsm.NewState[*Hazards]("on", hz.output(true, HazardsStateOn))

	hz.off.
		On(HazardsPressed, hz.on)
	hz.on.
		On(HazardsPressed, hz.off).
		On(PowerStateOff, hz.off).
		On(PowerStateFault, hz.off)

	hz.m = fsm.New("hazards", hz.off, hz)

	h, err := register(reg, hz.m, nil)
	if err != nil {
		return nil, err
	}
	hz.handle = h
	return hz, nil
}

func (hz *Hazards) output(on bool, state event.ID) fsm.Output[*Hazards] {
	return fsm.OutputFunc[*Hazards](func(*fsm.FSM[*Hazards], event.Event, *Hazards) {
		hz.transmit(FieldHazards, onOff(on))
		hz.raise(state)
	})
}

func (hz *Hazards) On() bool {
	return hz.m.In(hz.on)
}

func (hz *Hazards) FSM() *fsm.FSM[*Hazards] {
	return hz.m
}

func (hz *Hazards) Table() Table {
	return describe(hz.m, hz.off)
}

func (hz *Hazards) states() []*fsm.State[*Hazards] {
	return []*fsm.State[*Hazards]{hz.off, hz.on}
}

// Headlight combines the console low beam and DRL switches with the high
// beam flash on the stalk. High beam wins over both.
type Headlight struct {
	base
	m *fsm.FSM[*Headlight]

	off, lowbeam, drl, lowbeamHighbeam, drlHighbeam, highbeam *fsm.State[*Headlight]
}

func NewHeadlight(reg *arbiter.Registry, d Deps) (*Headlight, error) {
	hl := &Headlight{base: newBase(d, "headlight")}

	hl.off = fsm.NewState[*Headlight]("off", hl.output(false, false, false))
	hl.lowbeam = fsm.NewState[*Headlight]("lowbeam", hl.output(false, true, false))
	hl.drl = fsm.NewState[*Headlight]("drl", hl.output(true, false, false))
	high := hl.output(false, false, true)
	hl.lowbeamHighbeam = fsm.NewState[*Headlight]("lowbeam_highbeam", high)
	hl.drlHighbeam = fsm.NewState[*Headlight]("drl_highbeam", high)
	hl.highbeam = fsm.NewState[*Headlight]("highbeam", high)

	hl.off.
		On(LowBeams, hl.lowbeam).
		On(DRL, hl.drl).
		On(HighBeamPressed, hl.highbeam)
	hl.lowbeam.
		On(LowBeams, hl.off).
		On(DRL, hl.drl).
		On(HighBeamPressed, hl.lowbeamHighbeam).
		On(PowerStateOff, hl.off).
		On(PowerStateFault, hl.off)
	hl.drl.
		On(LowBeams, hl.lowbeam).
		On(DRL, hl.off).
		On(HighBeamPressed, hl.drlHighbeam).
		On(PowerStateOff, hl.off).
		On(PowerStateFault, hl.off)
	hl.lowbeamHighbeam.
		On(LowBeams, hl.highbeam).
		On(DRL, hl.drlHighbeam).
		On(HighBeamReleased, hl.lowbeam).
		On(PowerStateOff, hl.off).
		On(PowerStateFault, hl.off)
	hl.drlHighbeam.
		On(LowBeams, hl.lowbeamHighbeam).
		On(DRL, hl.highbeam).
		On(HighBeamReleased, hl.drl).
		On(PowerStateOff, hl.off).
		On(PowerStateFault, hl.off)
	hl.highbeam.
		On(LowBeams, hl.lowbeamHighbeam).
		On(DRL, hl.drlHighbeam).
		On(HighBeamReleased, hl.off).
		On(PowerStateOff, hl.off).
		On(PowerStateFault, hl.off)

	hl.m = fsm.New("headlight", hl.off, hl)

	h, err := register(reg, hl.m, nil)
	if err != nil {
		return nil, err
	}
	hl.handle = h
	return hl, nil
}

func (hl *Headlight) output(drl, low, high bool) fsm.Output[*Headlight] {
	return fsm.OutputFunc[*Headlight](func(*fsm.FSM[*Headlight], event.Event, *Headlight) {
		hl.transmit(FieldDRL, onOff(drl))
		hl.transmit(FieldLowBeam, onOff(low))
		hl.transmit(FieldHighBeam, onOff(high))
	})
}

func (hl *Headlight) Current() string {
	return hl.m.CurrentName()
}

func (hl *Headlight) FSM() *fsm.FSM[*Headlight] {
	return hl.m
}

func (hl *Headlight) Table() Table {
	return describe(hl.m, hl.off)
}

func (hl *Headlight) states() []*fsm.State[*Headlight] {
	return []*fsm.State[*Headlight]{hl.off, hl.lowbeam, hl.drl, hl.lowbeamHighbeam, hl.drlHighbeam, hl.highbeam}
}
