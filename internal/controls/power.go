package controls

import (
	"driver-controls/internal/arbiter"
	"driver-controls/internal/event"
	"driver-controls/internal/fsm"
)

// PowerMode is the externally visible power state.
type PowerMode int

const (
	PowerOff PowerMode = iota
	PowerCharge
	PowerDrive
	PowerFault
)

func (m PowerMode) String() string {
	switch m {
	case PowerOff:
		return "off"
	case PowerCharge:
		return "charge"
	case PowerDrive:
		return "drive"
	case PowerFault:
		return "fault"
	default:
		return "unknown"
	}
}

// While not driving only power, brake and fault inputs are accepted. This
// keeps lights and the drivetrain dark until the vehicle is on.
var poweredDownEvents = []event.ID{
	PowerButton,
	MechBrakePressed,
	MechBrakeReleased,
	BPSFault,
	PowerStateOff,
	PowerStateCharge,
	PowerStateDrive,
	PowerStateFault,
}

// Power selects between off, charging and drive with the power button. The
// button enters drive only while the mechanical brake is held, from off or
// from charging; without the brake it toggles charging. The *_brake states
// remember the brake across power changes and share their mode's output.
type Power struct {
	base
	m     *fsm.FSM[*Power]
	modes map[*fsm.State[*Power]]PowerMode
	guard arbiter.Guard

	off, offBrake, charging, chargingBrake, on, fault *fsm.State[*Power]
}

func NewPower(reg *arbiter.Registry, d Deps) (*Power, error) {
	p := &Power{
		base:  newBase(d, "power"),
		guard: arbiter.Only(poweredDownEvents...),
	}

	p.off = fsm.NewState[*Power]("off", fsm.OutputFunc[*Power](p.modeOutput))
	p.offBrake = fsm.NewState[*Power]("off_brake", fsm.OutputFunc[*Power](p.modeOutput))
	p.charging = fsm.NewState[*Power]("charging", fsm.OutputFunc[*Power](p.modeOutput))
	p.chargingBrake = fsm.NewState[*Power]("charging_brake", fsm.OutputFunc[*Power](p.modeOutput))
	p.on = fsm.NewState[*Power]("on", fsm.OutputFunc[*Power](p.modeOutput))
	p.fault = fsm.NewState[*Power]("fault", fsm.OutputFunc[*Power](p.modeOutput))

	p.modes = map[*fsm.State[*Power]]PowerMode{
		p.off:           PowerOff,
		p.offBrake:      PowerOff,
		p.charging:      PowerCharge,
		p.chargingBrake: PowerCharge,
		p.on:            PowerDrive,
		p.fault:         PowerFault,
	}

	p.off.
		On(PowerButton, p.charging).
		On(MechBrakePressed, p.offBrake).
		On(BPSFault, p.fault)
	p.offBrake.
		On(PowerButton, p.on).
		On(MechBrakeReleased, p.off).
		On(BPSFault, p.fault)
	p.charging.
		On(PowerButton, p.off).
		On(MechBrakePressed, p.chargingBrake).
		On(BPSFault, p.fault)
	p.chargingBrake.
		On(PowerButton, p.on).
		On(MechBrakeReleased, p.charging).
		On(BPSFault, p.fault)
	p.on.
		On(PowerButton, p.off).
		On(BPSFault, p.fault)
	p.fault.
		On(PowerButton, p.off)

	p.m = fsm.New("power", p.off, p)

	h, err := register(reg, p.m, p.guard)
	if err != nil {
		return nil, err
	}
	p.handle = h
	return p, nil
}

func (p *Power) modeOutput(m *fsm.FSM[*Power], e event.Event, _ *Power) {
	mode := p.modes[m.Current()]
	if last, ok := p.modes[m.Last()]; ok && last == mode && m.Last() != m.Current() {
		// Brake substate change only.
		return
	}

	p.transmit(FieldPower, mode.String())

	if p.deps.Drive != nil {
		if err := p.deps.Drive.SetEnabled(mode == PowerDrive); err != nil {
			p.log.Errorf("Failed to switch drive output: %v", err)
		}
	}

	switch mode {
	case PowerDrive:
		p.handle.SetGuard(nil)
		p.raise(PowerStateDrive)
	case PowerCharge:
		p.handle.SetGuard(p.guard)
		p.raise(PowerStateCharge)
	case PowerFault:
		p.handle.SetGuard(p.guard)
		p.raise(PowerStateFault)
	default:
		p.handle.SetGuard(p.guard)
		p.raise(PowerStateOff)
	}

	p.log.Infof("Power %s (from %s on %s)", mode, m.Last(), EventName(e.ID))
}

// Mode is the current power mode.
func (p *Power) Mode() PowerMode {
	return p.modes[p.m.Current()]
}

func (p *Power) FSM() *fsm.FSM[*Power] {
	return p.m
}

func (p *Power) Table() Table {
	return describe(p.m, p.off)
}

func (p *Power) states() []*fsm.State[*Power] {
	return []*fsm.State[*Power]{p.off, p.offBrake, p.charging, p.chargingBrake, p.on, p.fault}
}
