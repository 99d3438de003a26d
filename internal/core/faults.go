package core

import (
	"driver-controls/internal/controls"
	"driver-controls/internal/event"
	"driver-controls/internal/logger"
)

type Fault struct {
	Code        int
	Description string
}

var (
	FaultBatteryProtection = Fault{Code: 1, Description: "battery protection fault"}
	FaultThrottle          = Fault{Code: 2, Description: "throttle fault"}
)

// faultTracker reports fault edges. Faults are derived from the events
// themselves, so a fault is recorded even when a guard rejects the event.
type faultTracker struct {
	msg    MessagingClient
	log    *logger.Logger
	active map[int]bool
}

func newFaultTracker(msg MessagingClient, log *logger.Logger) *faultTracker {
	return &faultTracker{msg: msg, log: log, active: make(map[int]bool)}
}

func (f *faultTracker) observe(e event.Event) {
	switch e.ID {
	case controls.PowerStateFault:
		f.set(FaultBatteryProtection, true)
	case controls.PowerStateOff, controls.PowerStateCharge, controls.PowerStateDrive:
		f.set(FaultBatteryProtection, false)
	case controls.PedalFault:
		f.set(FaultThrottle, true)
	case controls.PedalBrake, controls.PedalCoast, controls.PedalAccel:
		f.set(FaultThrottle, false)
	}
}

func (f *faultTracker) set(fault Fault, present bool) {
	if f.active[fault.Code] == present {
		return
	}
	f.active[fault.Code] = present

	if present {
		f.log.Warnf("Fault present: %s", fault.Description)
	} else {
		f.log.Infof("Fault cleared: %s", fault.Description)
	}
	if f.msg == nil {
		return
	}

	var err error
	if present {
		err = f.msg.ReportFaultPresent(fault.Code, fault.Description)
	} else {
		err = f.msg.ReportFaultAbsent(fault.Code)
	}
	if err != nil {
		f.log.Warnf("Failed to report fault %d: %v", fault.Code, err)
	}
}

// present reports whether a fault is currently active.
func (f *faultTracker) present(fault Fault) bool {
	return f.active[fault.Code]
}
