package controls

import (
	"fmt"
	"sort"

	"driver-controls/internal/event"
)

// Input events. Driver inputs come from GPIO, the throttle sampler and the
// redis command list; state events are raised by the machines themselves.
const (
	PowerButton event.ID = iota + 1
	BPSFault

	MechBrakePressed // data: brake position
	MechBrakeReleased

	PowerStateOff
	PowerStateCharge
	PowerStateDrive
	PowerStateFault

	DirectionDrive
	DirectionNeutral
	DirectionReverse

	DirectionStateForward
	DirectionStateNeutral
	DirectionStateReverse

	PedalBrake // data: numerator out of throttle denominator
	PedalCoast
	PedalAccel
	PedalFault

	DriveUpdateRequested

	CruiseOn
	CruiseOff
	CruiseResume
	CruiseCancel
	CruiseSpeedPlus
	CruiseSpeedMinus
	CruiseSet
	VehicleSpeed // data: cm/s

	TurnSignalNone
	TurnSignalLeft
	TurnSignalRight

	HazardsPressed
	HazardsReleased
	HazardsStateOn
	HazardsStateOff

	LowBeams
	DRL
	HighBeamPressed
	HighBeamReleased

	numEvents
)

var eventNames = map[event.ID]string{
	PowerButton:           "power_button",
	BPSFault:              "bps_fault",
	MechBrakePressed:      "mech_brake_pressed",
	MechBrakeReleased:     "mech_brake_released",
	PowerStateOff:         "power_state_off",
	PowerStateCharge:      "power_state_charge",
	PowerStateDrive:       "power_state_drive",
	PowerStateFault:       "power_state_fault",
	DirectionDrive:        "direction_drive",
	DirectionNeutral:      "direction_neutral",
	DirectionReverse:      "direction_reverse",
	DirectionStateForward: "direction_state_forward",
	DirectionStateNeutral: "direction_state_neutral",
	DirectionStateReverse: "direction_state_reverse",
	PedalBrake:            "pedal_brake",
	PedalCoast:            "pedal_coast",
	PedalAccel:            "pedal_accel",
	PedalFault:            "pedal_fault",
	DriveUpdateRequested:  "drive_update_requested",
	CruiseOn:              "cruise_on",
	CruiseOff:             "cruise_off",
	CruiseResume:          "cruise_resume",
	CruiseCancel:          "cruise_cancel",
	CruiseSpeedPlus:       "cruise_speed_plus",
	CruiseSpeedMinus:      "cruise_speed_minus",
	CruiseSet:             "cruise_set",
	VehicleSpeed:          "vehicle_speed",
	TurnSignalNone:        "turn_signal_none",
	TurnSignalLeft:        "turn_signal_left",
	TurnSignalRight:       "turn_signal_right",
	HazardsPressed:        "hazards_pressed",
	HazardsReleased:       "hazards_released",
	HazardsStateOn:        "hazards_state_on",
	HazardsStateOff:       "hazards_state_off",
	LowBeams:              "lowbeams",
	DRL:                   "drl",
	HighBeamPressed:       "highbeam_pressed",
	HighBeamReleased:      "highbeam_released",
}

var eventsByName = func() map[string]event.ID {
	m := make(map[string]event.ID, len(eventNames))
	for id, name := range eventNames {
		m[name] = id
	}
	return m
}()

// EventName returns the wire name of id, or its number for unknown IDs.
func EventName(id event.ID) string {
	if name, ok := eventNames[id]; ok {
		return name
	}
	return fmt.Sprintf("event_%d", id)
}

// LookupEvent resolves a wire name to its ID.
func LookupEvent(name string) (event.ID, bool) {
	id, ok := eventsByName[name]
	return id, ok
}

// EventNames lists every known event name, sorted.
func EventNames() []string {
	names := make([]string, 0, len(eventNames))
	for _, name := range eventNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
