package arbiter

import (
	"fmt"

	"driver-controls/internal/event"
)

// DispatchMode selects how a permitted event is delivered.
type DispatchMode int

const (
	// Exhaustive delivers to every registered machine.
	Exhaustive DispatchMode = iota
	// StopOnFirstTransition stops after the first machine that transitions.
	StopOnFirstTransition
)

func (m DispatchMode) String() string {
	switch m {
	case Exhaustive:
		return "exhaustive"
	case StopOnFirstTransition:
		return "stop-on-first-transition"
	default:
		return "unknown"
	}
}

// ParseDispatchMode is the inverse of DispatchMode.String.
func ParseDispatchMode(s string) (DispatchMode, error) {
	switch s {
	case "", "exhaustive":
		return Exhaustive, nil
	case "stop-on-first-transition":
		return StopOnFirstTransition, nil
	default:
		return Exhaustive, fmt.Errorf("unknown dispatch mode %q", s)
	}
}

// Result describes what happened to one event.
type Result struct {
	// Permitted is false when a guard rejected the event.
	Permitted bool
	// DeniedBy names the machine whose guard rejected the event.
	DeniedBy string
	// Transitioned is true when at least one machine changed state.
	Transitioned bool
}

// ProcessEvent runs the gate and delivers e. It reports whether any machine
// transitioned.
func (r *Registry) ProcessEvent(e event.Event) bool {
	return r.Dispatch(e).Transitioned
}

// Dispatch runs the gate and, if every guard permits e, delivers it to the
// registered machines in registration order.
//
// The lock is held for the whole call so no other dispatch can interleave
// between the gate and the deliveries. Output handlers may call
// Handle.SetGuard but must not call Dispatch; follow-up events go through the
// event queue.
func (r *Registry) Dispatch(e event.Event) Result {
	r.locker.Lock()
	defer r.locker.Unlock()

	entries := r.entries[:r.n]

	for i := range entries {
		if g := entries[i].load(); g != nil && !g.Allow(e) {
			return Result{DeniedBy: entries[i].machine.Name()}
		}
	}

	res := Result{Permitted: true}
	for i := range entries {
		if !entries[i].machine.ProcessEvent(e) {
			continue
		}
		res.Transitioned = true
		if r.mode == StopOnFirstTransition {
			break
		}
	}
	return res
}

// MachineState is one row of a Snapshot.
type MachineState struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Snapshot returns the current state of every machine in registration
// order. It is consistent: no dispatch runs while it is taken.
func (r *Registry) Snapshot() []MachineState {
	r.locker.Lock()
	defer r.locker.Unlock()

	out := make([]MachineState, r.n)
	for i := 0; i < r.n; i++ {
		m := r.entries[i].machine
		out[i] = MachineState{Name: m.Name(), State: m.CurrentName()}
	}
	return out
}
