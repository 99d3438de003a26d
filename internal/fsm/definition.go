package fsm

import (
	"fmt"

	"driver-controls/internal/event"
)

// Transition is one routing rule of a state's table.
type Transition[C any] struct {
	Event  event.ID
	Guard  Guard[C] // nil means unconditional
	Target *State[C]
}

func (t Transition[C]) matches(m *FSM[C], e event.Event, ctx C) bool {
	if t.Event != e.ID {
		return false
	}
	return t.Guard == nil || t.Guard.Allow(m, e, ctx)
}

func (t Transition[C]) String() string {
	target := "<nil>"
	if t.Target != nil {
		target = t.Target.name
	}
	if t.Guard != nil {
		return fmt.Sprintf("%d [guarded] -> %s", t.Event, target)
	}
	return fmt.Sprintf("%d -> %s", t.Event, target)
}

// State is a named mode of a machine. Its table is built once with On/OnIf
// before any machine is initialized with it, and is not changed afterwards.
//
// States reference each other freely, so declare them first and add
// transitions second:
//
//	off := fsm.NewState[*ctx]("off", nil)
//	on := fsm.NewState[*ctx]("on", nil)
//	off.On(evPower, on)
//	on.On(evPower, off)
type State[C any] struct {
	name   string
	output Output[C]
	table  []Transition[C]
}

// NewState creates a state. output may be nil.
func NewState[C any](name string, output Output[C]) *State[C] {
	return &State[C]{name: name, output: output}
}

func (s *State[C]) Name() string {
	return s.name
}

// On adds an unconditional transition.
func (s *State[C]) On(id event.ID, target *State[C]) *State[C] {
	s.table = append(s.table, Transition[C]{Event: id, Target: target})
	return s
}

// OnIf adds a guarded transition. Guarded entries must come before any
// unconditional entry for the same event, see Validate.
func (s *State[C]) OnIf(id event.ID, guard Guard[C], target *State[C]) *State[C] {
	s.table = append(s.table, Transition[C]{Event: id, Guard: guard, Target: target})
	return s
}

// Transitions returns the table in declaration order.
func (s *State[C]) Transitions() []Transition[C] {
	return s.table
}

func (s *State[C]) String() string {
	return s.name
}
