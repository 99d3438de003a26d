// Package fsm is a small table-driven state machine engine.
//
// A machine holds its current state and a context value it owns exclusively.
// Processing an event walks the current state's table in declaration order;
// the first entry whose event matches and whose guard (if any) allows it is
// taken, and the target state's output handler runs. Events that match no
// entry leave the machine untouched.
//
// The engine never allocates while processing, does no I/O and never blocks.
// Serialization against concurrent callers is the arbiter's job.
package fsm

import "driver-controls/internal/event"

// FSM is one independently evolving state machine.
type FSM[C any] struct {
	name    string
	current *State[C]
	last    *State[C]
	context C
}

// New allocates and initializes a machine.
func New[C any](name string, initial *State[C], ctx C) *FSM[C] {
	m := &FSM[C]{}
	m.Init(name, initial, ctx)
	return m
}

// Init sets the current state and binds the context. The initial state's
// output is not run.
func (m *FSM[C]) Init(name string, initial *State[C], ctx C) {
	m.name = name
	m.current = initial
	m.last = initial
	m.context = ctx
}

// ProcessEvent returns whether a transition occurred.
func (m *FSM[C]) ProcessEvent(e event.Event) bool {
	if m.current == nil {
		return false
	}

	for _, t := range m.current.table {
		if !t.matches(m, e, m.context) {
			continue
		}

		m.last = m.current
		m.current = t.Target
		if t.Target.output != nil {
			t.Target.output.Output(m, e, m.context)
		}
		return true
	}

	return false
}

func (m *FSM[C]) Name() string {
	return m.name
}

func (m *FSM[C]) Current() *State[C] {
	return m.current
}

// Last is the state before the most recent transition.
func (m *FSM[C]) Last() *State[C] {
	return m.last
}

// CurrentName is the current state's name, "" before Init.
func (m *FSM[C]) CurrentName() string {
	if m.current == nil {
		return ""
	}
	return m.current.name
}

// In reports whether s is the current state.
func (m *FSM[C]) In(s *State[C]) bool {
	return m.current == s
}

func (m *FSM[C]) Context() C {
	return m.context
}
