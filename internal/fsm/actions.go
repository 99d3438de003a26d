package fsm

import "driver-controls/internal/event"

// Output is run every time its state is entered, self transitions included.
// It is the only place a state machine has side effects: raising further
// events, transmitting, arming timers or replacing its own arbiter guard.
type Output[C any] interface {
	Output(m *FSM[C], e event.Event, ctx C)
}

// OutputFunc adapts a plain function to Output.
type OutputFunc[C any] func(m *FSM[C], e event.Event, ctx C)

func (f OutputFunc[C]) Output(m *FSM[C], e event.Event, ctx C) {
	f(m, e, ctx)
}

// Guard decides whether a transition entry may be taken for the pending
// event. Guards must not mutate anything.
type Guard[C any] interface {
	Allow(m *FSM[C], e event.Event, ctx C) bool
}

// GuardFunc adapts a plain function to Guard.
type GuardFunc[C any] func(m *FSM[C], e event.Event, ctx C) bool

func (f GuardFunc[C]) Allow(m *FSM[C], e event.Event, ctx C) bool {
	return f(m, e, ctx)
}

// DataNonZero allows the transition when the event payload is set. Switch
// style inputs report on/off through the payload.
func DataNonZero[C any]() Guard[C] {
	return GuardFunc[C](func(_ *FSM[C], e event.Event, _ C) bool {
		return e.Data != 0
	})
}

// DataZero is the complement of DataNonZero.
func DataZero[C any]() Guard[C] {
	return GuardFunc[C](func(_ *FSM[C], e event.Event, _ C) bool {
		return e.Data == 0
	})
}

// CameFrom allows the transition when the machine's previous state was s.
func CameFrom[C any](s *State[C]) Guard[C] {
	return GuardFunc[C](func(m *FSM[C], _ event.Event, _ C) bool {
		return m.Last() == s
	})
}

// All combines guards with AND logic. An empty list always allows.
func All[C any](guards ...Guard[C]) Guard[C] {
	return GuardFunc[C](func(m *FSM[C], e event.Event, ctx C) bool {
		for _, g := range guards {
			if !g.Allow(m, e, ctx) {
				return false
			}
		}
		return true
	})
}
