package fsm

import (
	"errors"
	"fmt"
)

// Validate checks transition tables for configuration defects: nil targets
// and entries that can never be selected because an earlier unconditional
// entry for the same event shadows them. It is meant for tests; the engine
// itself never validates at runtime.
func Validate[C any](states ...*State[C]) error {
	var errs []error

	for _, s := range states {
		if s == nil {
			errs = append(errs, errors.New("nil state"))
			continue
		}

		unconditional := make(map[uint16]int)
		for i, t := range s.table {
			if t.Target == nil {
				errs = append(errs, fmt.Errorf("state %q entry %d: nil target", s.name, i))
			}
			if first, ok := unconditional[uint16(t.Event)]; ok {
				errs = append(errs, fmt.Errorf("state %q entry %d (event %d) is shadowed by unconditional entry %d",
					s.name, i, t.Event, first))
				continue
			}
			if t.Guard == nil {
				unconditional[uint16(t.Event)] = i
			}
		}
	}

	return errors.Join(errs...)
}

// Walk visits every state reachable from initial exactly once, breadth
// first, in table order.
func Walk[C any](initial *State[C], visit func(*State[C])) {
	if initial == nil {
		return
	}

	seen := map[*State[C]]bool{initial: true}
	pending := []*State[C]{initial}
	for len(pending) > 0 {
		s := pending[0]
		pending = pending[1:]
		visit(s)

		for _, t := range s.table {
			if t.Target != nil && !seen[t.Target] {
				seen[t.Target] = true
				pending = append(pending, t.Target)
			}
		}
	}
}

// Reachable returns every state reachable from initial, initial first.
func Reachable[C any](initial *State[C]) []*State[C] {
	var out []*State[C]
	Walk(initial, func(s *State[C]) {
		out = append(out, s)
	})
	return out
}
