// Package timer is a soft-timer service with a fixed number of slots.
//
// Callbacks run on their own goroutine when the timer expires. They are
// expected to be short: raise an event, re-arm themselves, transmit.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrResourceExhausted is returned by Start when every slot is busy.
	ErrResourceExhausted = errors.New("timer: no free slot")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("timer: service stopped")
)

// DefaultSlots is the slot count used when New is given none.
const DefaultSlots = 16

// ID identifies one started timer. IDs are not reused while the service
// lives, so cancelling a stale ID is harmless.
type ID int64

// InvalidID never refers to a timer. Use it to initialize stored IDs.
const InvalidID ID = -1

// Callback runs once when its timer expires.
type Callback func(id ID, context any)

type slot struct {
	t     *time.Timer
	gen   int64
	inUse bool
}

// Service owns the timer slots.
type Service struct {
	mu      sync.Mutex
	slots   []slot
	stopped bool
}

func New(slots int) *Service {
	if slots <= 0 {
		slots = DefaultSlots
	}
	return &Service{slots: make([]slot, slots)}
}

func (s *Service) makeID(index int, gen int64) ID {
	return ID(gen*int64(len(s.slots)) + int64(index))
}

func (s *Service) split(id ID) (int, int64, bool) {
	if id < 0 {
		return 0, 0, false
	}
	n := int64(len(s.slots))
	return int(int64(id) % n), int64(id) / n, true
}

// Start arms a one-shot timer calling cb(id, context) after d.
func (s *Service) Start(d time.Duration, cb Callback, context any) (ID, error) {
	if cb == nil {
		return InvalidID, errors.New("timer: nil callback")
	}
	if d < 0 {
		return InvalidID, fmt.Errorf("timer: negative duration %v", d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return InvalidID, ErrStopped
	}

	for i := range s.slots {
		sl := &s.slots[i]
		if sl.inUse {
			continue
		}

		sl.gen++
		sl.inUse = true
		gen := sl.gen
		id := s.makeID(i, gen)
		sl.t = time.AfterFunc(d, func() {
			s.fire(i, gen, id, cb, context)
		})
		return id, nil
	}

	return InvalidID, ErrResourceExhausted
}

func (s *Service) fire(index int, gen int64, id ID, cb Callback, context any) {
	s.mu.Lock()
	sl := &s.slots[index]
	if !sl.inUse || sl.gen != gen {
		// Cancelled after the runtime timer had already fired.
		s.mu.Unlock()
		return
	}
	sl.inUse = false
	sl.t = nil
	s.mu.Unlock()

	cb(id, context)
}

// Cancel stops a pending timer. It reports false for unknown, expired or
// already cancelled IDs. When it reports true the callback will not run.
func (s *Service) Cancel(id ID) bool {
	index, gen, ok := s.split(id)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sl := &s.slots[index]
	if !sl.inUse || sl.gen != gen {
		return false
	}
	if sl.t != nil {
		sl.t.Stop()
	}
	sl.inUse = false
	sl.t = nil
	return true
}

// Active reports whether id is still pending.
func (s *Service) Active(id ID) bool {
	index, gen, ok := s.split(id)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.slots[index]
	return sl.inUse && sl.gen == gen
}

// InUse reports whether any timer is pending.
func (s *Service) InUse() bool {
	return s.Pending() > 0
}

// Pending is the number of armed timers.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.slots {
		if s.slots[i].inUse {
			n++
		}
	}
	return n
}

// Stop cancels every pending timer and refuses further starts.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.t != nil {
			sl.t.Stop()
		}
		sl.inUse = false
		sl.t = nil
	}
}
