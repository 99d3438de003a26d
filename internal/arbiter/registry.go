// Package arbiter gates events across every registered state machine and
// dispatches permitted events to all of them.
//
// Each machine is registered together with a guard. Before an event reaches
// any machine every guard is asked about it; a single denial drops the event
// for everyone. Machines replace their own guard from their output handlers
// as they change state, which is how one subsystem vetoes inputs that would be
// unsafe for another.
package arbiter

import (
	"errors"
	"sync"
	"sync/atomic"

	"driver-controls/internal/event"
)

var (
	// ErrResourceExhausted is returned by Add when every slot is taken.
	ErrResourceExhausted = errors.New("arbiter: registry full")
	// ErrSealed is returned by Add after Seal.
	ErrSealed = errors.New("arbiter: registry sealed")
)

// DefaultCapacity is the number of machines a registry holds when New is
// given no capacity.
const DefaultCapacity = 10

// Machine is what the registry dispatches to. *fsm.FSM satisfies it for any
// context type.
type Machine interface {
	Name() string
	CurrentName() string
	ProcessEvent(e event.Event) bool
}

// Guard decides whether an event may be delivered to anyone.
type Guard interface {
	Allow(e event.Event) bool
}

// GuardFunc adapts a plain function to Guard.
type GuardFunc func(e event.Event) bool

func (f GuardFunc) Allow(e event.Event) bool {
	return f(e)
}

// Deny returns a guard rejecting the listed event IDs and permitting all
// others.
func Deny(ids ...event.ID) Guard {
	return GuardFunc(func(e event.Event) bool {
		for _, id := range ids {
			if e.ID == id {
				return false
			}
		}
		return true
	})
}

// Only returns a guard permitting the listed event IDs and rejecting all
// others.
func Only(ids ...event.ID) Guard {
	return GuardFunc(func(e event.Event) bool {
		for _, id := range ids {
			if e.ID == id {
				return true
			}
		}
		return false
	})
}

type guardSlot struct {
	guard Guard
}

type entry struct {
	machine Machine
	guard   atomic.Pointer[guardSlot]
}

func (en *entry) load() Guard {
	if s := en.guard.Load(); s != nil {
		return s.guard
	}
	return nil
}

func (en *entry) store(g Guard) {
	if g == nil {
		en.guard.Store(nil)
		return
	}
	en.guard.Store(&guardSlot{guard: g})
}

// Handle identifies one registration. It stays valid for the lifetime of the
// registry and is safe to copy.
type Handle struct {
	entry *entry
	index int
}

// SetGuard replaces the guard of this registration. nil permits all events.
// It is safe to call from an output handler while the registry is
// dispatching.
func (h Handle) SetGuard(g Guard) {
	if h.entry == nil {
		return
	}
	h.entry.store(g)
}

// Index is the registration position, which is also the dispatch position.
func (h Handle) Index() int {
	return h.index
}

// Valid reports whether h came from a successful Add.
func (h Handle) Valid() bool {
	return h.entry != nil
}

// Registry is a fixed-capacity set of (machine, guard) pairs. All storage is
// allocated by New.
type Registry struct {
	locker  sync.Locker
	mode    DispatchMode
	entries []entry
	n       int
	sealed  bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLocker replaces the mutex serializing dispatch.
func WithLocker(l sync.Locker) Option {
	return func(r *Registry) {
		if l != nil {
			r.locker = l
		}
	}
}

// WithDispatchMode selects how permitted events are delivered.
func WithDispatchMode(m DispatchMode) Option {
	return func(r *Registry) {
		r.mode = m
	}
}

// New creates a registry holding up to capacity machines. A capacity of zero
// or less selects DefaultCapacity.
func New(capacity int, opts ...Option) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	r := &Registry{
		locker:  &sync.Mutex{},
		mode:    Exhaustive,
		entries: make([]entry, capacity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a machine with its initial guard. Registration order is
// dispatch order. Add must not be called from an output handler.
func (r *Registry) Add(m Machine, g Guard) (Handle, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	if r.sealed {
		return Handle{}, ErrSealed
	}
	if r.n == len(r.entries) {
		return Handle{}, ErrResourceExhausted
	}

	en := &r.entries[r.n]
	en.machine = m
	en.store(g)
	h := Handle{entry: en, index: r.n}
	r.n++
	return h, nil
}

// Seal ends registration. Later calls to Add fail with ErrSealed.
func (r *Registry) Seal() {
	r.locker.Lock()
	r.sealed = true
	r.locker.Unlock()
}

func (r *Registry) Sealed() bool {
	r.locker.Lock()
	defer r.locker.Unlock()
	return r.sealed
}

// Len is the number of registered machines.
func (r *Registry) Len() int {
	r.locker.Lock()
	defer r.locker.Unlock()
	return r.n
}

func (r *Registry) Cap() int {
	return len(r.entries)
}

// Machines returns the registered machine names in registration order.
func (r *Registry) Machines() []string {
	r.locker.Lock()
	defer r.locker.Unlock()

	names := make([]string, r.n)
	for i := 0; i < r.n; i++ {
		names[i] = r.entries[i].machine.Name()
	}
	return names
}
