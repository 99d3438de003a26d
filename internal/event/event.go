// Package event defines the unit of communication between input drivers,
// timers and state machines, and the queue that hands events from producer
// goroutines to the single dispatch loop.
package event

import "fmt"

// ID identifies what an event means. IDs are unique per meaning within a
// domain; the controls package owns the vehicle input IDs.
type ID uint16

// Event is a small fixed-size value. It is copied to every consumer and never
// mutated after it is created.
type Event struct {
	ID   ID
	Data uint16
}

// New builds an event. It exists mostly for readability at call sites.
func New(id ID, data uint16) Event {
	return Event{ID: id, Data: data}
}

func (e Event) String() string {
	return fmt.Sprintf("event(%d, %d)", e.ID, e.Data)
}
