package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueFull is returned when the ring for the requested priority has no
// free slot. The event is dropped; nothing already queued is displaced.
var ErrQueueFull = errors.New("event queue full")

// Priority orders delivery. Lower values are popped first.
type Priority int

const (
	PriorityHighest Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	numPriorities
)

var priorityNames = [numPriorities]string{"highest", "high", "normal", "low"}

func (p Priority) String() string {
	if p < PriorityHighest || p >= numPriorities {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority accepts a priority name. Empty means normal.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityNormal, nil
	}
	for i, name := range priorityNames {
		if name == s {
			return Priority(i), nil
		}
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", s)
}

// DefaultCapacity is the per-priority ring size.
const DefaultCapacity = 32

type ring struct {
	buf   []Event
	head  int
	count int
}

func (r *ring) push(e Event) bool {
	if r.count == len(r.buf) {
		return false
	}
	r.buf[(r.head+r.count)%len(r.buf)] = e
	r.count++
	return true
}

func (r *ring) pop() (Event, bool) {
	if r.count == 0 {
		return Event{}, false
	}
	e := r.buf[r.head]
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return e, true
}

// Queue is a fixed-capacity multi-priority FIFO. Raise may be called from any
// goroutine; Pop and Wait are meant for the one goroutine running the
// dispatch loop. All storage is allocated in NewQueue.
type Queue struct {
	mu     sync.Mutex
	rings  [numPriorities]ring
	notify chan struct{}
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{notify: make(chan struct{}, 1)}
	for i := range q.rings {
		q.rings[i].buf = make([]Event, capacity)
	}
	return q
}

// Raise queues an event at normal priority.
func (q *Queue) Raise(id ID, data uint16) error {
	return q.RaisePriority(PriorityNormal, id, data)
}

// RaisePriority queues an event at the given priority.
func (q *Queue) RaisePriority(p Priority, id ID, data uint16) error {
	if p < PriorityHighest || p >= numPriorities {
		p = PriorityLow
	}

	q.mu.Lock()
	ok := q.rings[p].push(Event{ID: id, Data: data})
	q.mu.Unlock()

	if !ok {
		return ErrQueueFull
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the oldest event of the highest non-empty priority. It never
// blocks.
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.rings {
		if e, ok := q.rings[i].pop(); ok {
			return e, true
		}
	}
	return Event{}, false
}

// Len reports the number of queued events across all priorities.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for i := range q.rings {
		n += q.rings[i].count
	}
	return n
}

// Wait blocks until an event may be available or ctx is done. A true result
// does not guarantee Pop succeeds; callers drain with Pop until it reports
// false and then Wait again.
func (q *Queue) Wait(ctx context.Context) bool {
	if q.Len() > 0 {
		return true
	}
	select {
	case <-q.notify:
		return true
	case <-ctx.Done():
		return false
	}
}
