package agent

import (
	"sync"
)

// EventType distinguishes platform events handled by the loop.
type EventType int

const (
	// EventSync fires a registered deferred-delivery tag.
	EventSync EventType = iota + 1
	// EventConnectivity reports a change in origin reachability.
	EventConnectivity
	// EventForeground asks for an opportunistic flush (startup, user action).
	EventForeground
	// EventFlush asks for a flush of records pending without a registration.
	EventFlush
)

func (t EventType) String() string {
	switch t {
	case EventSync:
		return "sync"
	case EventConnectivity:
		return "connectivity"
	case EventForeground:
		return "foreground"
	case EventFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// Event is one platform event.
type Event struct {
	Type   EventType
	Tag    string // EventSync
	Online bool   // EventConnectivity
}

// eventQueue is a thread-safe, unbounded FIFO.
//
// Producers (scheduler, HTTP handlers) enqueue from any goroutine; only the
// Run loop dequeues. The signal channel (buffer 1) lets the loop wait on it
// alongside ctx.Done().
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. Returns false once the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close was called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes the loop.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
