package engine

import (
	"sync"
	"time"

	"github.com/roach88/comande/internal/model"
)

// EventType distinguishes between event kinds.
type EventType string

const (
	// EventOrderCreated is a local submission.
	EventOrderCreated EventType = "order-created"
	// EventStatusChanged is a local lifecycle transition, timed or manual.
	EventStatusChanged EventType = "status-changed"
	// EventOrdersObserved carries the ids of orders absorbed by a merge.
	EventOrdersObserved EventType = "orders-observed"
	// EventStatusObserved is a status advance absorbed by a merge.
	EventStatusObserved EventType = "status-observed"
	// EventMenuChanged is a local menu edit.
	EventMenuChanged EventType = "menu-changed"
	// EventMenuReplaced means a merge replaced the menu lists.
	EventMenuReplaced EventType = "menu-replaced"
	// EventCleared is a local clear-all.
	EventCleared EventType = "cleared"
	// EventCollision is an incoming order rejected because its id is taken.
	EventCollision EventType = "collision"
	// EventWarning is a recoverable failure or a rejected user action.
	EventWarning EventType = "warning"
)

// Event is one entry of the engine's feed for the presentation layer.
type Event struct {
	Type     EventType    `json:"type"`
	OrderID  int          `json:"orderId,omitempty"`
	OrderIDs []int        `json:"orderIds,omitempty"`
	Status   model.Status `json:"status,omitempty"`
	Device   string       `json:"device,omitempty"`
	Message  string       `json:"message,omitempty"`
	At       time.Time    `json:"at"`
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so that the engine never blocks on a slow
// reader. The engine enqueues while holding its own lock; readers drain
// from any goroutine.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in readers.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking; the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// Drain removes and returns every queued event in FIFO order.
func (q *eventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Event, len(q.events))
	copy(out, q.events)
	clear(q.events)
	q.events = q.events[:0]
	return out
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    events := q.Drain()
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
