package sim

import "container/heap"

// EventHeap is the interpreter's queue of pending events.
//
// Events are ordered by timestamp, then by EventTypePriority, then by event
// ID, so simultaneous events execute in the same order on every run. Each
// queued event tracks its slot in the heap: a stopped timer or a superseded
// consumer deadline leaves the queue at once instead of lingering until it
// reaches the top.
type EventHeap struct {
	events []Event
}

// NewEventHeap returns an empty queue.
func NewEventHeap() *EventHeap {
	return &EventHeap{}
}

// Len returns the number of queued events. Implements heap.Interface.
func (h *EventHeap) Len() int {
	return len(h.events)
}

// Less implements heap.Interface.
func (h *EventHeap) Less(i, j int) bool {
	return runsBefore(h.events[i], h.events[j])
}

// runsBefore reports whether a executes before b.
func runsBefore(a, b Event) bool {
	if a.Timestamp() != b.Timestamp() {
		return a.Timestamp() < b.Timestamp()
	}
	// completions settle before timers mutate state
	if pa, pb := EventTypePriority[a.Type()], EventTypePriority[b.Type()]; pa != pb {
		return pa < pb
	}
	return a.EventID() < b.EventID()
}

// Swap implements heap.Interface and keeps slot indices current.
func (h *EventHeap) Swap(i, j int) {
	h.events[i], h.events[j] = h.events[j], h.events[i]
	h.events[i].base().index = i
	h.events[j].base().index = j
}

// Push implements heap.Interface. Use Schedule instead.
func (h *EventHeap) Push(x any) {
	e := x.(Event)
	e.base().index = len(h.events)
	h.events = append(h.events, e)
}

// Pop implements heap.Interface. Use PopNext instead.
func (h *EventHeap) Pop() any {
	last := len(h.events) - 1
	e := h.events[last]
	h.events[last] = nil
	h.events = h.events[:last]
	e.base().index = -1
	return e
}

// Schedule queues e. An event is queued at most once.
func (h *EventHeap) Schedule(e Event) {
	heap.Push(h, e)
}

// PopNext removes and returns the earliest event, or nil when empty.
func (h *EventHeap) PopNext() Event {
	if len(h.events) == 0 {
		return nil
	}
	return heap.Pop(h).(Event)
}

// Peek returns the earliest event without removing it, or nil when empty.
func (h *EventHeap) Peek() Event {
	if len(h.events) == 0 {
		return nil
	}
	return h.events[0]
}

// Remove takes e out of the queue. It returns false if e is not queued,
// because it already executed or was removed before.
func (h *EventHeap) Remove(e Event) bool {
	i := e.base().index
	if i < 0 || i >= len(h.events) || h.events[i] != e {
		return false
	}
	heap.Remove(h, i)
	return true
}
