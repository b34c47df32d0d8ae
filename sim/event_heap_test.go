package sim

import (
	"testing"
)

func newTestTimer(ts int64, id uint64) *Timer {
	return &Timer{BaseEvent: newBaseEvent(ts, EventTypeTimer, id), fn: func() {}}
}

func newTestDeadline(ts int64, id uint64) *deadlineEvent {
	return &deadlineEvent{BaseEvent: newBaseEvent(ts, EventTypeDeadline, id)}
}

// TestEventHeap_TimestampOrdering tests that events are popped in timestamp order
func TestEventHeap_TimestampOrdering(t *testing.T) {
	h := NewEventHeap()

	h.Schedule(newTestTimer(100, 1))
	h.Schedule(newTestTimer(50, 2))
	h.Schedule(newTestTimer(150, 3))

	for _, want := range []int64{50, 100, 150} {
		if got := h.PopNext().Timestamp(); got != want {
			t.Errorf("event timestamp = %d, want %d", got, want)
		}
	}
	if h.Len() != 0 {
		t.Errorf("Heap should be empty, len = %d", h.Len())
	}
}

// TestEventHeap_TypePriorityOrdering tests that deadlines precede timers at the same instant
func TestEventHeap_TypePriorityOrdering(t *testing.T) {
	h := NewEventHeap()

	// Timer scheduled first, so it has the lower ID
	h.Schedule(newTestTimer(100, 1))
	h.Schedule(newTestDeadline(100, 2))

	if first := h.PopNext(); first.Type() != EventTypeDeadline {
		t.Errorf("First event type = %s, want %s", first.Type(), EventTypeDeadline)
	}
	if second := h.PopNext(); second.Type() != EventTypeTimer {
		t.Errorf("Second event type = %s, want %s", second.Type(), EventTypeTimer)
	}
}

// TestEventHeap_EventIDOrdering tests same-instant same-type events pop in scheduling order
func TestEventHeap_EventIDOrdering(t *testing.T) {
	h := NewEventHeap()

	h.Schedule(newTestTimer(100, 3))
	h.Schedule(newTestTimer(100, 1))
	h.Schedule(newTestTimer(100, 2))

	for _, want := range []uint64{1, 2, 3} {
		if got := h.PopNext().EventID(); got != want {
			t.Errorf("event ID = %d, want %d", got, want)
		}
	}
}

func TestEventHeap_EmptyPeekAndPop(t *testing.T) {
	h := NewEventHeap()

	if h.Peek() != nil {
		t.Error("Peek on empty heap should return nil")
	}
	if h.PopNext() != nil {
		t.Error("PopNext on empty heap should return nil")
	}
}

func TestEventHeap_PeekDoesNotRemove(t *testing.T) {
	h := NewEventHeap()
	h.Schedule(newTestTimer(10, 1))

	if h.Peek().Timestamp() != 10 || h.Len() != 1 {
		t.Errorf("Peek changed the heap: len = %d", h.Len())
	}
}

// TestEventHeap_RemoveKeepsOrdering tests that removing a queued event leaves the rest in order
func TestEventHeap_RemoveKeepsOrdering(t *testing.T) {
	h := NewEventHeap()
	events := []*Timer{
		newTestTimer(40, 1),
		newTestTimer(10, 2),
		newTestTimer(30, 3),
		newTestTimer(20, 4),
		newTestTimer(50, 5),
	}
	for _, e := range events {
		h.Schedule(e)
	}

	if !h.Remove(events[2]) {
		t.Fatal("Remove of a queued event should return true")
	}
	if h.Remove(events[2]) {
		t.Error("second Remove should return false")
	}
	if h.Len() != 4 {
		t.Errorf("Len = %d, want 4", h.Len())
	}

	for _, want := range []int64{10, 20, 40, 50} {
		if got := h.PopNext().Timestamp(); got != want {
			t.Errorf("event timestamp = %d, want %d", got, want)
		}
	}
}

func TestEventHeap_RemoveAfterPop(t *testing.T) {
	h := NewEventHeap()
	first, second := newTestTimer(1, 1), newTestTimer(2, 2)
	h.Schedule(first)
	h.Schedule(second)

	popped := h.PopNext()

	if h.Remove(popped) {
		t.Error("Remove of a popped event should return false")
	}
	if h.Len() != 1 || h.Peek() != Event(second) {
		t.Errorf("queue changed by a failed Remove: len = %d", h.Len())
	}
}

func TestEventHeap_RemoveUnqueued(t *testing.T) {
	h := NewEventHeap()
	h.Schedule(newTestTimer(1, 1))

	if h.Remove(newTestTimer(1, 2)) {
		t.Error("Remove of an event never scheduled should return false")
	}
}
