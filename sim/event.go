package sim

// EventType classifies events for ordering of simultaneous events.
type EventType string

const (
	EventTypeDeadline EventType = "ConsumerDeadline"
	EventTypeTimer    EventType = "Timer"
)

// EventTypePriority defines ordering for simultaneous events
// Lower values are processed first
var EventTypePriority = map[EventType]int{
	EventTypeDeadline: 1,
	EventTypeTimer:    2,
}

// Event is a state change scheduled at a virtual instant.
// Each event has a Timestamp (in milliseconds) and an Execute method
// that mutates simulation state when the interpreter reaches it.
type Event interface {
	Timestamp() int64
	EventID() uint64
	Type() EventType
	Cancelled() bool
	Execute(in *Interpreter)
	base() *BaseEvent
}

// BaseEvent provides common event fields
type BaseEvent struct {
	timestamp int64
	eventID   uint64
	eventType EventType
	cancelled bool
	fired     bool
	index     int // slot in the EventHeap; -1 when not queued
}

func newBaseEvent(timestamp int64, eventType EventType, eventID uint64) BaseEvent {
	return BaseEvent{
		timestamp: timestamp,
		eventID:   eventID,
		eventType: eventType,
		index:     -1,
	}
}

func (e *BaseEvent) Timestamp() int64 {
	return e.timestamp
}

func (e *BaseEvent) EventID() uint64 {
	return e.eventID
}

func (e *BaseEvent) Type() EventType {
	return e.eventType
}

func (e *BaseEvent) base() *BaseEvent {
	return e
}

// Cancelled reports whether the event was withdrawn before it fired.
func (e *BaseEvent) Cancelled() bool {
	return e.cancelled
}

// cancel withdraws the event. It returns false if the event already fired or was cancelled.
func (e *BaseEvent) cancel() bool {
	if e.fired || e.cancelled {
		return false
	}
	e.cancelled = true
	return true
}

// Timer runs a callback at a virtual instant.
type Timer struct {
	BaseEvent
	in *Interpreter
	fn func()
}

// Stop prevents the timer from firing and removes it from the queue. It
// returns false if the timer already fired or was stopped.
func (t *Timer) Stop() bool {
	return t.in.unschedule(t)
}

// Fired reports whether the callback ran.
func (t *Timer) Fired() bool {
	return t.fired
}

func (t *Timer) Execute(in *Interpreter) {
	t.fired = true
	t.fn()
}

// deadlineEvent fires when a consumer's committed rate exhausts its remaining amount.
type deadlineEvent struct {
	BaseEvent
	consumer *Consumer
}

func (e *deadlineEvent) Execute(in *Interpreter) {
	e.fired = true
	e.consumer.complete(in.Now())
}
