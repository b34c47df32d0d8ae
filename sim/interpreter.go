package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// maxFlushRounds bounds the settle/observe fixed point of a single instant.
// Each round settles the contexts dirtied by the previous round's observers;
// a well-formed model converges in two or three rounds.
const maxFlushRounds = 64

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithHorizon stops Drive before it advances the clock past horizon (in milliseconds).
func WithHorizon(horizon int64) Option {
	return func(in *Interpreter) {
		if horizon >= 0 {
			in.horizon = horizon
		}
	}
}

type observer struct {
	fn func(now int64)
}

// Interpreter owns the virtual clock shared by every ResourceContext of a
// simulation and is the only component that advances it.
//
// Time advances in two phases. At the current instant every dirty context is
// settled (consumption accounted with the rate that held since the previous
// instant, new rate computed, completion deadline rescheduled) and observers
// are notified; only then does the clock move to the next live event.
// Rates are therefore constant between two advances.
//
// Thread-safety: NOT thread-safe. All methods must be called from the goroutine
// driving the simulation.
type Interpreter struct {
	clock       int64
	horizon     int64
	events      *EventHeap
	nextEventID uint64
	nextCtxID   uint64
	dirty       []*ResourceContext
	observers   []*observer
	driving     bool
	advances    int
}

// NewInterpreter creates an interpreter with its clock at zero.
func NewInterpreter(opts ...Option) *Interpreter {
	in := &Interpreter{
		horizon: math.MaxInt64,
		events:  NewEventHeap(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Now returns the current virtual time in milliseconds.
func (in *Interpreter) Now() int64 {
	return in.clock
}

// Horizon returns the last instant Drive may advance to.
func (in *Interpreter) Horizon() int64 {
	return in.horizon
}

// Advances returns how many times the clock moved forward.
func (in *Interpreter) Advances() int {
	return in.advances
}

// Pending returns the number of events still due to execute.
func (in *Interpreter) Pending() int {
	return in.events.Len()
}

func (in *Interpreter) newEventID() uint64 {
	in.nextEventID++
	return in.nextEventID
}

// Schedule runs fn when the clock reaches at. Instants in the past run at the current instant.
func (in *Interpreter) Schedule(at int64, fn func()) *Timer {
	if at < in.clock {
		at = in.clock
	}
	t := &Timer{
		BaseEvent: newBaseEvent(at, EventTypeTimer, in.newEventID()),
		in:        in,
		fn:        fn,
	}
	in.events.Schedule(t)
	return t
}

// After runs fn delay milliseconds from now.
func (in *Interpreter) After(delay int64, fn func()) *Timer {
	if delay < 0 {
		delay = 0
	}
	return in.Schedule(in.clock+delay, fn)
}

func (in *Interpreter) scheduleDeadline(at int64, c *Consumer) *deadlineEvent {
	e := &deadlineEvent{
		BaseEvent: newBaseEvent(at, EventTypeDeadline, in.newEventID()),
		consumer:  c,
	}
	in.events.Schedule(e)
	return e
}

// unschedule withdraws a queued event so it never executes. It returns false
// if the event already executed or was withdrawn.
func (in *Interpreter) unschedule(e Event) bool {
	if !e.base().cancel() {
		return false
	}
	in.events.Remove(e)
	return true
}

// Observe registers fn to run at the end of every flush round that settled
// at least one context. The returned func unregisters it.
func (in *Interpreter) Observe(fn func(now int64)) func() {
	obs := &observer{fn: fn}
	in.observers = append(in.observers, obs)
	return func() {
		for i, o := range in.observers {
			if o == obs {
				in.observers = append(in.observers[:i:i], in.observers[i+1:]...)
				return
			}
		}
	}
}

func (in *Interpreter) markDirty(rc *ResourceContext) {
	if rc.dirty {
		return
	}
	rc.dirty = true
	in.dirty = append(in.dirty, rc)
}

// Flush settles every context mutated at the current instant and notifies
// observers, repeating until no context is dirty. Drive flushes before each
// advance; callers only need Flush to observe mutations made outside Drive.
func (in *Interpreter) Flush() {
	for round := 0; len(in.dirty) > 0; round++ {
		if round >= maxFlushRounds {
			panic(fmt.Sprintf("flush did not converge at %d ms", in.clock))
		}
		dirty := in.dirty
		in.dirty = nil
		for _, rc := range dirty {
			rc.dirty = false
			rc.settle(in.clock)
		}
		observers := append([]*observer(nil), in.observers...)
		for _, obs := range observers {
			obs.fn(in.clock)
		}
	}
}

// Drive advances the simulation until done reports true.
//
// Before every advance the current instant is flushed. Drive returns
//   - nil once done holds (or, when done is nil, once no events remain),
//   - context.Cause(ctx) if ctx is cancelled; the clock stays at the instant
//     reached so far,
//   - ErrHorizonReached if the next event lies beyond the horizon,
//   - ErrStalled if no event can change state anymore,
//   - ErrInterpreterBusy if called from inside another Drive.
func (in *Interpreter) Drive(ctx context.Context, done func() bool) error {
	if in.driving {
		return ErrInterpreterBusy
	}
	in.driving = true
	defer func() { in.driving = false }()

	for {
		in.Flush()
		if done != nil && done() {
			return nil
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		next := in.events.Peek()
		if next == nil {
			if done == nil {
				return nil
			}
			return ErrStalled
		}
		if next.Timestamp() > in.horizon {
			return ErrHorizonReached
		}

		in.advance(next.Timestamp())
		for ev := in.events.Peek(); ev != nil && ev.Timestamp() == in.clock; ev = in.events.Peek() {
			in.events.PopNext()
			logrus.Debugf("[t %07d] executing %s #%d", in.clock, ev.Type(), ev.EventID())
			ev.Execute(in)
		}
	}
}

func (in *Interpreter) advance(to int64) {
	if to < in.clock {
		panic(fmt.Sprintf("clock went backwards: %d < %d", to, in.clock))
	}
	if to > in.clock {
		in.advances++
	}
	in.clock = to
}
