package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpreter_TimersRunInOrder(t *testing.T) {
	// GIVEN timers scheduled out of order, two at the same instant
	in := NewInterpreter()
	var got []string
	in.Schedule(200, func() { got = append(got, "c") })
	in.Schedule(100, func() { got = append(got, "a") })
	in.Schedule(100, func() { got = append(got, "b") })

	// WHEN driven until no events remain
	err := in.Drive(context.Background(), nil)

	// THEN they ran by time, then by scheduling order
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, int64(200), in.Now())
	assert.Equal(t, 2, in.Advances())
	assert.Zero(t, in.Pending())
}

func TestInterpreter_ScheduleInThePastRunsNow(t *testing.T) {
	in := NewInterpreter()
	in.Schedule(50, func() {
		in.Schedule(10, func() {})
		in.After(-5, func() {})
	})

	require.NoError(t, in.Drive(context.Background(), nil))
	assert.Equal(t, int64(50), in.Now())
}

func TestTimer_Stop(t *testing.T) {
	// GIVEN a timer stopped before it fires
	in := NewInterpreter()
	ran := false
	tm := in.After(100, func() { ran = true })
	keep := in.After(200, func() {})
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop(), "second stop is a no-op")
	assert.Equal(t, 1, in.Pending(), "a stopped timer leaves the queue")
	assert.True(t, keep.Stop())
	assert.Zero(t, in.Pending())

	// WHEN driven
	require.NoError(t, in.Drive(context.Background(), nil))

	// THEN the callback never ran and the clock did not move
	assert.False(t, ran)
	assert.False(t, tm.Fired())
	assert.True(t, tm.Cancelled())
	assert.Zero(t, in.Now())
}

func TestTimer_StopOtherTimerAtSameInstant(t *testing.T) {
	// GIVEN two timers at the same instant, the first stopping the second
	in := NewInterpreter()
	var second *Timer
	in.After(10, func() { assert.True(t, second.Stop()) })
	ran := false
	second = in.After(10, func() { ran = true })

	require.NoError(t, in.Drive(context.Background(), nil))

	// THEN the second never runs
	assert.False(t, ran)
	assert.Zero(t, in.Pending())
}

func TestTimer_StopAfterFire(t *testing.T) {
	in := NewInterpreter()
	tm := in.After(10, func() {})
	require.NoError(t, in.Drive(context.Background(), nil))

	assert.True(t, tm.Fired())
	assert.False(t, tm.Stop())
}

func TestDrive_DoneConditionStopsEarly(t *testing.T) {
	in := NewInterpreter()
	count := 0
	for i := int64(1); i <= 5; i++ {
		in.Schedule(i*10, func() { count++ })
	}

	err := in.Drive(context.Background(), func() bool { return count == 3 })

	require.NoError(t, err)
	assert.Equal(t, int64(30), in.Now())
	assert.Equal(t, 2, in.Pending())
}

func TestDrive_Stalled(t *testing.T) {
	// GIVEN a done condition no event can satisfy
	in := NewInterpreter()
	in.After(10, func() {})

	err := in.Drive(context.Background(), func() bool { return false })

	assert.ErrorIs(t, err, ErrStalled)
	assert.Equal(t, int64(10), in.Now())
}

func TestDrive_Horizon(t *testing.T) {
	// GIVEN a horizon between two timers
	in := NewInterpreter(WithHorizon(100))
	first := in.After(50, func() {})
	second := in.After(200, func() {})

	err := in.Drive(context.Background(), nil)

	// THEN the clock stops at the last instant inside the horizon
	assert.ErrorIs(t, err, ErrHorizonReached)
	assert.Equal(t, int64(50), in.Now())
	assert.Equal(t, int64(100), in.Horizon())
	assert.True(t, first.Fired())
	assert.False(t, second.Fired())
}

func TestDrive_CancelledWithCause(t *testing.T) {
	// GIVEN a context cancelled from inside the simulation at 10 ms
	in := NewInterpreter()
	cause := errors.New("operator abort")
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	in.After(10, func() { cancel(cause) })
	late := in.After(20, func() {})

	err := in.Drive(ctx, nil)

	// THEN Drive returns the cause and the clock stays where it was
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, int64(10), in.Now())
	assert.False(t, late.Fired())
}

func TestDrive_Nested(t *testing.T) {
	in := NewInterpreter()
	var nested error
	in.After(1, func() { nested = in.Drive(context.Background(), nil) })

	require.NoError(t, in.Drive(context.Background(), nil))
	assert.ErrorIs(t, nested, ErrInterpreterBusy)
}

func TestObserve_CalledOnSettleAndUnregistered(t *testing.T) {
	// GIVEN an observer on an interpreter with one context
	in := NewInterpreter()
	rc := NewResourceContext(in, "cpu", 1000)
	var seen []int64
	stop := in.Observe(func(now int64) { seen = append(seen, now) })

	// WHEN the context changes at 0 and again at 100
	require.NoError(t, rc.SetCapacity(500))
	in.After(100, func() { _ = rc.SetCapacity(250) })
	require.NoError(t, in.Drive(context.Background(), nil))

	// THEN the observer ran once per settled instant
	assert.Equal(t, []int64{0, 100}, seen)

	// WHEN unregistered
	stop()
	require.NoError(t, rc.SetCapacity(1000))
	in.Flush()

	// THEN it is no longer called
	assert.Len(t, seen, 2)
}

func TestFlush_ObserverFeedbackConverges(t *testing.T) {
	// GIVEN an observer that mirrors one context's speed onto another's capacity
	in := NewInterpreter()
	a := NewResourceContext(in, "a", 1000)
	b := NewResourceContext(in, "b", 1000)
	in.Observe(func(int64) { _ = b.SetCapacity(a.Speed()) })

	_, err := a.StartConsumer(Demand{Rate: 300, Amount: 1})
	require.NoError(t, err)
	in.Flush()

	assert.Equal(t, 300.0, b.Capacity())
}

func TestFlush_DivergingObserverPanics(t *testing.T) {
	// GIVEN an observer that dirties a context on every round
	in := NewInterpreter()
	rc := NewResourceContext(in, "cpu", 1e6)
	in.Observe(func(int64) { _ = rc.SetCapacity(rc.Capacity() - 1) })
	require.NoError(t, rc.SetCapacity(100))

	assert.Panics(t, in.Flush)
}
