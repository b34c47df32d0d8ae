package sim

import (
	"fmt"
	"math"
)

const (
	// amountTolerance is the relative remaining amount treated as fully consumed.
	amountTolerance = 1e-9
	// timeTolerance absorbs float error before rounding a deadline up to whole milliseconds.
	timeTolerance = 1e-6
)

// Demand describes what a consumer asks of a ResourceContext.
type Demand struct {
	Rate   float64 // requested rate in units per second
	Amount float64 // total units to consume; math.Inf(1) runs until cancelled
}

// ConsumerState is the lifecycle state of a Consumer.
type ConsumerState int

const (
	ConsumerActive ConsumerState = iota
	ConsumerCompleted
	ConsumerCancelled
)

func (s ConsumerState) String() string {
	switch s {
	case ConsumerActive:
		return "active"
	case ConsumerCompleted:
		return "completed"
	case ConsumerCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("ConsumerState(%d)", int(s))
	}
}

// Consumer is the handle returned by StartConsumer. It is the only writer of
// the demand placed on its context.
type Consumer struct {
	rc            *ResourceContext
	demand        float64
	amount        float64
	consumed      float64
	last          int64
	state         ConsumerState
	deadline      *deadlineEvent
	deadlineSpeed float64
	done          chan struct{}
	onExit        []func(*Consumer)
}

// Context returns the resource context the consumer is attached to.
func (c *Consumer) Context() *ResourceContext {
	return c.rc
}

func (c *Consumer) State() ConsumerState {
	return c.state
}

// Demand returns the requested rate.
func (c *Consumer) Demand() float64 {
	return c.demand
}

// Consumed returns the amount consumed up to the last settled instant.
func (c *Consumer) Consumed() float64 {
	return c.consumed
}

// Remaining returns the amount still to consume; +Inf for unbounded consumers.
func (c *Consumer) Remaining() float64 {
	if math.IsInf(c.amount, 1) {
		return c.amount
	}
	return math.Max(0, c.amount-c.consumed)
}

// Done is closed when the consumer completes or is cancelled.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// OnExit registers fn to run when the consumer exits. If it already exited,
// fn runs immediately.
func (c *Consumer) OnExit(fn func(*Consumer)) {
	if c.state != ConsumerActive {
		fn(c)
		return
	}
	c.onExit = append(c.onExit, fn)
}

// SetDemand changes the requested rate from the current instant on.
func (c *Consumer) SetDemand(rate float64) error {
	if c.state != ConsumerActive {
		return fmt.Errorf("set demand on %s: %w", c.rc.name, ErrConsumerExited)
	}
	rate = nonNegative(rate)
	if rate == c.demand {
		return nil
	}
	c.demand = rate
	c.rc.in.markDirty(c.rc)
	return nil
}

// Cancel detaches the consumer at the current instant. Cancelling an exited
// consumer is a no-op.
func (c *Consumer) Cancel() {
	if c.state != ConsumerActive {
		return
	}
	c.account(c.rc.in.Now())
	c.exit(ConsumerCancelled)
}

// account adds what the committed speed consumed since the last instant.
func (c *Consumer) account(now int64) {
	if c.state != ConsumerActive {
		return
	}
	if now > c.last {
		c.consumed += c.rc.speed * float64(now-c.last) / 1000
		if !math.IsInf(c.amount, 1) && c.consumed > c.amount {
			c.consumed = c.amount
		}
	}
	c.last = now
}

// reschedule places the completion deadline for the speed just committed.
func (c *Consumer) reschedule(now int64) {
	if c.state != ConsumerActive {
		return
	}
	speed := c.rc.speed
	if c.deadline != nil && !c.deadline.Cancelled() && speed == c.deadlineSpeed {
		return
	}
	if c.deadline != nil {
		c.rc.in.unschedule(c.deadline)
		c.deadline = nil
	}

	remaining := c.Remaining()
	var at int64
	switch {
	case math.IsInf(remaining, 1):
		return
	case remaining <= amountTolerance*math.Max(1, c.amount):
		at = now
	case speed <= 0:
		return
	default:
		ms := math.Ceil(remaining/speed*1000 - timeTolerance)
		if ms >= float64(math.MaxInt64-now) {
			return
		}
		at = now + max(0, int64(ms))
	}
	c.deadline = c.rc.in.scheduleDeadline(at, c)
	c.deadlineSpeed = speed
}

// complete is called by the deadline event at the instant the amount runs out.
func (c *Consumer) complete(now int64) {
	if c.state != ConsumerActive {
		return
	}
	c.account(now)
	c.consumed = c.amount
	c.exit(ConsumerCompleted)
}

func (c *Consumer) exit(state ConsumerState) {
	c.state = state
	if c.deadline != nil {
		c.rc.in.unschedule(c.deadline)
		c.deadline = nil
	}
	if rc := c.rc; rc.consumer == c {
		rc.consumer = nil
		rc.in.markDirty(rc)
	}
	close(c.done)
	callbacks := c.onExit
	c.onExit = nil
	for _, fn := range callbacks {
		fn(c)
	}
}
