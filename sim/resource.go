package sim

import (
	"fmt"
	"math"
)

// Clamp limits v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ResourceContext is one capacity-bounded flow endpoint: a CPU core, the
// memory aggregate of a machine, or a power source.
//
// The context owns a hardware maximum and a mutable capacity clamped to
// [0, max]. At most one Consumer is attached; its achieved speed is
// min(demand, capacity). Usage (speed / capacity) is published on a Signal
// every time the interpreter settles the context.
//
// Thread-safety: NOT thread-safe, except for streams returned by Subscribe.
type ResourceContext struct {
	in       *Interpreter
	id       uint64
	name     string
	max      float64
	capacity float64
	speed    float64
	consumer *Consumer
	closed   bool
	dirty    bool
	usage    *Signal
}

// NewResourceContext creates an open context bound to in with capacity max.
func NewResourceContext(in *Interpreter, name string, max float64) *ResourceContext {
	if math.IsNaN(max) || max < 0 {
		max = 0
	}
	in.nextCtxID++
	return &ResourceContext{
		in:       in,
		id:       in.nextCtxID,
		name:     name,
		max:      max,
		capacity: max,
		usage:    NewSignal(0),
	}
}

func (rc *ResourceContext) Name() string {
	return rc.name
}

// Max returns the hardware maximum the capacity can never exceed.
func (rc *ResourceContext) Max() float64 {
	return rc.max
}

func (rc *ResourceContext) Capacity() float64 {
	return rc.capacity
}

// Speed returns the rate achieved by the consumer as of the last settled instant.
func (rc *ResourceContext) Speed() float64 {
	return rc.speed
}

// Demand returns the rate requested by the attached consumer, or 0.
func (rc *ResourceContext) Demand() float64 {
	if rc.consumer == nil {
		return 0
	}
	return rc.consumer.demand
}

// Usage returns speed as a fraction of capacity, or 0 at zero capacity.
func (rc *ResourceContext) Usage() float64 {
	if rc.capacity <= 0 {
		return 0
	}
	return Clamp(rc.speed/rc.capacity, 0, 1)
}

// Consumer returns the attached consumer, or nil.
func (rc *ResourceContext) Consumer() *Consumer {
	return rc.consumer
}

func (rc *ResourceContext) Closed() bool {
	return rc.closed
}

// Subscribe returns the usage stream of this context, starting with the current usage.
func (rc *ResourceContext) Subscribe(buffer int) *Stream {
	return rc.usage.Subscribe(rc.in.Now(), buffer)
}

// SetCapacity sets the capacity clamped to [0, Max()]. Out-of-range values
// are not an error.
func (rc *ResourceContext) SetCapacity(v float64) error {
	if rc.closed {
		return fmt.Errorf("set capacity of %s: %w", rc.name, ErrContextClosed)
	}
	v = Clamp(v, 0, rc.max)
	if v == rc.capacity {
		return nil
	}
	rc.capacity = v
	rc.in.markDirty(rc)
	return nil
}

// StartConsumer attaches a consumer with the given demand. The consumer runs
// until Amount is consumed, it is cancelled, or the context closes.
func (rc *ResourceContext) StartConsumer(d Demand) (*Consumer, error) {
	if rc.closed {
		return nil, fmt.Errorf("start consumer on %s: %w", rc.name, ErrContextClosed)
	}
	if rc.consumer != nil {
		return nil, fmt.Errorf("start consumer on %s: %w", rc.name, ErrConsumerActive)
	}
	amount := d.Amount
	if math.IsNaN(amount) || amount < 0 {
		amount = 0
	}
	c := &Consumer{
		rc:     rc,
		demand: nonNegative(d.Rate),
		amount: amount,
		last:   rc.in.Now(),
		done:   make(chan struct{}),
	}
	rc.consumer = c
	rc.in.markDirty(rc)
	return c, nil
}

// Close cancels the attached consumer, publishes zero usage and terminates
// the usage streams. Closing twice is a no-op; every other mutation of a
// closed context fails with ErrContextClosed.
func (rc *ResourceContext) Close() {
	if rc.closed {
		return
	}
	rc.closed = true
	if c := rc.consumer; c != nil {
		c.Cancel()
	}
	rc.speed = 0
	rc.usage.Publish(rc.in.Now(), 0)
	rc.usage.Close()
	rc.in.markDirty(rc)
}

// settle accounts consumption up to now with the rate that held since the
// previous instant, then commits the new rate.
func (rc *ResourceContext) settle(now int64) {
	c := rc.consumer
	if c != nil {
		c.account(now)
	}
	speed := 0.0
	if !rc.closed && c != nil {
		speed = math.Min(c.demand, rc.capacity)
	}
	rc.speed = speed
	if c != nil {
		c.reschedule(now)
	}
	rc.usage.Publish(now, rc.Usage())
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
