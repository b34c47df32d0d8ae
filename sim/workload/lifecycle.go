// Package workload provides the demands that run on a machine: fixed
// operation counts on the CPUs, resource amounts on memory, fixed runtimes and
// replayed utilization traces. Several demands can be joined into one
// workload whose run completes only when all of them have finished.
package workload

import (
	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/machine"
)

// Lifecycle is a barrier over the consumers started during one run. Once
// sealed, it closes the machine context as soon as every consumer exited.
type Lifecycle struct {
	ctx       machine.Context
	consumers []*sim.Consumer
	pending   int
	sealed    bool
}

// NewLifecycle returns an unsealed barrier for ctx.
func NewLifecycle(ctx machine.Context) *Lifecycle {
	return &Lifecycle{ctx: ctx}
}

// Start attaches a consumer to rc and registers it with the barrier.
func (lc *Lifecycle) Start(rc *sim.ResourceContext, d sim.Demand) (*sim.Consumer, error) {
	c, err := rc.StartConsumer(d)
	if err != nil {
		return nil, err
	}
	lc.consumers = append(lc.consumers, c)
	lc.pending++
	c.OnExit(func(*sim.Consumer) {
		lc.pending--
		lc.check()
	})
	return c, nil
}

// Seal arms the barrier; no more consumers are expected.
func (lc *Lifecycle) Seal() {
	lc.sealed = true
	lc.check()
}

// Consumers returns the consumers started so far, in start order.
func (lc *Lifecycle) Consumers() []*sim.Consumer {
	return lc.consumers
}

// Pending returns the number of consumers that have not exited yet.
func (lc *Lifecycle) Pending() int {
	return lc.pending
}

func (lc *Lifecycle) check() {
	if lc.sealed && lc.pending == 0 && !lc.ctx.Closed() {
		lc.ctx.Close()
	}
}

// Part is one demand of a workload. Every Part is also a complete
// machine.Workload on its own.
type Part interface {
	machine.Workload
	attach(lc *Lifecycle, ctx machine.Context) error
}

// start attaches parts under one sealed barrier.
func start(ctx machine.Context, parts ...Part) error {
	lc := NewLifecycle(ctx)
	for _, p := range parts {
		if err := p.attach(lc, ctx); err != nil {
			return err
		}
	}
	lc.Seal()
	return nil
}

type joined []Part

// Join composes parts into one workload. Its run completes only when every
// part has finished. Parts must use disjoint resource contexts, e.g. Flops on
// the CPUs joined with Resource on memory.
func Join(parts ...Part) Part {
	return joined(append([]Part(nil), parts...))
}

func (j joined) OnStart(ctx machine.Context) error {
	return start(ctx, j)
}

func (j joined) OnStop(machine.Context) {}

func (j joined) attach(lc *Lifecycle, ctx machine.Context) error {
	for _, p := range j {
		if err := p.attach(lc, ctx); err != nil {
			return err
		}
	}
	return nil
}
