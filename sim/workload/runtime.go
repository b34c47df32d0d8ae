package workload

import (
	"fmt"
	"math"

	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/machine"
)

// Runtime keeps every core busy at Utilization for Duration milliseconds.
type Runtime struct {
	Duration    int64
	Utilization float64
}

// Validate checks the duration and utilization.
func (r Runtime) Validate() error {
	if r.Duration < 0 {
		return fmt.Errorf("runtime workload: duration must be non-negative, got %d", r.Duration)
	}
	if err := validateUtilization(r.Utilization); err != nil {
		return fmt.Errorf("runtime workload: %w", err)
	}
	return nil
}

func (r Runtime) OnStart(ctx machine.Context) error {
	return start(ctx, r)
}

func (r Runtime) OnStop(machine.Context) {}

func (r Runtime) attach(lc *Lifecycle, ctx machine.Context) error {
	if err := r.Validate(); err != nil {
		return err
	}
	consumers := make([]*sim.Consumer, 0, len(ctx.CPUs()))
	for _, cpu := range ctx.CPUs() {
		c, err := lc.Start(cpu, sim.Demand{Rate: r.Utilization * cpu.Max(), Amount: math.Inf(1)})
		if err != nil {
			return fmt.Errorf("runtime workload: %w", err)
		}
		consumers = append(consumers, c)
	}
	ctx.After(r.Duration, func() { cancelAll(consumers) })
	return nil
}

func cancelAll(consumers []*sim.Consumer) {
	for _, c := range consumers {
		c.Cancel()
	}
}
