package workload

import (
	"errors"
	"fmt"
	"math"

	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/machine"
)

// ErrNoMemory is returned when a memory workload runs on a machine without memory.
var ErrNoMemory = errors.New("workload: machine has no memory")

func validateUtilization(u float64) error {
	if math.IsNaN(u) || u <= 0 || u > 1 {
		return fmt.Errorf("utilization must be in (0, 1], got %v", u)
	}
	return nil
}

func validateAmount(a float64) error {
	if math.IsNaN(a) || a < 0 {
		return fmt.Errorf("amount must be non-negative, got %v", a)
	}
	return nil
}

// Flops executes Amount operations spread over all cores. Each core gets a
// share proportional to its frequency and is driven at Utilization times its
// frequency, so at full capacity the run takes Amount / (Utilization * Σf).
type Flops struct {
	Amount      float64
	Utilization float64
}

// Validate checks the amount and utilization.
func (f Flops) Validate() error {
	if err := validateAmount(f.Amount); err != nil {
		return fmt.Errorf("flops workload: %w", err)
	}
	if err := validateUtilization(f.Utilization); err != nil {
		return fmt.Errorf("flops workload: %w", err)
	}
	return nil
}

func (f Flops) OnStart(ctx machine.Context) error {
	return start(ctx, f)
}

func (f Flops) OnStop(machine.Context) {}

func (f Flops) attach(lc *Lifecycle, ctx machine.Context) error {
	if err := f.Validate(); err != nil {
		return err
	}
	cpus := ctx.CPUs()
	total := 0.0
	for _, cpu := range cpus {
		total += cpu.Max()
	}
	for _, cpu := range cpus {
		share := 0.0
		if total > 0 {
			share = f.Amount * cpu.Max() / total
		}
		d := sim.Demand{Rate: f.Utilization * cpu.Max(), Amount: share}
		if _, err := lc.Start(cpu, d); err != nil {
			return fmt.Errorf("flops workload: %w", err)
		}
	}
	return nil
}

// Resource consumes Amount of the memory context (byte-seconds) at
// Utilization times the memory capacity.
type Resource struct {
	Amount      float64
	Utilization float64
}

// Validate checks the amount and utilization.
func (r Resource) Validate() error {
	if err := validateAmount(r.Amount); err != nil {
		return fmt.Errorf("resource workload: %w", err)
	}
	if err := validateUtilization(r.Utilization); err != nil {
		return fmt.Errorf("resource workload: %w", err)
	}
	return nil
}

func (r Resource) OnStart(ctx machine.Context) error {
	return start(ctx, r)
}

func (r Resource) OnStop(machine.Context) {}

func (r Resource) attach(lc *Lifecycle, ctx machine.Context) error {
	if err := r.Validate(); err != nil {
		return err
	}
	mem := ctx.Memory()
	if mem.Max() <= 0 {
		return fmt.Errorf("resource workload: %w", ErrNoMemory)
	}
	d := sim.Demand{Rate: r.Utilization * mem.Max(), Amount: r.Amount}
	if _, err := lc.Start(mem, d); err != nil {
		return fmt.Errorf("resource workload: %w", err)
	}
	return nil
}
