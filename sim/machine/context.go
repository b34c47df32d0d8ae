package machine

import (
	"fmt"

	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/hardware"
)

// Workload is a unit of simulated demand. OnStart attaches consumers to the
// run's resource contexts and must eventually lead to Context.Close, usually
// when its consumers have finished. OnStop is called exactly once when the
// run context closes, whatever the reason.
type Workload interface {
	OnStart(ctx Context) error
	OnStop(ctx Context)
}

// Context is the view of a machine that a workload gets for one run.
// It is only valid on the goroutine driving the run.
type Context interface {
	Interpreter() *sim.Interpreter
	Now() int64
	Model() hardware.MachineModel
	// CPUs returns one context per processing unit, in model order.
	CPUs() []*sim.ResourceContext
	// Memory returns the aggregate memory context; its maximum is the total
	// memory size in bytes.
	Memory() *sim.ResourceContext
	// After schedules fn delay milliseconds from now. Pending timers are
	// stopped when the context closes.
	After(delay int64, fn func()) *sim.Timer
	// Close ends the run. Closing twice is a no-op.
	Close()
	Closed() bool
}

type runContext struct {
	in       *sim.Interpreter
	model    hardware.MachineModel
	cpus     []*sim.ResourceContext
	memory   *sim.ResourceContext
	workload Workload
	timers   []*sim.Timer
	closed   bool
}

func newRunContext(in *sim.Interpreter, name string, model hardware.MachineModel, w Workload) *runContext {
	r := &runContext{
		in:       in,
		model:    model,
		cpus:     make([]*sim.ResourceContext, len(model.CPUs)),
		workload: w,
	}
	for i, cpu := range model.CPUs {
		r.cpus[i] = sim.NewResourceContext(in, cpuName(name, i), cpu.Frequency)
	}
	r.memory = sim.NewResourceContext(in, name+"/memory", float64(model.TotalMemory()))
	return r
}

func cpuName(machine string, i int) string {
	return fmt.Sprintf("%s/cpu-%d", machine, i)
}

func (r *runContext) Interpreter() *sim.Interpreter { return r.in }
func (r *runContext) Now() int64                    { return r.in.Now() }
func (r *runContext) Model() hardware.MachineModel  { return r.model }
func (r *runContext) CPUs() []*sim.ResourceContext  { return r.cpus }
func (r *runContext) Memory() *sim.ResourceContext  { return r.memory }
func (r *runContext) Closed() bool                  { return r.closed }

func (r *runContext) After(delay int64, fn func()) *sim.Timer {
	if r.closed {
		// never fires; the run is over
		t := r.in.After(delay, func() {})
		t.Stop()
		return t
	}
	live := r.timers[:0]
	for _, t := range r.timers {
		if !t.Fired() && !t.Cancelled() {
			live = append(live, t)
		}
	}
	t := r.in.After(delay, fn)
	r.timers = append(live, t)
	return t
}

func (r *runContext) Close() {
	if r.closed {
		return
	}
	r.closed = true
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = nil
	for _, cpu := range r.cpus {
		cpu.Close()
	}
	r.memory.Close()
	r.workload.OnStop(r)
}
