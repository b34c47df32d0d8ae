package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/machine"
)

// Fragment is one step of a utilization trace.
type Fragment struct {
	Duration int64   `yaml:"duration"` // milliseconds
	Usage    float64 `yaml:"usage"`    // fraction of each core's capacity, 0 to 1
}

// Trace replays a sequence of fragments on every core, changing the demand
// of the running consumers at each fragment boundary. The run ends after the
// last fragment.
type Trace struct {
	Fragments []Fragment `yaml:"fragments"`
}

// LoadTrace reads and parses a YAML trace file.
func LoadTrace(path string) (Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Trace{}, fmt.Errorf("reading trace: %w", err)
	}
	return ParseTrace(data)
}

// ParseTrace parses a YAML trace. Unknown keys are rejected.
func ParseTrace(data []byte) (Trace, error) {
	var tr Trace
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&tr); err != nil {
		return Trace{}, fmt.Errorf("parsing trace: %w", err)
	}
	if err := tr.Validate(); err != nil {
		return Trace{}, err
	}
	return tr, nil
}

// Validate checks every fragment.
func (tr Trace) Validate() error {
	if len(tr.Fragments) == 0 {
		return fmt.Errorf("trace workload: no fragments")
	}
	for i, f := range tr.Fragments {
		if f.Duration < 0 {
			return fmt.Errorf("trace workload: fragments[%d]: duration must be non-negative, got %d", i, f.Duration)
		}
		if math.IsNaN(f.Usage) || f.Usage < 0 || f.Usage > 1 {
			return fmt.Errorf("trace workload: fragments[%d]: usage must be in [0, 1], got %v", i, f.Usage)
		}
	}
	return nil
}

// Duration returns the total replay time in milliseconds.
func (tr Trace) Duration() int64 {
	var total int64
	for _, f := range tr.Fragments {
		total += f.Duration
	}
	return total
}

func (tr Trace) OnStart(ctx machine.Context) error {
	return start(ctx, tr)
}

func (tr Trace) OnStop(machine.Context) {}

func (tr Trace) attach(lc *Lifecycle, ctx machine.Context) error {
	if err := tr.Validate(); err != nil {
		return err
	}
	cpus := ctx.CPUs()
	consumers := make([]*sim.Consumer, 0, len(cpus))
	first := tr.Fragments[0].Usage
	for _, cpu := range cpus {
		c, err := lc.Start(cpu, sim.Demand{Rate: first * cpu.Max(), Amount: math.Inf(1)})
		if err != nil {
			return fmt.Errorf("trace workload: %w", err)
		}
		consumers = append(consumers, c)
	}

	var step func(i int)
	step = func(i int) {
		for _, c := range consumers {
			// exited consumers belong to a closed run
			_ = c.SetDemand(tr.Fragments[i].Usage * c.Context().Max())
		}
		ctx.After(tr.Fragments[i].Duration, func() {
			if i+1 < len(tr.Fragments) {
				step(i + 1)
				return
			}
			cancelAll(consumers)
		})
	}
	step(0)
	return nil
}
