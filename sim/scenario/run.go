package scenario

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/machine"
	"github.com/inference-sim/flowsim/sim/power"
	"github.com/inference-sim/flowsim/sim/trace"
)

// MachineName returns the name the scenario's machine runs under.
func (s *Scenario) MachineName() string {
	switch {
	case s.Machine.Name != "":
		return s.Machine.Name
	case s.Name != "":
		return s.Name
	default:
		return "machine"
	}
}

// Build validates the scenario and creates its machine and workload on in.
func (s *Scenario) Build(in *sim.Interpreter) (*machine.Machine, machine.Workload, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	model, err := s.Machine.Build()
	if err != nil {
		return nil, nil, err
	}
	pm, err := s.Power.Build()
	if err != nil {
		return nil, nil, err
	}
	driver := power.NewDriver(pm)
	name := s.MachineName()
	if s.Power.SourceCapacity > 0 {
		driver = driver.WithSource(sim.NewResourceContext(in, name+"/source", s.Power.SourceCapacity))
	}
	m, err := machine.New(in, model, driver, machine.WithName(name))
	if err != nil {
		return nil, nil, err
	}
	part, err := s.Workload.Build(s.baseDir)
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	var w machine.Workload = part
	if len(s.Throttles) > 0 {
		w = throttled{Workload: part, throttles: s.Throttles}
	}
	return m, w, nil
}

// throttled applies capacity changes on a timer relative to the run start.
type throttled struct {
	machine.Workload
	throttles []Throttle
}

func (t throttled) OnStart(ctx machine.Context) error {
	for _, th := range t.throttles {
		ctx.After(th.At, func() {
			cpus := ctx.CPUs()
			if th.CPU != nil {
				cpus = cpus[*th.CPU : *th.CPU+1]
			}
			for _, cpu := range cpus {
				if err := cpu.SetCapacity(th.Capacity); err != nil {
					logrus.Warnf("[t %07d] throttle %s: %v", ctx.Now(), cpu.Name(), err)
				}
			}
		})
	}
	return t.Workload.OnStart(ctx)
}

// Run simulates s on a fresh interpreter and returns the run record. The
// record is filled in even when the run fails.
func Run(ctx context.Context, s *Scenario, config trace.TraceConfig) (trace.RunRecord, error) {
	var opts []sim.Option
	if s.Horizon > 0 {
		opts = append(opts, sim.WithHorizon(s.Horizon))
	}
	in := sim.NewInterpreter(opts...)
	m, w, err := s.Build(in)
	if err != nil {
		return trace.RunRecord{}, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	defer m.Close()

	logrus.WithFields(logrus.Fields{
		"scenario": s.Name,
		"machine":  m.Name(),
		"cores":    len(m.Model().CPUs),
		"workload": s.Workload.Kind,
	}).Info("Starting scenario")

	rec := trace.NewRecorder(config, m, s.Workload.Kind)
	runErr := m.Run(ctx, w)
	record := rec.Finish(runErr)

	if runErr != nil {
		logrus.Warnf("Scenario %s ended at %d ms: %v", s.Name, record.End, runErr)
		return record, fmt.Errorf("scenario %s: %w", s.Name, runErr)
	}
	logrus.Infof("Scenario %s completed in %d ms, %.3f J", s.Name, record.Duration(), record.Energy)
	return record, nil
}
