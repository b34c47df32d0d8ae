// Package scenario describes a complete single-machine simulation in YAML:
// the machine, its power model, the workload and optional mid-run capacity
// throttles. Run builds a fresh interpreter for the scenario and records the
// run.
package scenario

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/flowsim/sim/hardware"
	"github.com/inference-sim/flowsim/sim/power"
	"github.com/inference-sim/flowsim/sim/workload"
)

// ValidWorkloadKinds lists the accepted workload kinds.
var ValidWorkloadKinds = map[string]bool{
	"flops":    true,
	"resource": true,
	"runtime":  true,
	"trace":    true,
	"join":     true,
}

// Scenario is a YAML simulation description.
// Loaded from YAML via Load(path).
type Scenario struct {
	Name      string               `yaml:"name"`
	Horizon   int64                `yaml:"horizon,omitempty"` // ms; 0 = unbounded
	Machine   hardware.MachineSpec `yaml:"machine"`
	Power     PowerSpec            `yaml:"power"`
	Workload  WorkloadSpec         `yaml:"workload"`
	Throttles []Throttle           `yaml:"throttles,omitempty"`

	baseDir string // resolves relative trace files
}

// PowerSpec selects the PSU power model.
type PowerSpec struct {
	Model          string    `yaml:"model"` // power.ValidModels or "interpolation"; empty = constant
	Idle           float64   `yaml:"idle"`
	Max            float64   `yaml:"max"`
	Samples        []float64 `yaml:"samples,omitempty"`         // interpolation only
	SourceCapacity float64   `yaml:"source_capacity,omitempty"` // watts; 0 = no upstream source
}

// WorkloadSpec describes the workload. Utilization 0 means full utilization.
type WorkloadSpec struct {
	Kind        string              `yaml:"kind"`
	Amount      float64             `yaml:"amount,omitempty"`
	Utilization float64             `yaml:"utilization,omitempty"`
	Duration    int64               `yaml:"duration,omitempty"` // ms, runtime only
	Fragments   []workload.Fragment `yaml:"fragments,omitempty"`
	TraceFile   string              `yaml:"trace_file,omitempty"`
	Parts       []WorkloadSpec      `yaml:"parts,omitempty"` // join only
}

// Throttle changes CPU capacity At ms after the run starts. CPU selects one
// core by index; nil throttles every core.
type Throttle struct {
	At       int64   `yaml:"at"`
	CPU      *int    `yaml:"cpu,omitempty"`
	Capacity float64 `yaml:"capacity"` // ops/s, clamped to the core frequency
}

// Load reads and parses a YAML scenario file. Relative trace files are
// resolved against the scenario's directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.baseDir = filepath.Dir(path)
	if s.Name == "" {
		s.Name = trimExt(filepath.Base(path))
	}
	return s, nil
}

// Parse parses a YAML scenario. Uses strict parsing: unrecognized keys
// (typos) are rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &s, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

// Validate checks that all fields in the scenario are valid.
func (s *Scenario) Validate() error {
	if s.Horizon < 0 {
		return fmt.Errorf("horizon must be non-negative, got %d", s.Horizon)
	}
	if err := s.Machine.Validate(); err != nil {
		return fmt.Errorf("machine: %w", err)
	}
	if err := s.Power.Validate(); err != nil {
		return fmt.Errorf("power: %w", err)
	}
	if err := s.Workload.validate("workload"); err != nil {
		return err
	}
	cores := 0
	for _, c := range s.Machine.CPUs {
		cores += c.Cores * max(c.Sockets, 1)
	}
	for i, t := range s.Throttles {
		prefix := fmt.Sprintf("throttles[%d]", i)
		if t.At < 0 {
			return fmt.Errorf("%s: at must be non-negative, got %d", prefix, t.At)
		}
		if t.CPU != nil && (*t.CPU < 0 || *t.CPU >= cores) {
			return fmt.Errorf("%s: cpu must be in [0, %d), got %d", prefix, cores, *t.CPU)
		}
		if math.IsNaN(t.Capacity) {
			return fmt.Errorf("%s: capacity must be a number", prefix)
		}
	}
	return nil
}

// Validate checks the model name and parameters.
func (p PowerSpec) Validate() error {
	switch {
	case p.Model == "" || p.Model == "interpolation":
	case !power.ValidModels[p.Model]:
		return fmt.Errorf("unknown model %q; valid: %v", p.Model, append(power.ModelNames(), "interpolation"))
	}
	if p.Model == "interpolation" && len(p.Samples) == 0 {
		return fmt.Errorf("interpolation model requires samples")
	}
	if p.Idle < 0 || p.Max < 0 {
		return fmt.Errorf("idle and max must be non-negative, got %v and %v", p.Idle, p.Max)
	}
	if p.SourceCapacity < 0 {
		return fmt.Errorf("source_capacity must be non-negative, got %v", p.SourceCapacity)
	}
	return nil
}

// Build returns the configured power model.
func (p PowerSpec) Build() (power.Model, error) {
	switch p.Model {
	case "":
		return power.Constant{Power: p.Max}, nil
	case "interpolation":
		return power.Interpolation{Samples: append([]float64(nil), p.Samples...)}, nil
	default:
		return power.New(p.Model, p.Idle, p.Max)
	}
}

func (w WorkloadSpec) validate(prefix string) error {
	if !ValidWorkloadKinds[w.Kind] {
		return fmt.Errorf("%s: unknown kind %q; valid: %v", prefix, w.Kind, workloadKinds())
	}
	if w.Kind == "join" {
		if len(w.Parts) == 0 {
			return fmt.Errorf("%s: join requires parts", prefix)
		}
		for i, p := range w.Parts {
			if p.Kind == "join" {
				return fmt.Errorf("%s.parts[%d]: nested join is not supported", prefix, i)
			}
			if err := p.validate(fmt.Sprintf("%s.parts[%d]", prefix, i)); err != nil {
				return err
			}
		}
		return nil
	}
	if len(w.Parts) > 0 {
		return fmt.Errorf("%s: parts are only valid for join", prefix)
	}
	if w.Kind == "trace" && len(w.Fragments) == 0 && w.TraceFile == "" {
		return fmt.Errorf("%s: trace requires fragments or trace_file", prefix)
	}
	return nil
}

func workloadKinds() []string {
	kinds := make([]string, 0, len(ValidWorkloadKinds))
	for k := range ValidWorkloadKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (w WorkloadSpec) utilization() float64 {
	if w.Utilization == 0 {
		return 1
	}
	return w.Utilization
}

// Build returns the workload; relative trace files are resolved against baseDir.
func (w WorkloadSpec) Build(baseDir string) (workload.Part, error) {
	switch w.Kind {
	case "flops":
		return workload.Flops{Amount: w.Amount, Utilization: w.utilization()}, nil
	case "resource":
		return workload.Resource{Amount: w.Amount, Utilization: w.utilization()}, nil
	case "runtime":
		return workload.Runtime{Duration: w.Duration, Utilization: w.utilization()}, nil
	case "trace":
		if w.TraceFile == "" {
			return workload.Trace{Fragments: append([]workload.Fragment(nil), w.Fragments...)}, nil
		}
		path := w.TraceFile
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		return workload.LoadTrace(path)
	case "join":
		parts := make([]workload.Part, 0, len(w.Parts))
		for _, spec := range w.Parts {
			p, err := spec.Build(baseDir)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		return workload.Join(parts...), nil
	default:
		return nil, fmt.Errorf("unknown workload kind %q", w.Kind)
	}
}
