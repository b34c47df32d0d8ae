// Package power translates machine utilization into electrical power.
//
// A Model is a pure, total function of utilization in [0,1]; inputs outside
// that range are clamped before evaluation. A Driver binds a model to a
// machine's PSU and optionally to an upstream power source context.
package power

import (
	"fmt"
	"math"
	"sort"

	"github.com/inference-sim/flowsim/sim"
)

// Model computes the power draw in watts at a given utilization.
type Model interface {
	ComputePower(utilization float64) float64
}

// ValidModels lists the model names accepted by New.
var ValidModels = map[string]bool{
	"constant": true,
	"linear":   true,
	"square":   true,
	"cubic":    true,
	"sqrt":     true,
}

// ModelNames returns the valid model names in sorted order.
func ModelNames() []string {
	names := make([]string, 0, len(ValidModels))
	for name := range ValidModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds a model by configuration name. The constant model draws max.
func New(name string, idle, max float64) (Model, error) {
	switch name {
	case "constant":
		return Constant{Power: max}, nil
	case "linear":
		return Linear{Idle: idle, Max: max}, nil
	case "square":
		return Square{Idle: idle, Max: max}, nil
	case "cubic":
		return Cubic{Idle: idle, Max: max}, nil
	case "sqrt":
		return Sqrt{Idle: idle, Max: max}, nil
	default:
		return nil, fmt.Errorf("unknown power model %q; valid: %v", name, ModelNames())
	}
}

func clampUtilization(u float64) float64 {
	return sim.Clamp(u, 0, 1)
}

// Constant draws the same power regardless of utilization.
type Constant struct {
	Power float64
}

func (m Constant) ComputePower(float64) float64 {
	return m.Power
}

// Linear interpolates between Idle and Max watts.
type Linear struct {
	Idle, Max float64
}

func (m Linear) ComputePower(u float64) float64 {
	return m.Idle + (m.Max-m.Idle)*clampUtilization(u)
}

// Square grows with the square of utilization.
type Square struct {
	Idle, Max float64
}

func (m Square) ComputePower(u float64) float64 {
	u = clampUtilization(u)
	return m.Idle + (m.Max-m.Idle)*u*u
}

// Cubic grows with the cube of utilization.
type Cubic struct {
	Idle, Max float64
}

func (m Cubic) ComputePower(u float64) float64 {
	u = clampUtilization(u)
	return m.Idle + (m.Max-m.Idle)*u*u*u
}

// Sqrt grows with the square root of utilization.
type Sqrt struct {
	Idle, Max float64
}

func (m Sqrt) ComputePower(u float64) float64 {
	return m.Idle + (m.Max-m.Idle)*math.Sqrt(clampUtilization(u))
}

// Interpolation linearly interpolates measured power samples taken at evenly
// spaced utilizations from 0% to 100%, e.g. the eleven SPECpower load levels.
// A single sample behaves like Constant; no samples draw nothing.
type Interpolation struct {
	Samples []float64
}

func (m Interpolation) ComputePower(u float64) float64 {
	switch len(m.Samples) {
	case 0:
		return 0
	case 1:
		return m.Samples[0]
	}
	pos := clampUtilization(u) * float64(len(m.Samples)-1)
	lo := int(math.Floor(pos))
	if lo >= len(m.Samples)-1 {
		return m.Samples[len(m.Samples)-1]
	}
	frac := pos - float64(lo)
	return m.Samples[lo] + (m.Samples[lo+1]-m.Samples[lo])*frac
}

// Driver binds a power model to a machine's PSU. When Source is set, the PSU
// draws from that context and its reported draw is capped by the source's
// capacity.
type Driver struct {
	Model  Model
	Source *sim.ResourceContext
}

// NewDriver returns a driver without an upstream source.
func NewDriver(model Model) Driver {
	return Driver{Model: model}
}

// WithSource returns a copy of d drawing from source.
func (d Driver) WithSource(source *sim.ResourceContext) Driver {
	d.Source = source
	return d
}
