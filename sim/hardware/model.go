// Package hardware describes the machines flowsim simulates: processing nodes
// and their units (cores), memory units, and the machine model combining them.
// All types are immutable value descriptors; they carry no simulation state.
package hardware

import (
	"errors"
	"fmt"
	"math"
)

// ProcessingNode is a CPU package shared by its processing units.
type ProcessingNode struct {
	Vendor    string
	ModelName string
	Arch      string
	CoreCount int
}

// Units returns CoreCount processing units of this node running at frequency
// operations per second, numbered from 0.
func (n *ProcessingNode) Units(frequency float64) []ProcessingUnit {
	units := make([]ProcessingUnit, n.CoreCount)
	for i := range units {
		units[i] = ProcessingUnit{Node: n, ID: i, Frequency: frequency}
	}
	return units
}

// ProcessingUnit is one core of a ProcessingNode.
type ProcessingUnit struct {
	Node      *ProcessingNode
	ID        int     // core index within the node
	Frequency float64 // capacity in operations per second
}

// MemoryUnit is one memory module.
type MemoryUnit struct {
	Vendor    string
	ModelName string
	Speed     float64 // transfer rate in MT/s
	Size      int64   // capacity in bytes
}

// MachineModel is the hardware envelope of a machine: its cores in order and
// its memory modules.
type MachineModel struct {
	CPUs   []ProcessingUnit
	Memory []MemoryUnit
}

// NewMachineModel returns a model owning copies of cpus and memory.
func NewMachineModel(cpus []ProcessingUnit, memory []MemoryUnit) MachineModel {
	return MachineModel{
		CPUs:   append([]ProcessingUnit(nil), cpus...),
		Memory: append([]MemoryUnit(nil), memory...),
	}
}

// Validate checks the model defines a usable envelope.
func (m MachineModel) Validate() error {
	if len(m.CPUs) == 0 {
		return errors.New("machine model has no processing units")
	}
	for i, cpu := range m.CPUs {
		if math.IsNaN(cpu.Frequency) || math.IsInf(cpu.Frequency, 0) || cpu.Frequency <= 0 {
			return fmt.Errorf("processing unit %d: frequency must be positive, got %v", i, cpu.Frequency)
		}
	}
	for i, mem := range m.Memory {
		if mem.Size < 0 {
			return fmt.Errorf("memory unit %d: size must be non-negative, got %d", i, mem.Size)
		}
	}
	return nil
}

// TotalCapacity returns the aggregate CPU capacity in operations per second.
func (m MachineModel) TotalCapacity() float64 {
	total := 0.0
	for _, cpu := range m.CPUs {
		total += cpu.Frequency
	}
	return total
}

// TotalMemory returns the aggregate memory size in bytes.
func (m MachineModel) TotalMemory() int64 {
	var total int64
	for _, mem := range m.Memory {
		total += mem.Size
	}
	return total
}

// Nodes returns the distinct processing nodes in order of first appearance.
func (m MachineModel) Nodes() []*ProcessingNode {
	seen := make(map[*ProcessingNode]bool)
	var nodes []*ProcessingNode
	for _, cpu := range m.CPUs {
		if cpu.Node == nil || seen[cpu.Node] {
			continue
		}
		seen[cpu.Node] = true
		nodes = append(nodes, cpu.Node)
	}
	return nodes
}
