package hardware

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes that accepts human-readable YAML values
// such as "16GiB" or "512m" as well as plain integers.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", value.Line)
	}
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return err
		}
		*b = ByteSize(n)
		return nil
	}
	n, err := units.RAMInBytes(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = ByteSize(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

// String formats the size with binary units, e.g. "16GiB".
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// Set parses a human-readable size, so a ByteSize can back a command-line flag.
func (b *ByteSize) Set(s string) error {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// Type names the flag value type.
func (b *ByteSize) Type() string {
	return "bytes"
}

// MachineSpec is the YAML description of a machine.
// Loaded from YAML via LoadMachineSpec(path).
type MachineSpec struct {
	Name   string       `yaml:"name"`
	CPUs   []CPUSpec    `yaml:"cpus"`
	Memory []MemorySpec `yaml:"memory,omitempty"`
}

// CPUSpec describes Sockets identical processing nodes of Cores cores each.
type CPUSpec struct {
	Vendor    string  `yaml:"vendor,omitempty"`
	Model     string  `yaml:"model,omitempty"`
	Arch      string  `yaml:"arch,omitempty"`
	Cores     int     `yaml:"cores"`
	Sockets   int     `yaml:"sockets,omitempty"` // 0 = 1 socket
	Frequency float64 `yaml:"frequency"`         // operations per second per core
}

// MemorySpec describes Count identical memory modules.
type MemorySpec struct {
	Vendor string   `yaml:"vendor,omitempty"`
	Model  string   `yaml:"model,omitempty"`
	Speed  float64  `yaml:"speed,omitempty"`
	Size   ByteSize `yaml:"size"`
	Count  int      `yaml:"count,omitempty"` // 0 = 1 module
}

// LoadMachineSpec reads and parses a YAML machine description file.
func LoadMachineSpec(path string) (*MachineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading machine spec: %w", err)
	}
	return ParseMachineSpec(data)
}

// ParseMachineSpec parses a YAML machine description.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func ParseMachineSpec(data []byte) (*MachineSpec, error) {
	var spec MachineSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing machine spec: %w", err)
	}
	return &spec, nil
}

// Validate checks that all fields in the machine description are valid.
func (s *MachineSpec) Validate() error {
	if len(s.CPUs) == 0 {
		return fmt.Errorf("machine %q: at least one cpu entry required", s.Name)
	}
	for i, c := range s.CPUs {
		prefix := fmt.Sprintf("cpus[%d]", i)
		if c.Cores <= 0 {
			return fmt.Errorf("%s: cores must be positive, got %d", prefix, c.Cores)
		}
		if c.Sockets < 0 {
			return fmt.Errorf("%s: sockets must be non-negative, got %d", prefix, c.Sockets)
		}
		if math.IsNaN(c.Frequency) || math.IsInf(c.Frequency, 0) || c.Frequency <= 0 {
			return fmt.Errorf("%s: frequency must be a positive finite number, got %f", prefix, c.Frequency)
		}
	}
	for i, m := range s.Memory {
		prefix := fmt.Sprintf("memory[%d]", i)
		if m.Size < 0 {
			return fmt.Errorf("%s: size must be non-negative, got %d", prefix, m.Size)
		}
		if m.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative, got %d", prefix, m.Count)
		}
	}
	return nil
}

// Build validates the description and expands it into a MachineModel. Every socket
// becomes its own ProcessingNode.
func (s *MachineSpec) Build() (MachineModel, error) {
	if err := s.Validate(); err != nil {
		return MachineModel{}, err
	}
	var cpus []ProcessingUnit
	for _, c := range s.CPUs {
		for range max(c.Sockets, 1) {
			node := &ProcessingNode{
				Vendor:    c.Vendor,
				ModelName: c.Model,
				Arch:      c.Arch,
				CoreCount: c.Cores,
			}
			cpus = append(cpus, node.Units(c.Frequency)...)
		}
	}
	var memory []MemoryUnit
	for _, m := range s.Memory {
		for range max(m.Count, 1) {
			memory = append(memory, MemoryUnit{
				Vendor:    m.Vendor,
				ModelName: m.Model,
				Speed:     m.Speed,
				Size:      int64(m.Size),
			})
		}
	}
	return MachineModel{CPUs: cpus, Memory: memory}, nil
}
