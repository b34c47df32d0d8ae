package hardware

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseMachineSpec_ValidYAML(t *testing.T) {
	data := `
name: node-a
cpus:
  - vendor: Intel
    model: Xeon Gold
    arch: amd64
    cores: 2
    sockets: 2
    frequency: 1000
memory:
  - vendor: Samsung
    model: DDR4
    speed: 3200
    size: 16GiB
    count: 2
`
	spec, err := ParseMachineSpec([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "node-a", spec.Name)
	assert.Equal(t, ByteSize(16<<30), spec.Memory[0].Size)

	model, err := spec.Build()
	require.NoError(t, err)

	// 2 sockets x 2 cores, each socket its own node
	require.Len(t, model.CPUs, 4)
	assert.Len(t, model.Nodes(), 2)
	assert.NotSame(t, model.CPUs[0].Node, model.CPUs[2].Node)
	assert.Same(t, model.CPUs[0].Node, model.CPUs[1].Node)
	assert.Equal(t, "Xeon Gold", model.CPUs[3].Node.ModelName)
	assert.Equal(t, 4000.0, model.TotalCapacity())

	require.Len(t, model.Memory, 2)
	assert.Equal(t, int64(32<<30), model.TotalMemory())
}

func TestParseMachineSpec_UnknownFieldRejected(t *testing.T) {
	data := `
cpus:
  - cores: 1
    frequncy: 1000
`
	_, err := ParseMachineSpec([]byte(data))
	assert.Error(t, err)
}

func TestByteSize_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
	}{
		{"size: 1024", 1024},
		{"size: 1KiB", 1024},
		{"size: 512m", 512 << 20},
		{"size: 2GiB", 2 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v struct {
				Size ByteSize `yaml:"size"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.want, v.Size)
		})
	}
}

func TestByteSize_InvalidString(t *testing.T) {
	var v struct {
		Size ByteSize `yaml:"size"`
	}
	err := yaml.Unmarshal([]byte("size: lots"), &v)
	assert.Error(t, err)
}

func TestByteSize_String(t *testing.T) {
	assert.Equal(t, "16GiB", ByteSize(16<<30).String())
}

func TestMachineSpec_Validate_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec MachineSpec
	}{
		{"no cpus", MachineSpec{}},
		{"zero cores", MachineSpec{CPUs: []CPUSpec{{Cores: 0, Frequency: 1}}}},
		{"negative sockets", MachineSpec{CPUs: []CPUSpec{{Cores: 1, Sockets: -1, Frequency: 1}}}},
		{"zero frequency", MachineSpec{CPUs: []CPUSpec{{Cores: 1}}}},
		{"negative memory count", MachineSpec{CPUs: []CPUSpec{{Cores: 1, Frequency: 1}}, Memory: []MemorySpec{{Count: -1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.spec.Validate())
			_, err := tt.spec.Build()
			assert.Error(t, err)
		})
	}
}

func TestLoadMachineSpec_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: m\ncpus:\n  - cores: 4\n    frequency: 2000\n"), 0o644))

	spec, err := LoadMachineSpec(path)
	require.NoError(t, err)
	model, err := spec.Build()
	require.NoError(t, err)
	assert.Len(t, model.CPUs, 4)
	assert.Empty(t, model.Memory)
}

func TestLoadMachineSpec_MissingFile(t *testing.T) {
	_, err := LoadMachineSpec(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
