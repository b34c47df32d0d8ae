package power

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/internal/testutil"
)

func TestLinear_ComputePower(t *testing.T) {
	m := Linear{Idle: 50, Max: 100}
	tests := []struct {
		u, want float64
	}{
		{0, 50},
		{0.5, 75},
		{1, 100},
		{-0.3, 50},
		{1.7, 100},
		{math.NaN(), 50},
	}
	for _, tt := range tests {
		testutil.AssertFloat64Equal(t, "linear", tt.want, m.ComputePower(tt.u), 1e-12)
	}
}

func TestConstant_IgnoresUtilization(t *testing.T) {
	m := Constant{Power: 42}
	for _, u := range []float64{0, 0.25, 1, 3} {
		assert.Equal(t, 42.0, m.ComputePower(u))
	}
}

func TestCurvedModels_MatchEndpoints(t *testing.T) {
	// GIVEN curved models sharing idle/max
	models := map[string]Model{
		"square": Square{Idle: 10, Max: 110},
		"cubic":  Cubic{Idle: 10, Max: 110},
		"sqrt":   Sqrt{Idle: 10, Max: 110},
	}
	for name, m := range models {
		t.Run(name, func(t *testing.T) {
			// THEN idle at 0 and max at 1
			assert.Equal(t, 10.0, m.ComputePower(0))
			assert.Equal(t, 110.0, m.ComputePower(1))
		})
	}
	testutil.AssertFloat64Equal(t, "square", 35, Square{Idle: 10, Max: 110}.ComputePower(0.5), 1e-12)
	testutil.AssertFloat64Equal(t, "cubic", 22.5, Cubic{Idle: 10, Max: 110}.ComputePower(0.5), 1e-12)
	testutil.AssertFloat64Equal(t, "sqrt", 60, Sqrt{Idle: 10, Max: 110}.ComputePower(0.25), 1e-12)
}

func TestModels_MonotoneInUtilization(t *testing.T) {
	models := []Model{
		Linear{Idle: 50, Max: 100},
		Square{Idle: 50, Max: 100},
		Cubic{Idle: 50, Max: 100},
		Sqrt{Idle: 50, Max: 100},
		Interpolation{Samples: []float64{10, 20, 20, 35}},
	}
	for _, m := range models {
		prev := m.ComputePower(0)
		for i := 1; i <= 100; i++ {
			p := m.ComputePower(float64(i) / 100)
			assert.GreaterOrEqual(t, p, prev, "%T at %d%%", m, i)
			prev = p
		}
	}
}

func TestInterpolation_ComputePower(t *testing.T) {
	m := Interpolation{Samples: []float64{100, 200, 400}}

	assert.Equal(t, 100.0, m.ComputePower(0))
	assert.Equal(t, 150.0, m.ComputePower(0.25))
	assert.Equal(t, 200.0, m.ComputePower(0.5))
	assert.Equal(t, 300.0, m.ComputePower(0.75))
	assert.Equal(t, 400.0, m.ComputePower(1))
	assert.Equal(t, 400.0, m.ComputePower(2))

	assert.Equal(t, 0.0, Interpolation{}.ComputePower(0.5))
	assert.Equal(t, 7.0, Interpolation{Samples: []float64{7}}.ComputePower(0.5))
}

func TestNew_ByName(t *testing.T) {
	for name := range ValidModels {
		m, err := New(name, 50, 100)
		require.NoError(t, err, name)
		assert.Equal(t, 100.0, m.ComputePower(1), name)
	}

	_, err := New("quadratic", 50, 100)
	assert.Error(t, err)
}

func TestDriver_WithSource(t *testing.T) {
	in := sim.NewInterpreter()
	src := sim.NewResourceContext(in, "grid", 500)

	base := NewDriver(Linear{Idle: 1, Max: 2})
	d := base.WithSource(src)

	assert.Nil(t, base.Source)
	assert.Same(t, src, d.Source)
}
