package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/trace"
)

func sampledRun(machine string, start, end int64, usage, watts float64) trace.RunRecord {
	return trace.RunRecord{
		Machine:  machine,
		Workload: "flops",
		Start:    start,
		End:      end,
		Energy:   watts * float64(end-start) / 1000,
		Usage:    []sim.Sample{{Time: start, Value: usage}},
		Power:    []sim.Sample{{Time: start, Value: watts}},
	}
}

func TestExporter_WriteText(t *testing.T) {
	// GIVEN two completed runs and one failed run
	e := NewExporter()
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelSamples})
	st.RecordRun(sampledRun("m0", 0, 1000, 1, 100))
	st.RecordRun(sampledRun("m0", 1000, 1500, 0.5, 75))
	st.RecordRun(trace.RunRecord{Machine: "m0", Workload: "flops", Start: 1500, End: 1500, Err: "boom"})

	// WHEN exported
	e.ObserveTrace(st)
	var buf bytes.Buffer
	require.NoError(t, e.WriteText(&buf))
	out := buf.String()

	// THEN counters accumulate and gauges hold the latest run
	assert.Contains(t, out, `flowsim_runs_total{machine="m0",outcome="completed"} 2`)
	assert.Contains(t, out, `flowsim_runs_total{machine="m0",outcome="failed"} 1`)
	assert.Contains(t, out, `flowsim_energy_joules_total{machine="m0"} 137.5`)
	assert.Contains(t, out, `flowsim_virtual_seconds_total{machine="m0"} 1.5`)
	assert.Contains(t, out, `flowsim_last_run_duration_seconds{machine="m0",workload="flops"} 0`)
	assert.Contains(t, out, `flowsim_last_run_mean_usage_ratio{machine="m0",workload="flops"} 0.5`)
	assert.Contains(t, out, `flowsim_last_run_peak_power_watts{machine="m0",workload="flops"} 75`)
	assert.Contains(t, out, `flowsim_run_mean_usage_ratio_count{machine="m0"} 2`)
	assert.Contains(t, out, "# TYPE flowsim_run_mean_usage_ratio histogram")
}

func TestExporter_EmptyRegistry(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter().WriteText(&buf))
	assert.Empty(t, buf.String())
}

func TestExporter_WriteFile(t *testing.T) {
	e := NewExporter()
	e.Observe(sampledRun("m1", 0, 2000, 0.25, 60))
	path := filepath.Join(t.TempDir(), "metrics.prom")

	require.NoError(t, e.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `flowsim_virtual_seconds_total{machine="m1"} 2`)
}

func TestExporter_ObserveNilTrace(t *testing.T) {
	e := NewExporter()
	e.ObserveTrace(nil)
	families, err := e.Registry().Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}
