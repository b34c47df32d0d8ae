package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inference-sim/flowsim/sim"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSamples})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.Runs != 0 || summary.FailedRuns != 0 {
		t.Errorf("expected 0 runs, got %d (%d failed)", summary.Runs, summary.FailedRuns)
	}
	if summary.TotalEnergy != 0 || summary.MeanUsage != 0 {
		t.Error("expected zero energy and usage")
	}
	if Summarize(nil).Runs != 0 {
		t.Error("expected nil trace to summarize to zero")
	}
}

func TestSummarizeRun_FullThenIdle(t *testing.T) {
	// GIVEN a run at full usage for its whole window
	r := RunRecord{
		Start:  0,
		End:    1000,
		Energy: 100,
		Usage:  []sim.Sample{{Time: 0, Value: 0}, {Time: 0, Value: 1}, {Time: 1000, Value: 0}},
		Power:  []sim.Sample{{Time: 0, Value: 50}, {Time: 0, Value: 100}, {Time: 1000, Value: 50}},
	}

	// WHEN summarized
	s := SummarizeRun(r)

	// THEN same-instant samples carry no weight
	assert.Equal(t, int64(1000), s.Duration)
	assert.InDelta(t, 1.0, s.MeanUsage, 1e-12)
	assert.InDelta(t, 0.0, s.StdDevUsage, 1e-12)
	assert.Equal(t, 1.0, s.PeakUsage)
	assert.InDelta(t, 100.0, s.MeanPower, 1e-12)
	assert.Equal(t, 100.0, s.PeakPower)
}

func TestSummarizeRun_TimeWeightedMean(t *testing.T) {
	// GIVEN half the window at 0.5 and half at 1
	r := RunRecord{
		Start: 0,
		End:   1000,
		Usage: []sim.Sample{{Time: 0, Value: 0.5}, {Time: 500, Value: 1}},
	}

	s := SummarizeRun(r)

	assert.InDelta(t, 0.75, s.MeanUsage, 1e-12)
	assert.InDelta(t, 0.25, s.StdDevUsage, 1e-3)
}

func TestSummarizeRun_Unsampled_PowerFromEnergy(t *testing.T) {
	s := SummarizeRun(RunRecord{Start: 1000, End: 3000, Energy: 150})

	assert.Equal(t, int64(2000), s.Duration)
	assert.InDelta(t, 75.0, s.MeanPower, 1e-12)
	assert.Equal(t, 0.0, s.MeanUsage)
}

func TestSummarizeRun_InstantRun(t *testing.T) {
	s := SummarizeRun(RunRecord{Start: 5, End: 5, Usage: []sim.Sample{{Time: 5, Value: 0.2}, {Time: 5, Value: 0}}})

	assert.Equal(t, 0.0, s.MeanUsage)
	assert.Equal(t, 0.2, s.PeakUsage)
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with one failed and two sampled runs
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSamples})
	st.RecordRun(RunRecord{Start: 0, End: 1000, Energy: 100,
		Usage: []sim.Sample{{Time: 0, Value: 1}},
		Power: []sim.Sample{{Time: 0, Value: 100}}})
	st.RecordRun(RunRecord{Start: 1000, End: 4000, Energy: 180,
		Usage: []sim.Sample{{Time: 1000, Value: 0.2}},
		Power: []sim.Sample{{Time: 1000, Value: 60}}})
	st.RecordRun(RunRecord{Start: 4000, End: 4000, Err: "boom"})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts and duration-weighted usage match
	assert.Equal(t, 3, summary.Runs)
	assert.Equal(t, 1, summary.FailedRuns)
	assert.Equal(t, int64(4000), summary.TotalDuration)
	assert.InDelta(t, 280.0, summary.TotalEnergy, 1e-12)
	assert.InDelta(t, 4000.0/3, summary.MeanDuration, 1e-9)
	assert.InDelta(t, (1*1000+0.2*3000)/4000.0, summary.MeanUsage, 1e-12)
	assert.Equal(t, 100.0, summary.PeakPower)
}
