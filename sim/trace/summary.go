package trace

import (
	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/flowsim/sim"
)

// RunSummary holds time-weighted statistics of one run.
type RunSummary struct {
	Duration    int64
	Energy      float64
	MeanUsage   float64
	StdDevUsage float64
	PeakUsage   float64
	MeanSpeed   float64
	MeanPower   float64
	PeakPower   float64
}

// SummarizeRun computes statistics over the sampled streams of r. Every
// sample holds until the next one, the last one until r.End. Unsampled
// records yield zero statistics apart from Duration and Energy; MeanPower is
// then derived from the energy.
func SummarizeRun(r RunRecord) RunSummary {
	s := RunSummary{Duration: r.Duration(), Energy: r.Energy}
	s.MeanUsage, s.StdDevUsage, s.PeakUsage = weighted(r.Usage, r.Start, r.End)
	s.MeanSpeed, _, _ = weighted(r.Speed, r.Start, r.End)
	s.MeanPower, _, s.PeakPower = weighted(r.Power, r.Start, r.End)
	if r.Power == nil && s.Duration > 0 {
		s.MeanPower = r.Energy / (float64(s.Duration) / 1000)
	}
	return s
}

// weighted returns the time-weighted mean and standard deviation and the
// maximum of a step function given by samples over [start, end].
func weighted(samples []sim.Sample, start, end int64) (mean, stddev, peak float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	x := make([]float64, len(samples))
	w := make([]float64, len(samples))
	total := 0.0
	for i, smp := range samples {
		from := max(smp.Time, start)
		to := end
		if i+1 < len(samples) {
			to = min(samples[i+1].Time, end)
		}
		x[i] = smp.Value
		if to > from {
			w[i] = float64(to - from)
		}
		total += w[i]
		if i == 0 || smp.Value > peak {
			peak = smp.Value
		}
	}
	if total == 0 {
		// instantaneous run: the final state is all there is
		return x[len(x)-1], 0, peak
	}
	mean = stat.Mean(x, w)
	if total > 1 {
		stddev = stat.StdDev(x, w)
	}
	return mean, stddev, peak
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	Runs          int
	FailedRuns    int
	TotalDuration int64
	TotalEnergy   float64
	MeanDuration  float64
	MeanUsage     float64 // duration-weighted over sampled runs
	PeakPower     float64
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{}
	if st == nil || len(st.Runs) == 0 {
		return summary
	}

	var usages, weights, durations []float64
	for _, r := range st.Runs {
		summary.Runs++
		if r.Failed() {
			summary.FailedRuns++
		}
		rs := SummarizeRun(r)
		summary.TotalDuration += rs.Duration
		summary.TotalEnergy += rs.Energy
		durations = append(durations, float64(rs.Duration))
		if rs.PeakPower > summary.PeakPower {
			summary.PeakPower = rs.PeakPower
		}
		if r.Usage != nil && rs.Duration > 0 {
			usages = append(usages, rs.MeanUsage)
			weights = append(weights, float64(rs.Duration))
		}
	}
	summary.MeanDuration = stat.Mean(durations, nil)
	if len(usages) > 0 {
		summary.MeanUsage = stat.Mean(usages, weights)
	}
	return summary
}
