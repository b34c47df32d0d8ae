// Package trace records machine runs: their boundaries on the virtual clock,
// the energy drawn and, optionally, the usage, speed and power sample streams.
package trace

import "github.com/inference-sim/flowsim/sim"

// RunRecord captures a single machine run.
type RunRecord struct {
	Machine  string
	Workload string
	Start    int64 // ms
	End      int64 // ms
	Err      string
	Energy   float64 // joules drawn between Start and End

	Usage []sim.Sample // aggregate CPU utilization, nil unless sampled
	Speed []sim.Sample // aggregate ops/s, nil unless sampled
	Power []sim.Sample // PSU draw in watts, nil unless sampled
}

// Duration returns the run length in milliseconds.
func (r RunRecord) Duration() int64 {
	return r.End - r.Start
}

// Failed reports whether the run ended with an error.
func (r RunRecord) Failed() bool {
	return r.Err != ""
}
