package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/inference-sim/flowsim/sim/trace"
)

// printRecord writes the summary of one run.
func printRecord(w io.Writer, name string, r trace.RunRecord) {
	s := trace.SummarizeRun(r)
	fmt.Fprintf(w, "=== Simulation Results: %s ===\n", name)
	fmt.Fprintf(w, "Machine              : %s\n", r.Machine)
	fmt.Fprintf(w, "Workload             : %s\n", r.Workload)
	fmt.Fprintf(w, "Virtual Time         : %d ms -> %d ms (%d ms)\n", r.Start, r.End, s.Duration)
	fmt.Fprintf(w, "Energy               : %.3f J\n", s.Energy)
	fmt.Fprintf(w, "Mean Power           : %.2f W\n", s.MeanPower)
	if r.Usage != nil {
		fmt.Fprintf(w, "Mean Usage           : %.4f (stddev %.4f, peak %.4f)\n", s.MeanUsage, s.StdDevUsage, s.PeakUsage)
		fmt.Fprintf(w, "Mean Speed           : %.1f ops/s\n", s.MeanSpeed)
		fmt.Fprintf(w, "Peak Power           : %.2f W\n", s.PeakPower)
	}
	if r.Failed() {
		fmt.Fprintf(w, "Error                : %s\n", r.Err)
	}
}

// printBatch writes one row per scenario followed by the totals.
func printBatch(w io.Writer, names []string, records []trace.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tMACHINE\tDURATION (ms)\tENERGY (J)\tMEAN USAGE\tSTATUS")
	st := trace.NewSimulationTrace(trace.TraceConfig{})
	for i, r := range records {
		st.RecordRun(r)
		s := trace.SummarizeRun(r)
		status := "ok"
		if r.Failed() {
			status = r.Err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f\t%.4f\t%s\n", names[i], r.Machine, s.Duration, s.Energy, s.MeanUsage, status)
	}
	tw.Flush()

	total := trace.Summarize(st)
	fmt.Fprintln(w, "=== Batch Totals ===")
	fmt.Fprintf(w, "Runs                 : %d (%d failed)\n", total.Runs, total.FailedRuns)
	fmt.Fprintf(w, "Virtual Time         : %d ms\n", total.TotalDuration)
	fmt.Fprintf(w, "Energy               : %.3f J\n", total.TotalEnergy)
	fmt.Fprintf(w, "Mean Usage           : %.4f\n", total.MeanUsage)
	fmt.Fprintf(w, "Peak Power           : %.2f W\n", total.PeakPower)
}
