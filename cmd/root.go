package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/flowsim/sim/export"
	"github.com/inference-sim/flowsim/sim/hardware"
	"github.com/inference-sim/flowsim/sim/scenario"
	"github.com/inference-sim/flowsim/sim/trace"
)

var (
	// CLI flags shared by run and batch
	logLevel   string // Log verbosity level
	traceLevel string // Trace verbosity (none, samples)
	metricsOut string // File to write Prometheus text metrics to

	// CLI flags for run
	scenarioPath   string            // YAML scenario file; overrides the inline flags below
	machinePath    string            // YAML machine description; overrides cores/sockets/frequency/memory
	cores          int               // Cores per socket
	sockets        int               // Number of sockets
	frequency      float64           // Operations per second per core
	memorySize     hardware.ByteSize // Total memory, e.g. 16GiB
	workloadKind   string            // flops, resource, runtime, trace
	amount         float64           // Operations (flops) or byte-seconds (resource)
	utilization    float64           // Target utilization fraction
	duration       int64             // Runtime workload duration in ms
	tracePath      string            // YAML trace for the trace workload
	powerModel     string            // Power model name
	idlePower      float64           // Idle power in watts
	maxPower       float64           // Max power in watts
	sourceCapacity float64           // Upstream power source capacity in watts (0 = none)
	horizon        int64             // Simulation horizon in ms (0 = unbounded)

	// CLI flags for batch
	parallel int // Scenarios simulated concurrently
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "flowsim",
	Short: "Virtual-time resource-flow simulator for datacenter machines",
}

// runCmd simulates one scenario given as a file or as inline flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single machine simulation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(); err != nil {
			return err
		}
		s, err := scenarioFromFlags()
		if err != nil {
			return err
		}
		cfg, err := traceConfig()
		if err != nil {
			return err
		}

		startTime := time.Now()
		record, runErr := scenario.Run(cmd.Context(), s, cfg)
		if runErr != nil && record.Machine == "" {
			return runErr
		}
		printRecord(cmd.OutOrStdout(), s.Name, record)
		if err := writeMetrics([]trace.RunRecord{record}); err != nil {
			return err
		}
		logrus.Infof("Simulation complete in %s wall-clock.", time.Since(startTime))
		return runErr
	},
}

func setupLogging() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logrus.SetLevel(level)
	return nil
}

func traceConfig() (trace.TraceConfig, error) {
	if !trace.IsValidTraceLevel(traceLevel) {
		return trace.TraceConfig{}, fmt.Errorf("invalid trace level %q; valid: none, samples", traceLevel)
	}
	return trace.TraceConfig{Level: trace.TraceLevel(traceLevel)}, nil
}

// scenarioFromFlags loads --scenario, or assembles a scenario from the inline flags.
func scenarioFromFlags() (*scenario.Scenario, error) {
	if scenarioPath != "" {
		s, err := scenario.Load(scenarioPath)
		if err != nil {
			return nil, err
		}
		if horizon > 0 {
			s.Horizon = horizon
		}
		return s, s.Validate()
	}

	s := &scenario.Scenario{
		Name:    "cli",
		Horizon: horizon,
		Power: scenario.PowerSpec{
			Model:          powerModel,
			Idle:           idlePower,
			Max:            maxPower,
			SourceCapacity: sourceCapacity,
		},
		Workload: scenario.WorkloadSpec{
			Kind:        workloadKind,
			Amount:      amount,
			Utilization: utilization,
			Duration:    duration,
			TraceFile:   tracePath,
		},
	}
	if machinePath != "" {
		spec, err := hardware.LoadMachineSpec(machinePath)
		if err != nil {
			return nil, err
		}
		s.Machine = *spec
	} else {
		s.Machine = hardware.MachineSpec{
			Name: "cli",
			CPUs: []hardware.CPUSpec{{Cores: cores, Sockets: sockets, Frequency: frequency}},
		}
		if memorySize > 0 {
			s.Machine.Memory = []hardware.MemorySpec{{Size: memorySize}}
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func writeMetrics(records []trace.RunRecord) error {
	if metricsOut == "" {
		return nil
	}
	e := export.NewExporter()
	for _, r := range records {
		e.Observe(r)
	}
	if err := e.WriteFile(metricsOut); err != nil {
		return err
	}
	logrus.Infof("Metrics written to %s", metricsOut)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, batchCmd} {
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
		c.Flags().StringVar(&traceLevel, "trace-level", "samples", "Trace level (none, samples)")
		c.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus text metrics to this file")
		c.Flags().Int64Var(&horizon, "horizon", 0, "Simulation horizon in ms (0 = unbounded)")
	}

	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "YAML scenario file (overrides inline machine, power and workload flags)")
	runCmd.Flags().StringVar(&machinePath, "machine", "", "YAML machine description (overrides cores, sockets, frequency, memory)")

	// Machine
	runCmd.Flags().IntVar(&cores, "cores", 2, "Cores per socket")
	runCmd.Flags().IntVar(&sockets, "sockets", 1, "Number of sockets")
	runCmd.Flags().Float64Var(&frequency, "frequency", 1000, "Operations per second per core")
	runCmd.Flags().Var(&memorySize, "memory", "Total memory, e.g. 16GiB")

	// Workload
	runCmd.Flags().StringVar(&workloadKind, "workload", "flops", "Workload kind (flops, resource, runtime, trace)")
	runCmd.Flags().Float64Var(&amount, "amount", 2000, "Operations (flops) or byte-seconds (resource)")
	runCmd.Flags().Float64Var(&utilization, "utilization", 1.0, "Target utilization fraction in (0, 1]")
	runCmd.Flags().Int64Var(&duration, "duration", 1000, "Runtime workload duration in ms")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "YAML utilization trace for the trace workload")

	// Power
	runCmd.Flags().StringVar(&powerModel, "power-model", "linear", "Power model (constant, linear, square, cubic, sqrt)")
	runCmd.Flags().Float64Var(&idlePower, "idle", 50, "Idle power in watts")
	runCmd.Flags().Float64Var(&maxPower, "max", 100, "Max power in watts")
	runCmd.Flags().Float64Var(&sourceCapacity, "source-capacity", 0, "Upstream power source capacity in watts (0 = none)")

	batchCmd.Flags().IntVar(&parallel, "parallel", 4, "Scenarios simulated concurrently")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
}
