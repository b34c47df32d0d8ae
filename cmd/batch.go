package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/flowsim/sim/scenario"
	"github.com/inference-sim/flowsim/sim/trace"
)

// batchCmd simulates several scenario files, each on its own interpreter
var batchCmd = &cobra.Command{
	Use:   "batch SCENARIO.yaml...",
	Short: "Run independent scenario files in parallel",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(); err != nil {
			return err
		}
		cfg, err := traceConfig()
		if err != nil {
			return err
		}
		scenarios := make([]*scenario.Scenario, len(args))
		for i, path := range args {
			s, err := scenario.Load(path)
			if err != nil {
				return err
			}
			if horizon > 0 {
				s.Horizon = horizon
			}
			if err := s.Validate(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			scenarios[i] = s
		}

		records, failed := runBatch(cmd.Context(), scenarios, cfg, parallel)

		names := make([]string, len(scenarios))
		for i, s := range scenarios {
			names[i] = s.Name
		}
		printBatch(cmd.OutOrStdout(), names, records)
		if err := writeMetrics(records); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
		}
		return nil
	},
}

// runBatch simulates scenarios with at most limit running at once. Records
// are returned in input order; a failed scenario does not stop the others.
func runBatch(ctx context.Context, scenarios []*scenario.Scenario, cfg trace.TraceConfig, limit int) ([]trace.RunRecord, int) {
	records := make([]trace.RunRecord, len(scenarios))
	errs := make([]error, len(scenarios))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			records[i], errs[i] = scenario.Run(ctx, s, cfg)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if records[i].Machine == "" {
			records[i] = trace.RunRecord{Machine: scenarios[i].MachineName(), Workload: scenarios[i].Workload.Kind, Err: err.Error()}
		}
		logrus.Warnf("Scenario %s failed: %v", scenarios[i].Name, err)
	}
	return records, failed
}
