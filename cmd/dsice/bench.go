package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/tuning-core/internal/tuner"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/config"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

type benchOptions struct {
	configPath string
	function   string
	offset     float64
	workers    int
	maxRounds  int
	loopLog    bool
	exportPath string
}

func benchCmd() *cobra.Command {
	var opts benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a session configuration against a synthetic function",
		Long: `Run the configured search against a synthetic function and print the result.

Functions are evaluated on the parameter values, not on coordinates:
- sphere: sum of (x - offset)^2, minimum 0
- rosenbrock: banana valley, minimum 0 at x = 1 + offset
- parabola: negated sphere, maximum 0 (use objective: maximize)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config/session.yaml", "session YAML config")
	cmd.Flags().StringVarP(&opts.function, "func", "f", "sphere", "function to tune ("+benchNames()+")")
	cmd.Flags().Float64Var(&opts.offset, "offset", 0, "shift of the function optimum")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "concurrent measurements (defaults to max_parallel when parallel is set)")
	cmd.Flags().IntVar(&opts.maxRounds, "max-rounds", tuner.DefaultMaxRounds, "round limit")
	cmd.Flags().BoolVar(&opts.loopLog, "loop-log", false, "print the loop log after every round")
	cmd.Flags().StringVarP(&opts.exportPath, "export", "o", "", "write the replay document to this YAML file")
	return cmd
}

func runBench(ctx context.Context, out io.Writer, opts benchOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadSession(opts.configPath)
	if err != nil {
		return err
	}
	measure, err := lookupBench(opts.function, opts.offset)
	if err != nil {
		return err
	}
	tu, err := tuner.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	tu.SetLogger(logger.Component("bench"))

	measured := 0
	hook := func(t *tuner.Tuner, ms []models.Measurement) {
		measured += len(ms)
		if opts.loopLog {
			if err := t.WriteLoopLog(out); err != nil {
				fmt.Fprintf(out, "loop log: %v\n", err)
			}
		}
	}
	runOpts := []tuner.RunOption{tuner.WithMaxRounds(opts.maxRounds), tuner.WithRoundHook(hook)}

	workers := opts.workers
	if workers == 0 && cfg.Parallel {
		workers = cfg.MaxParallel
	}
	started := time.Now()
	if workers > 0 {
		err = tu.RunBatch(ctx, measure, workers, runOpts...)
	} else {
		err = tu.Run(ctx, measure, runOpts...)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	if err := tu.WriteResult(out); err != nil {
		return err
	}
	fmt.Fprintf(out, "[Bench]\n\tFunction : %s\n\tMeasurements : %d\n\tElapsed : %s\n",
		opts.function, measured, elapsed.Round(time.Microsecond))

	if opts.exportPath != "" {
		f, err := os.Create(opts.exportPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := tu.ExportYAML(f); err != nil {
			return err
		}
	}
	return nil
}
