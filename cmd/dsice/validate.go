package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/tuning-core/internal/tuner"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/config"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [session.yaml...]",
		Short: "Check session configurations and report their search spaces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				summary, err := describeSession(path)
				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "ok   %s: %s\n", path, summary)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d configurations invalid", failed, len(args))
			}
			return nil
		},
	}
}

// describeSession loads and builds a session so that every error a daemon
// would report at creation shows up here.
func describeSession(path string) (string, error) {
	cfg, err := config.LoadSession(path)
	if err != nil {
		return "", err
	}
	tu, err := tuner.NewFromConfig(cfg)
	if err != nil {
		return "", err
	}
	if err := tu.Build(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s, %d parameters, %d points", tu.Algorithm(), tu.ParameterCount(), tu.Size().Total()), nil
}
