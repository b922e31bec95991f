// Command dsice validates tuning configurations, benchmarks the search
// algorithms against synthetic functions and prints persisted sessions.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
)

var (
	logLevel string
	verbose  bool
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dsice",
		Short:         "Discrete search-space tuning tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose {
				logger.SetDefault(logger.NewText(logLevel, cmd.ErrOrStderr()))
			} else {
				logger.SetDefault(logger.Discard())
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level when --verbose is set")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log tuner decisions to stderr")

	root.AddCommand(validateCmd())
	root.AddCommand(benchCmd())
	root.AddCommand(replayCmd())
	return root
}
