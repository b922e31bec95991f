package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/tuning-core/internal/storage"
	"github.com/GoSim-25-26J-441/tuning-core/internal/tuner"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

func replayCmd() *cobra.Command {
	var dbPath, file string
	cmd := &cobra.Command{
		Use:   "replay [session-id]",
		Short: "Print the rounds of a persisted session or an exported replay file",
		Long: `Print the rounds of a tuning session.

With --db and no session id the stored sessions are listed.
With --file the replay document written by "bench --export" is read instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			switch {
			case file != "":
				return replayFile(out, file)
			case dbPath == "":
				return fmt.Errorf("either --db or --file is required")
			case len(args) == 0:
				return listStored(ctx, out, dbPath)
			default:
				return replayStored(ctx, out, dbPath, args[0])
			}
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database written by dsiced")
	cmd.Flags().StringVar(&file, "file", "", "replay YAML document")
	return cmd
}

func replayFile(out io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	doc, err := tuner.ReadReplay(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "algorithm: %s\n", doc.Algorithm)
	printResult(out, &doc.Result)
	printRounds(out, doc.Rounds)
	return nil
}

func listStored(ctx context.Context, out io.Writer, dbPath string) error {
	db, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	sessions, err := db.ListSessions(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tALGORITHM\tMEASURED\tUPDATED")
	for _, s := range sessions {
		measured := 0
		if s.Result != nil {
			measured = s.Result.Measured
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.Status, s.Algorithm, measured, s.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func replayStored(ctx context.Context, out io.Writer, dbPath, id string) error {
	db, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	sess, _, err := db.GetSession(ctx, id)
	if err != nil {
		return err
	}
	rounds, err := db.LoadHistory(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "session: %s (%s)\nalgorithm: %s\n", sess.ID, sess.Status, sess.Algorithm)
	if sess.Error != "" {
		fmt.Fprintf(out, "error: %s\n", sess.Error)
	}
	printResult(out, sess.Result)
	printRounds(out, rounds)
	return nil
}

func printResult(out io.Writer, r *models.Result) {
	if r == nil {
		return
	}
	fmt.Fprintf(out, "phase: %s, finished: %t, measured: %d / %d\n", r.Phase, r.Finished, r.Measured, r.Total)
	if r.Best != nil && r.Value != nil {
		fmt.Fprintf(out, "best: %s = %g\n", joinInts(r.Best.Coordinate), *r.Value)
	}
}

func printRounds(out io.Writer, rounds []models.Round) {
	for _, r := range rounds {
		fmt.Fprintf(out, "Loop = %d\n\tBase Point : %s\n", r.Loop, joinInts(r.Base))
		for _, m := range r.Measured {
			fmt.Fprintf(out, "\tMeasured Point : %s -> %g\n", joinInts(m.Coordinate), m.Value)
		}
	}
}

func joinInts(c []int) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
