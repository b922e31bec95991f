package tuner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/tuning-core/internal/database"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
)

// ErrNoHistory is returned by the viewer log when the tuner does not record
// its rounds.
var ErrNoHistory = errors.New("tuner does not record its history")

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func joinCoordinate(c space.Coordinate, sep string) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}

// row writes "c0 c1 ... " with a trailing blank after every index
func row(w *bufio.Writer, c space.Coordinate) {
	for _, v := range c {
		w.WriteString(strconv.Itoa(v))
		w.WriteByte(' ')
	}
}

// WriteResult prints the tuning result block:
//
//	[Tuning Result]
//		Searching Status : Finish
//		Measured Points : 12 / 48 (25%)
//		Parameter : 4 128 (Coordinate : 2 3)
//		Performance Value : 1.5
func (t *Tuner) WriteResult(w io.Writer) error {
	if t.op == nil {
		return ErrNotBuilt
	}
	best, err := t.BestMeasured()
	if err != nil {
		return err
	}
	db := t.op.Database()
	total := t.Size().Total()
	measured := db.SampleCount()

	value := math.MaxFloat64
	if !t.opts.LowerIsBetter {
		value = -math.MaxFloat64
	}
	if db.HasSample(best) {
		value = db.Value(best)
	}

	status := "Tentative (Not Finish)"
	if t.op.Finished() {
		status = "Finish"
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "[Tuning Result]")
	fmt.Fprintf(bw, "\tSearching Status : %s\n", status)
	fmt.Fprintf(bw, "\tMeasured Points : %d / %d (%d%%)\n", measured, total, measured*100/total)
	fmt.Fprint(bw, "\tParameter :")
	for _, v := range t.mustValues(best) {
		fmt.Fprintf(bw, " %s", formatFloat(v))
	}
	fmt.Fprintf(bw, " (Coordinate : %s)\n", joinCoordinate(best, " "))
	fmt.Fprintf(bw, "\tPerformance Value : %s\n", formatFloat(value))
	return bw.Flush()
}

// WriteLoopLog prints the measurements reported since the last state
// update. Call it after reporting and before asking for the next
// suggestion.
func (t *Tuner) WriteLoopLog(w io.Writer) error {
	if t.op == nil {
		return ErrNotBuilt
	}
	sequential := !t.op.AlgorithmID().Parallel()
	bw := bufio.NewWriter(w)
	for i, s := range t.op.Database().LatestSamples() {
		fmt.Fprintf(bw, "Loop = %d", t.op.LoopCount()+1)
		if !sequential {
			fmt.Fprintf(bw, ", Measured = %d", i+1)
		}
		bw.WriteByte('\n')
		fmt.Fprintf(bw, "\tSearching Mode : %s\n", t.op.PhaseName())
		bw.WriteString("\tBase Point : ")
		row(bw, t.op.Base())
		bw.WriteByte('\n')
		bw.WriteString("\tMeasured Point : ")
		row(bw, s.Coordinate)
		bw.WriteByte('\n')
		fmt.Fprintf(bw, "\tPerformance : %s\n", formatFloat(s.Value))
	}
	return bw.Flush()
}

// WriteViewerLog dumps the recorded rounds for the log viewer. Rounds
// without measurements are skipped so the loop numbers stay contiguous.
func (t *Tuner) WriteViewerLog(w io.Writer) error {
	if t.op == nil {
		return ErrNotBuilt
	}
	rec := t.op.Recorder()
	if rec == nil {
		return ErrNoHistory
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, joinCoordinate(space.Coordinate(t.Size()), ","))

	loop := 1
	for _, base := range rec.Log() {
		for _, g := range base.Groups {
			if len(g.Measured) == 0 {
				continue
			}
			fmt.Fprintf(bw, "loop %d start\n", loop)
			bw.WriteString("base start\n")
			row(bw, base.Base)
			bw.WriteString("\nbase end\n")

			bw.WriteString("suggested start\n")
			for _, c := range g.Candidates {
				row(bw, c)
				bw.WriteByte('\n')
			}
			bw.WriteString("suggested end\n")

			bw.WriteString("measured start\n")
			for _, s := range g.Measured {
				row(bw, s.Coordinate)
				bw.WriteByte('\n')
			}
			bw.WriteString("measured end\n")
			fmt.Fprintf(bw, "loop %d end\n", loop)
			loop++
		}
	}
	return bw.Flush()
}

// WriteSearchSpace prints the space size followed by every point in
// row-major order with its value, or def when it was never measured.
func (t *Tuner) WriteSearchSpace(w io.Writer, def float64) error {
	if t.op == nil {
		return ErrNotBuilt
	}
	return writeSpace(w, t.op.Database(), def)
}

func writeSpace(w io.Writer, db database.Reader, def float64) error {
	size := db.SpaceSize()
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, joinCoordinate(space.Coordinate(size), ","))
	size.Walk(func(c space.Coordinate) bool {
		row(bw, c)
		v := def
		if db.HasSample(c) {
			v = db.Value(c)
		}
		bw.WriteString(formatFloat(v))
		bw.WriteByte('\n')
		return true
	})
	return bw.Flush()
}
