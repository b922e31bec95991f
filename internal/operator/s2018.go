package operator

import (
	"fmt"

	"github.com/GoSim-25-26J-441/tuning-core/internal/search"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
)

const (
	phaseInitial = iota
	phaseDirection
	phasePrepare
	phaseCurve
	phaseDone
)

var directionalPhases = []string{
	"Initial Search",
	"Direction Search",
	"One Dimensional d-Spline Search (Preparing Approximation)",
	"One Dimensional d-Spline Search",
	"Finished",
}

// Directional alternates a neighbour search around the base point with a
// d-Spline line search toward the best neighbour, moving the base whenever
// the line search finds a strictly better point.
//
// S_2018 starts by changing one axis at a time and widens the neighbourhood
// by one axis whenever a full round leaves the base where it was. S_2017
// always searches with every axis.
type Directional struct {
	*machine
	level    int
	escalate bool
	lhd      bool
	line     *space.Line
}

// NewS2018 creates the operator with the axis-level ratchet
func NewS2018(size space.Size, opts Options) (*Directional, error) {
	return newDirectional(Algorithm2018, size, opts, true)
}

func newDirectional(alg Algorithm, size space.Size, opts Options, escalate bool) (*Directional, error) {
	m, err := newMachine(alg, size, opts, directionalPhases)
	if err != nil {
		return nil, err
	}
	d := &Directional{machine: m, escalate: escalate, level: size.Dimension()}
	if escalate {
		d.level = 1
	}
	m.advance = d.advance

	switch opts.Init {
	case InitSpecified:
		d.setBasePoint(opts.Initial)
		d.use(search.NewUniMeasurer(d.base))
	case InitSearch:
		lhd := search.NewSimpleLhdSearcher(d.db, opts.LowerIsBetter, opts.Rand)
		d.lhd = true
		d.setBasePoint(lhd.Suggested())
		d.use(lhd)
	default:
		d.setBasePoint(size.Center())
		d.use(search.NewUniMeasurer(d.base))
	}
	d.log.Debug("operator created", "size", fmt.Sprint([]int(size)), "init", opts.Init.String(), "base", d.base.Key())
	return d, nil
}

// AxisLevel returns how many axes the direction search changes at once
func (d *Directional) AxisLevel() int {
	return d.level
}

// Line returns the line of the current line search, nil outside of it
func (d *Directional) Line() *space.Line {
	return d.line
}

func (d *Directional) BestJudged() space.Coordinate {
	d.UpdateState()
	return d.pick(d.searcher.BestJudged())
}

func (d *Directional) BestMeasured() space.Coordinate {
	d.UpdateState()
	return d.pick(d.searcher.BestMeasured())
}

func (d *Directional) Snapshot() State {
	st := d.machine.Snapshot()
	st.AxisLevel = d.level
	return st
}

// startDirection installs a direction search from the base at the current
// level and reports whether it has anything to measure.
func (d *Directional) startDirection() bool {
	d.line = nil
	sd, err := search.NewSimpleDirectionSearcher(d.db, d.base, d.level, d.opts.LowerIsBetter)
	if err != nil {
		d.log.Error("direction search", "error", err, "base", d.base.Key(), "level", d.level)
		d.finish()
		return false
	}
	d.use(sd)
	d.setPhase(phaseDirection)
	return !sd.Finished()
}

// noImprovement handles a round that leaves the base in place. It returns
// true when the phase loop has to run again.
func (d *Directional) noImprovement() bool {
	if !d.escalate || d.level >= d.dimension() {
		d.finish()
		return false
	}
	d.level++
	d.log.Debug("axis level raised", "level", d.level, "base", d.base.Key())
	return !d.startDirection()
}

func (d *Directional) dimension() int {
	return d.db.Dimension()
}

func (d *Directional) advance() {
	for d.phase != phaseDone && d.searcher.Finished() {
		switch d.phase {
		case phaseInitial:
			if d.lhd {
				if best := d.searcher.BestJudged(); best != nil {
					d.setBasePoint(best)
				}
			}
			if !d.startDirection() {
				d.finish()
			}
			return

		case phaseDirection:
			if dr, ok := d.searcher.(search.DirectionReporter); ok {
				for _, dir := range dr.MeasuredDirections() {
					d.db.RecordSearchedDirection(d.base, dir)
				}
			}
			best := d.searcher.BestMeasured()
			if best == nil || best.Equal(d.base) {
				if !d.noImprovement() {
					return
				}
				continue
			}
			line, err := space.LineThrough(d.db.SpaceSize(), d.base, best)
			if err != nil {
				d.log.Error("line search", "error", err, "base", d.base.Key(), "target", best.Key())
				d.finish()
				return
			}
			d.line = line
			d.use(search.NewLineSingleTriSearcher(d.db, line, d.opts.LowerIsBetter))
			d.setPhase(phasePrepare)

		case phasePrepare:
			d.use(search.NewOneDimDspSearcher(d.db, d.line, nil, d.opts.LowerIsBetter, d.opts.Alpha))
			d.setPhase(phaseCurve)

		case phaseCurve:
			judged := d.searcher.BestJudged()
			if judged == nil || judged.Equal(d.base) {
				if !d.noImprovement() {
					return
				}
				continue
			}
			dir := d.line.Direction()
			d.setBasePoint(judged)
			d.db.RecordSearchedDirection(d.base, dir)
			d.log.Info("base point moved", "base", d.base.Key(), "value", d.db.Value(d.base), "loop", d.loop)
			if !d.startDirection() {
				d.finish()
			}
			return
		}
	}
}
