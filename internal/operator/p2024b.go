package operator

import (
	"math"

	"github.com/GoSim-25-26J-441/tuning-core/internal/search"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

const (
	radialInitial = iota
	radialSearch
	radialDone
)

var radialPhases = []string{"Initial Search", "Radial d-Spline Search", "Finished"}

// P2024B runs a radial search over every axis around the base point and
// restarts it from the best point found until a whole radial round brings
// no strict improvement. Its suggestion lists are meant to be measured
// concurrently.
type P2024B struct {
	*machine
	baseValue float64
}

// NewP2024B creates the parallel radial operator
func NewP2024B(size space.Size, opts Options) (*P2024B, error) {
	m, err := newMachine(Algorithm2024B, size, opts, radialPhases)
	if err != nil {
		return nil, err
	}
	p := &P2024B{machine: m, baseValue: utils.Worst(opts.LowerIsBetter)}
	m.advance = p.advance

	switch opts.Init {
	case InitSearch:
		lhd := search.NewSimpleLhdSearcher(p.db, opts.LowerIsBetter, opts.Rand)
		p.setBasePoint(lhd.Suggested())
		p.use(lhd)
		p.setPhase(radialInitial)
		return p, nil
	case InitSpecified:
		p.setBasePoint(opts.Initial)
	default:
		p.setBasePoint(size.Center())
	}
	if err := p.startRadial(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *P2024B) BestJudged() space.Coordinate {
	p.UpdateState()
	return p.base
}

func (p *P2024B) BestMeasured() space.Coordinate {
	p.UpdateState()
	return p.base
}

func (p *P2024B) Snapshot() State {
	st := p.machine.Snapshot()
	st.AxisLevel = p.db.Dimension()
	return st
}

func (p *P2024B) startRadial() error {
	r, err := search.NewRadialDspSearcher(p.db, p.base, p.db.Dimension(), p.opts.LowerIsBetter, p.opts.Alpha)
	if err != nil {
		return err
	}
	p.use(r)
	p.setPhase(radialSearch)
	return nil
}

func (p *P2024B) recordFinished() {
	if r, ok := p.searcher.(search.DirectionFinisher); ok {
		for _, dir := range r.FinishedDirections() {
			p.db.RecordSearchedDirection(p.base, dir)
		}
	}
}

func (p *P2024B) advance() {
	switch p.phase {
	case radialInitial:
		if best := p.searcher.BestMeasured(); best != nil {
			p.setBasePoint(best)
			p.baseValue = p.db.Value(p.base)
		}
		if err := p.startRadial(); err != nil {
			p.log.Error("radial search", "error", err, "base", p.base.Key())
			p.finish()
			return
		}
		if p.searcher.Finished() {
			p.recordFinished()
			p.finish()
		}

	case radialSearch:
		p.recordFinished()
		good := p.searcher.BestMeasured()
		if good == nil {
			p.finish()
			return
		}
		value := p.db.Value(good)
		if math.IsNaN(value) || !utils.Better(value, p.baseValue, p.opts.LowerIsBetter) {
			p.finish()
			return
		}
		trajectory := space.MustDirectionBetween(p.base, good)
		p.setBasePoint(good)
		p.db.RecordSearchedDirection(p.base, trajectory)
		p.baseValue = value
		p.log.Info("base point moved", "base", p.base.Key(), "value", value, "loop", p.loop)
		if err := p.startRadial(); err != nil {
			p.log.Error("radial search", "error", err, "base", p.base.Key())
			p.finish()
			return
		}
		if p.searcher.Finished() {
			p.finish()
		}
	}
}
