package operator

import (
	"fmt"

	"github.com/GoSim-25-26J-441/tuning-core/internal/search"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
)

const (
	ippePrepare = iota
	ippeEstimate
	ippeDone
)

var ippePhases = []string{"Preparing", "Estimation", "Finished"}

// IPPE tunes a single parameter: a ternary gate over the whole axis, then a
// d-Spline line search over it.
type IPPE struct {
	*machine
	line *space.Line
}

// NewIPPE creates the single-parameter operator. The initial mode is
// ignored; the search always covers the whole axis.
func NewIPPE(size space.Size, opts Options) (*IPPE, error) {
	if len(size) > 1 {
		return nil, fmt.Errorf("%w: %w: got %d", ErrInvalidArgument, ErrTooManyParameters, len(size))
	}
	opts.Init = InitCenter
	m, err := newMachine(AlgorithmIPPE, size, opts, ippePhases)
	if err != nil {
		return nil, err
	}
	o := &IPPE{machine: m}
	m.advance = o.advance
	o.setBasePoint(space.Coordinate{0})

	if size[0] == 1 {
		o.finish()
		return o, nil
	}
	o.line, err = space.NewLine(size, o.base, space.NewDirection([]int{1}))
	if err != nil {
		return nil, err
	}
	o.use(search.NewLineSingleTriSearcher(o.db, o.line, opts.LowerIsBetter))
	o.setPhase(ippePrepare)
	return o, nil
}

func (o *IPPE) BestJudged() space.Coordinate {
	o.UpdateState()
	return o.pick(o.searcher.BestJudged())
}

func (o *IPPE) BestMeasured() space.Coordinate {
	o.UpdateState()
	return o.pick(o.searcher.BestMeasured())
}

// Line returns the axis as a line
func (o *IPPE) Line() *space.Line {
	return o.line
}

func (o *IPPE) advance() {
	switch o.phase {
	case ippePrepare:
		o.use(search.NewOneDimDspSearcher(o.db, o.line, nil, o.opts.LowerIsBetter, o.opts.Alpha))
		o.setPhase(ippeEstimate)
		if !o.searcher.Finished() {
			return
		}
		o.conclude()
	case ippeEstimate:
		o.conclude()
	}
}

func (o *IPPE) conclude() {
	if best := o.searcher.BestJudged(); best != nil {
		o.setBasePoint(best)
	}
	o.finish()
}
