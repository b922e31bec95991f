// Package search holds the search strategies an operator drives: each one
// proposes coordinates to measure, absorbs the measured values and reports
// the best point it knows about.
package search

import (
	"github.com/GoSim-25-26J-441/tuning-core/internal/dspline"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

// Searcher is the contract shared by every strategy.
//
// SetMetricValue only buffers; UpdateState applies the buffer and returns
// false when there was nothing to apply. Lists returned by the searcher are
// owned by it and must not be modified.
type Searcher interface {
	// Suggested returns the head of SuggestedList, or the best judged point
	// once there is nothing left to suggest.
	Suggested() space.Coordinate
	SuggestedList() []space.Coordinate
	SetMetricValue(c space.Coordinate, v float64)
	UpdateState() bool
	Finished() bool
	Targets() []space.Coordinate
	Measured() space.Set
	// BestJudged is the best point including data that existed before the
	// searcher was created.
	BestJudged() space.Coordinate
	// BestMeasured is the best point among the searcher's own measurements,
	// nil when it has none.
	BestMeasured() space.Coordinate
}

// DirectionReporter is implemented by searchers that know which directions
// from their base point they have covered.
type DirectionReporter interface {
	MeasuredDirections() []space.Direction
}

// DirectionFinisher is implemented by searchers that exhaust directions
// from a base point while they run.
type DirectionFinisher interface {
	FinishedDirections() []space.Direction
}

// LineSearcher is implemented by searchers confined to one line.
type LineSearcher interface {
	Line() *space.Line
}

// CurveReporter exposes the fitted curve of a d-Spline searcher.
type CurveReporter interface {
	Curve() *dspline.Observed
}

// Manager is implemented by composite searchers.
type Manager interface {
	ManagedCount() int
	RunningCount() int
	FinishedCount() int
}

type measurement struct {
	coord space.Coordinate
	value float64
}

type buffer []measurement

func (b *buffer) add(c space.Coordinate, v float64) {
	*b = append(*b, measurement{coord: c, value: v})
}

// best tracks the first strictly better value seen.
type best struct {
	coord         space.Coordinate
	value         float64
	lowerIsBetter bool
}

func newBest(lowerIsBetter bool) best {
	return best{value: utils.Worst(lowerIsBetter), lowerIsBetter: lowerIsBetter}
}

func (b *best) offer(c space.Coordinate, v float64) bool {
	if !utils.Better(v, b.value, b.lowerIsBetter) {
		return false
	}
	b.coord = c
	b.value = v
	return true
}

var (
	_ Searcher          = (*UniMeasurer)(nil)
	_ Searcher          = (*FullSearcher)(nil)
	_ Searcher          = (*AroundSearcher)(nil)
	_ Searcher          = (*SimpleDirectionSearcher)(nil)
	_ Searcher          = (*LineIterativeTriSearcher)(nil)
	_ Searcher          = (*LineSingleTriSearcher)(nil)
	_ Searcher          = (*OneDimDspSearcher)(nil)
	_ Searcher          = (*SimpleLhdSearcher)(nil)
	_ Searcher          = (*RadialDspSearcher)(nil)
	_ DirectionReporter = (*SimpleDirectionSearcher)(nil)
	_ LineSearcher      = (*LineSingleTriSearcher)(nil)
	_ LineSearcher      = (*OneDimDspSearcher)(nil)
	_ CurveReporter     = (*OneDimDspSearcher)(nil)
	_ Manager           = (*RadialDspSearcher)(nil)
	_ DirectionFinisher = (*RadialDspSearcher)(nil)
)
