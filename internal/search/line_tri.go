package search

import (
	"errors"

	"github.com/GoSim-25-26J-441/tuning-core/internal/database"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
)

// ErrSamePoint is returned when a line is requested through one point twice.
var ErrSamePoint = errors.New("two coordinates must differ")

// LineIterativeTriSearcher offers the points of a line in ternary bisection
// order. Once every suggested point is measured the round restarts over the
// whole line; it never stops on its own.
type LineIterativeTriSearcher struct {
	line *space.Line
	candidates
}

func NewLineIterativeTriSearcher(db database.Reader, line *space.Line, lowerIsBetter bool) *LineIterativeTriSearcher {
	points := line.Points()
	order := make([]space.Coordinate, 0, len(points))
	for _, i := range space.TriIndexes(0, len(points)-1) {
		order = append(order, points[i])
	}
	s := &LineIterativeTriSearcher{line: line, candidates: newCandidates(order, lowerIsBetter)}
	s.restart = points
	s.judged.coord = points[0]
	s.seed(db, nil)
	return s
}

// NewLineIterativeTriSearcherBetween searches the line through c1 and c2
func NewLineIterativeTriSearcherBetween(db database.Reader, c1, c2 space.Coordinate, lowerIsBetter bool) (*LineIterativeTriSearcher, error) {
	if c1.Equal(c2) {
		return nil, ErrSamePoint
	}
	line, err := space.LineThrough(db.SpaceSize(), c1, c2)
	if err != nil {
		return nil, err
	}
	return NewLineIterativeTriSearcher(db, line, lowerIsBetter), nil
}

func (s *LineIterativeTriSearcher) Line() *space.Line { return s.line }

// Targets returns the line in line order
func (s *LineIterativeTriSearcher) Targets() []space.Coordinate { return s.line.Points() }

func (s *LineIterativeTriSearcher) Suggested() space.Coordinate {
	if len(s.suggested) == 0 {
		return s.judged.coord
	}
	return s.suggested[0]
}

// LineSingleTriSearcher is a gate in front of curve fitting: it is finished
// once both ends of the line and its top level split pair are measured.
type LineSingleTriSearcher struct {
	*LineIterativeTriSearcher
	gate    []space.Coordinate
	pending []space.Coordinate
}

func NewLineSingleTriSearcher(db database.Reader, line *space.Line, lowerIsBetter bool) *LineSingleTriSearcher {
	s := &LineSingleTriSearcher{LineIterativeTriSearcher: NewLineIterativeTriSearcher(db, line, lowerIsBetter)}
	last := line.Len() - 1
	mid1, mid2 := space.TriPoints(0, last)
	seen := space.Set{}
	for _, i := range []int{0, last, mid1, mid2} {
		c := line.At(i)
		if seen.Has(c) || db.HasSample(c) {
			continue
		}
		seen.Add(c)
		s.gate = append(s.gate, c)
	}
	return s
}

// NewLineSingleTriSearcherAlong builds the gate for the line through point
// along dir.
func NewLineSingleTriSearcherAlong(db database.Reader, point space.Coordinate, dir space.Direction, lowerIsBetter bool) (*LineSingleTriSearcher, error) {
	line, err := space.NewLine(db.SpaceSize(), point, dir)
	if err != nil {
		return nil, err
	}
	return NewLineSingleTriSearcher(db, line, lowerIsBetter), nil
}

func (s *LineSingleTriSearcher) SetMetricValue(c space.Coordinate, v float64) {
	s.LineIterativeTriSearcher.SetMetricValue(c, v)
	s.pending = append(s.pending, c)
}

func (s *LineSingleTriSearcher) UpdateState() bool {
	if len(s.pending) == 0 {
		return false
	}
	for _, c := range s.pending {
		s.gate = space.Remove(s.gate, c)
	}
	s.pending = nil
	s.LineIterativeTriSearcher.UpdateState()
	return true
}

func (s *LineSingleTriSearcher) Finished() bool {
	return len(s.gate) == 0
}
