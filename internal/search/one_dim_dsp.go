package search

import (
	"sort"

	"github.com/GoSim-25-26J-441/tuning-core/internal/database"
	"github.com/GoSim-25-26J-441/tuning-core/internal/dspline"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
)

const (
	// stableEstimates is how many consecutive observations must agree on the
	// estimated optimum before the line is considered solved.
	stableEstimates = 3
	// maxLineMeasurements caps the measurements spent on one line.
	maxLineMeasurements = 30
)

// OneDimDspSearcher fits a d-Spline along a line and asks for the points
// the curve says are most informative.
type OneDimDspSearcher struct {
	line          *space.Line
	curve         *dspline.Observed
	lowerIsBetter bool
	suggested     []space.Coordinate
	measured      space.Set
	pending       buffer
	judged        space.Coordinate
	best          best
}

// NewOneDimDspSearcher seeds the curve with every sample already on the
// line. anchor is the initial best judged point; nil selects the first point
// of the line.
func NewOneDimDspSearcher(db database.Reader, line *space.Line, anchor space.Coordinate, lowerIsBetter bool, alpha float64) *OneDimDspSearcher {
	s := &OneDimDspSearcher{
		line:          line,
		curve:         dspline.NewObserved(dspline.NewEquallySpaced(line.Len(), alpha, dspline.DefaultInterpolated), dspline.MeasuredZone),
		lowerIsBetter: lowerIsBetter,
		measured:      space.Set{},
		judged:        anchor,
		best:          newBest(lowerIsBetter),
	}
	if s.judged == nil {
		s.judged = line.At(0)
	}

	var seed []dspline.Point
	for i, c := range line.Points() {
		if !db.HasSample(c) {
			continue
		}
		v := db.Value(c)
		s.measured.Add(c)
		seed = append(seed, dspline.Point{Index: i, Value: v})
		if s.best.offer(c, v) {
			s.judged = c
		}
	}
	s.curve.UpdateBatch(seed)
	if len(seed) == 0 {
		s.suggested = space.CloneList(line.Points())
	} else {
		s.rank()
	}
	return s
}

// NewOneDimDspSearcherAlong fits the line through point along dir, anchored
// at point.
func NewOneDimDspSearcherAlong(db database.Reader, point space.Coordinate, dir space.Direction, lowerIsBetter bool, alpha float64) (*OneDimDspSearcher, error) {
	line, err := space.NewLine(db.SpaceSize(), point, dir)
	if err != nil {
		return nil, err
	}
	return NewOneDimDspSearcher(db, line, point, lowerIsBetter, alpha), nil
}

// rank orders the unmeasured points: estimated better than anything measured
// first, then estimated worse than anything measured, then the measured range
// by descending curvature.
func (s *OneDimDspSearcher) rank() {
	s.suggested = s.suggested[:0]
	promising, confirming := s.curve.LowerZoneSamples(), s.curve.HigherZoneSamples()
	if !s.lowerIsBetter {
		promising, confirming = confirming, promising
	}
	s.appendUnmeasured(promising)
	s.appendUnmeasured(confirming)

	inside := append([]int(nil), s.curve.MeasuredZoneSamples()...)
	curvature := s.curve.SampleCurvatures()
	sort.Slice(inside, func(a, b int) bool {
		ca, cb := curvature[inside[a]], curvature[inside[b]]
		if ca != cb {
			return ca > cb
		}
		return inside[a] > inside[b]
	})
	s.appendUnmeasured(inside)
}

func (s *OneDimDspSearcher) appendUnmeasured(indexes []int) {
	for _, i := range indexes {
		c := s.line.At(i)
		if !s.measured.Has(c) {
			s.suggested = append(s.suggested, c)
		}
	}
}

func (s *OneDimDspSearcher) Suggested() space.Coordinate {
	if len(s.suggested) == 0 {
		return s.judged
	}
	return s.suggested[0]
}

func (s *OneDimDspSearcher) SuggestedList() []space.Coordinate { return s.suggested }
func (s *OneDimDspSearcher) Targets() []space.Coordinate       { return s.line.Points() }
func (s *OneDimDspSearcher) Measured() space.Set               { return s.measured }
func (s *OneDimDspSearcher) BestJudged() space.Coordinate      { return s.judged }
func (s *OneDimDspSearcher) BestMeasured() space.Coordinate    { return s.best.coord }
func (s *OneDimDspSearcher) Line() *space.Line                 { return s.line }
func (s *OneDimDspSearcher) Curve() *dspline.Observed          { return s.curve }

func (s *OneDimDspSearcher) SetMetricValue(c space.Coordinate, v float64) {
	s.pending.add(c, v)
}

// UpdateState folds the buffered measurements into the curve in one batch.
// Points off the line are ignored.
func (s *OneDimDspSearcher) UpdateState() bool {
	if len(s.pending) == 0 {
		return false
	}
	var delivered []dspline.Point
	for _, m := range s.pending {
		i, ok := s.line.Index(m.coord)
		if !ok {
			continue
		}
		s.measured.Add(m.coord)
		delivered = append(delivered, dspline.Point{Index: i, Value: m.value})
		if s.best.offer(m.coord, m.value) {
			s.judged = m.coord
		}
	}
	s.curve.UpdateBatch(delivered)
	s.rank()
	s.pending = nil
	return true
}

func (s *OneDimDspSearcher) Finished() bool {
	stable := s.curve.ConsecutiveLowestCount()
	if !s.lowerIsBetter {
		stable = s.curve.ConsecutiveHighestCount()
	}
	n := len(s.measured)
	return stable >= stableEstimates || n >= maxLineMeasurements || n >= s.line.Len()
}
