package search

import "github.com/GoSim-25-26J-441/tuning-core/internal/space"

// UniMeasurer wants exactly one point measured.
type UniMeasurer struct {
	target   []space.Coordinate
	measured space.Set
	pending  bool
}

func NewUniMeasurer(c space.Coordinate) *UniMeasurer {
	return &UniMeasurer{target: []space.Coordinate{c}, measured: space.Set{}}
}

func (u *UniMeasurer) Suggested() space.Coordinate       { return u.target[0] }
func (u *UniMeasurer) SuggestedList() []space.Coordinate { return u.target }
func (u *UniMeasurer) Targets() []space.Coordinate       { return u.target }
func (u *UniMeasurer) Measured() space.Set               { return u.measured }
func (u *UniMeasurer) BestJudged() space.Coordinate      { return u.target[0] }
func (u *UniMeasurer) BestMeasured() space.Coordinate    { return u.target[0] }

// SetMetricValue counts any report as a measurement of the target.
func (u *UniMeasurer) SetMetricValue(space.Coordinate, float64) {
	u.pending = true
}

func (u *UniMeasurer) UpdateState() bool {
	if !u.pending {
		return false
	}
	u.measured.Add(u.target[0])
	u.pending = false
	return true
}

func (u *UniMeasurer) Finished() bool {
	return u.measured.Has(u.target[0])
}
