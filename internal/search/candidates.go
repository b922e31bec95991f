package search

import (
	"github.com/GoSim-25-26J-441/tuning-core/internal/database"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
)

// candidates is the shared state of searchers that walk a fixed target set.
type candidates struct {
	targets   []space.Coordinate
	restart   []space.Coordinate // next round after exhaustion, targets when nil
	suggested []space.Coordinate
	measured  space.Set
	pending   buffer
	judged    best
	own       best
	finished  bool

	// observe runs for every applied measurement
	observe func(c space.Coordinate)
}

func newCandidates(targets []space.Coordinate, lowerIsBetter bool) candidates {
	return candidates{
		targets:  targets,
		measured: space.Set{},
		judged:   newBest(lowerIsBetter),
		own:      newBest(lowerIsBetter),
	}
}

// seed splits the targets into already measured ones, which feed the best
// points, and the ones left to suggest.
func (s *candidates) seed(db database.Reader, skip func(c space.Coordinate) bool) {
	for _, c := range s.targets {
		if skip != nil && skip(c) {
			continue
		}
		if !db.HasSample(c) {
			s.suggested = append(s.suggested, c)
			continue
		}
		s.measured.Add(c)
		if s.observe != nil {
			s.observe(c)
		}
		v := db.Value(c)
		s.judged.offer(c, v)
		s.own.offer(c, v)
	}
	s.recycle()
}

func (s *candidates) recycle() {
	if len(s.suggested) == 0 {
		s.finished = true
		if s.restart != nil {
			s.suggested = space.CloneList(s.restart)
		} else {
			s.suggested = space.CloneList(s.targets)
		}
	}
}

func (s *candidates) Suggested() space.Coordinate {
	if s.finished || len(s.suggested) == 0 {
		return s.judged.coord
	}
	return s.suggested[0]
}

func (s *candidates) SuggestedList() []space.Coordinate { return s.suggested }
func (s *candidates) Targets() []space.Coordinate       { return s.targets }
func (s *candidates) Measured() space.Set               { return s.measured }
func (s *candidates) Finished() bool                    { return s.finished }
func (s *candidates) BestJudged() space.Coordinate      { return s.judged.coord }
func (s *candidates) BestMeasured() space.Coordinate    { return s.own.coord }

func (s *candidates) SetMetricValue(c space.Coordinate, v float64) {
	s.pending.add(c, v)
}

func (s *candidates) UpdateState() bool {
	if len(s.pending) == 0 {
		return false
	}
	for _, m := range s.pending {
		s.measured.Add(m.coord)
		if s.observe != nil {
			s.observe(m.coord)
		}
		s.judged.offer(m.coord, m.value)
		s.own.offer(m.coord, m.value)
		s.suggested = space.Remove(s.suggested, m.coord)
	}
	s.recycle()
	s.pending = nil
	return true
}

// FullSearcher measures every point of an explicit list.
type FullSearcher struct {
	candidates
}

// NewFullSearcher ignores existing samples; an empty list is finished at once.
func NewFullSearcher(targets []space.Coordinate, lowerIsBetter bool) *FullSearcher {
	s := &FullSearcher{candidates: newCandidates(space.CloneList(targets), lowerIsBetter)}
	s.suggested = space.CloneList(targets)
	if len(targets) == 0 {
		s.finished = true
	} else {
		s.judged.coord = targets[0]
	}
	return s
}

// AroundSearcher measures the neighbours of a point.
type AroundSearcher struct {
	candidates
}

func NewAroundSearcher(db database.Reader, point space.Coordinate, maxAxes int, lowerIsBetter bool) (*AroundSearcher, error) {
	around, _, err := space.AroundPoints(db.SpaceSize(), point, maxAxes)
	if err != nil {
		return nil, err
	}
	s := &AroundSearcher{candidates: newCandidates(around, lowerIsBetter)}
	s.judged.coord = point
	if db.HasSample(point) {
		s.judged.value = db.Value(point)
	}
	s.seed(db, nil)
	return s, nil
}

// SimpleDirectionSearcher is an AroundSearcher that skips directions already
// exhausted from its base and remembers every direction it has data for.
type SimpleDirectionSearcher struct {
	candidates
	base       space.Coordinate
	directions space.DirectionSet
	order      []space.Direction
}

func NewSimpleDirectionSearcher(db database.View, base space.Coordinate, maxAxes int, lowerIsBetter bool) (*SimpleDirectionSearcher, error) {
	around, _, err := space.AroundPoints(db.SpaceSize(), base, maxAxes)
	if err != nil {
		return nil, err
	}
	s := &SimpleDirectionSearcher{
		candidates: newCandidates(around, lowerIsBetter),
		base:       base,
		directions: space.DirectionSet{},
	}
	s.observe = s.addDirection
	s.judged.coord = base
	if db.HasSample(base) {
		s.judged.value = db.Value(base)
	}
	s.seed(db, func(c space.Coordinate) bool {
		return db.IsSearchedDirection(base, space.MustDirectionBetween(base, c))
	})
	return s, nil
}

func (s *SimpleDirectionSearcher) addDirection(c space.Coordinate) {
	d, err := space.DirectionBetween(s.base, c)
	if err != nil || !d.HasDimension() || s.directions.Has(d) {
		return
	}
	s.directions.Add(d)
	s.order = append(s.order, d)
}

// MeasuredDirections returns the directions with a measured neighbour, in
// the order they were first seen.
func (s *SimpleDirectionSearcher) MeasuredDirections() []space.Direction {
	return s.order
}

// Base returns the point the neighbourhood is centred on
func (s *SimpleDirectionSearcher) Base() space.Coordinate {
	return s.base
}
