package search

import (
	"github.com/GoSim-25-26J-441/tuning-core/internal/database"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

// SimpleLhdSearcher samples a diagonal design whose axes (all but the first)
// are shuffled, so that every value of every axis appears at least once.
type SimpleLhdSearcher struct {
	candidates
}

// NewSimpleLhdSearcher builds the design with rng; nil uses the package
// default source.
func NewSimpleLhdSearcher(db database.Reader, lowerIsBetter bool, rng *utils.RandSource) *SimpleLhdSearcher {
	if rng == nil {
		rng = utils.Default()
	}
	size := db.SpaceSize()
	longest := 0
	indexes := make([][]int, len(size))
	for i, n := range size {
		longest = utils.Max(longest, n)
		indexes[i] = make([]int, n)
		for j := range indexes[i] {
			indexes[i][j] = j
		}
	}
	for i := 1; i < len(size); i++ {
		for j := 0; j < size[i]; j++ {
			k := rng.Intn(size[i])
			indexes[i][j], indexes[i][k] = indexes[i][k], indexes[i][j]
		}
	}

	design := make([]space.Coordinate, 0, longest)
	for t := 0; t < longest; t++ {
		c := make(space.Coordinate, len(size))
		for axis := range size {
			c[axis] = indexes[axis][t%len(indexes[axis])]
		}
		design = append(design, c)
	}

	s := &SimpleLhdSearcher{candidates: newCandidates(design, lowerIsBetter)}
	for _, c := range design {
		if db.HasSample(c) {
			s.measured.Add(c)
			s.own.offer(c, db.Value(c))
		} else {
			s.suggested = append(s.suggested, c)
		}
	}
	return s
}

func (s *SimpleLhdSearcher) Suggested() space.Coordinate {
	if len(s.suggested) == 0 {
		return s.own.coord
	}
	return s.suggested[0]
}

func (s *SimpleLhdSearcher) UpdateState() bool {
	if len(s.pending) == 0 {
		return false
	}
	for _, m := range s.pending {
		s.measured.Add(m.coord)
		s.own.offer(m.coord, m.value)
		s.suggested = space.Remove(s.suggested, m.coord)
	}
	s.pending = nil
	return true
}

func (s *SimpleLhdSearcher) Finished() bool               { return len(s.suggested) == 0 }
func (s *SimpleLhdSearcher) BestJudged() space.Coordinate { return s.own.coord }
