package search

import (
	"github.com/GoSim-25-26J-441/tuning-core/internal/database"
	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

type stage int

const (
	stageBase stage = iota
	stageTri
	stageCurve
)

type managed struct {
	searcher Searcher
	line     *space.Line
	stage    stage
	running  bool
}

type slot struct {
	axes, index int
}

// RadialDspSearcher explores every direction from a base point at once: one
// line gate per direction, promoted to a d-Spline line search once the gate
// is satisfied. Suggestions from all running lines are interleaved round
// robin, lines changing fewer axes first.
type RadialDspSearcher struct {
	db            database.View
	base          space.Coordinate
	lowerIsBetter bool
	alpha         float64

	groups   [][]*managed
	active   map[string]slot
	done     space.DirectionSet
	doneList []space.Direction

	targets   []space.Coordinate
	suggested []space.Coordinate
	measured  space.Set
	pending   buffer

	judged      space.Coordinate
	own         space.Coordinate
	value       float64
	foundBetter bool
}

// NewRadialDspSearcher sets up the line searchers for every direction from
// base that changes at most maxAxes axes and is not yet exhausted.
func NewRadialDspSearcher(db database.View, base space.Coordinate, maxAxes int, lowerIsBetter bool, alpha float64) (*RadialDspSearcher, error) {
	around, _, err := space.AroundPoints(db.SpaceSize(), base, maxAxes)
	if err != nil {
		return nil, err
	}
	r := &RadialDspSearcher{
		db:            db,
		base:          base,
		lowerIsBetter: lowerIsBetter,
		alpha:         alpha,
		groups:        make([][]*managed, maxAxes+1),
		active:        make(map[string]slot),
		done:          space.DirectionSet{},
		measured:      space.Set{},
		judged:        base,
	}

	if db.HasSample(base) {
		r.value = db.Value(base)
	} else {
		r.value = utils.Worst(lowerIsBetter)
		r.groups[0] = append(r.groups[0], &managed{searcher: NewUniMeasurer(base), stage: stageBase, running: true})
		r.targets = append(r.targets, base)
		r.active[space.MustDirectionBetween(base, base).Key()] = slot{0, 0}
	}

	for _, c := range around {
		dir := space.MustDirectionBetween(base, c)
		if db.IsSearchedDirection(base, dir) {
			continue
		}
		if _, ok := r.active[dir.Key()]; ok || r.done.Has(dir) {
			continue
		}
		line, err := space.NewLine(db.SpaceSize(), base, dir)
		if err != nil {
			return nil, err
		}
		m := &managed{line: line, running: true}
		if gate := NewLineSingleTriSearcher(db, line, lowerIsBetter); !gate.Finished() {
			m.searcher, m.stage = gate, stageTri
		} else if curve := NewOneDimDspSearcher(db, line, base, lowerIsBetter, alpha); !curve.Finished() {
			m.searcher, m.stage = curve, stageCurve
		} else {
			r.finish(dir)
			continue
		}
		axes := dir.Dimension()
		r.active[dir.Key()] = slot{axes, len(r.groups[axes])}
		r.groups[axes] = append(r.groups[axes], m)
		r.targets = append(r.targets, m.searcher.Targets()...)
	}
	r.updateSuggested()
	return r, nil
}

func (r *RadialDspSearcher) finish(dir space.Direction) {
	if r.done.Has(dir) {
		return
	}
	r.done.Add(dir)
	r.doneList = append(r.doneList, dir)
}

func (r *RadialDspSearcher) updateSuggested() {
	r.suggested = r.suggested[:0]
	for _, group := range r.groups {
		var lists [][]space.Coordinate
		longest := 0
		for _, m := range group {
			if !m.running {
				continue
			}
			l := m.searcher.SuggestedList()
			lists = append(lists, l)
			longest = max(longest, len(l))
		}
		for j := 0; j < longest; j++ {
			for _, l := range lists {
				if j < len(l) {
					r.suggested = append(r.suggested, l[j])
				}
			}
		}
	}
}

func (r *RadialDspSearcher) Suggested() space.Coordinate {
	if len(r.suggested) == 0 {
		return r.judged
	}
	return r.suggested[0]
}

func (r *RadialDspSearcher) SuggestedList() []space.Coordinate { return r.suggested }
func (r *RadialDspSearcher) Targets() []space.Coordinate       { return r.targets }
func (r *RadialDspSearcher) Measured() space.Set               { return r.measured }
func (r *RadialDspSearcher) BestJudged() space.Coordinate      { return r.judged }
func (r *RadialDspSearcher) BestMeasured() space.Coordinate    { return r.own }

// Base returns the centre of the search
func (r *RadialDspSearcher) Base() space.Coordinate { return r.base }

// FoundBetter reports whether a finished direction beat the base value
func (r *RadialDspSearcher) FoundBetter() bool { return r.foundBetter }

// FinishedDirections returns the exhausted directions in completion order
func (r *RadialDspSearcher) FinishedDirections() []space.Direction { return r.doneList }

func (r *RadialDspSearcher) ManagedCount() int  { return len(r.active) + len(r.done) }
func (r *RadialDspSearcher) RunningCount() int  { return len(r.active) }
func (r *RadialDspSearcher) FinishedCount() int { return len(r.done) }

func (r *RadialDspSearcher) Finished() bool { return len(r.active) == 0 }

func (r *RadialDspSearcher) SetMetricValue(c space.Coordinate, v float64) {
	r.pending.add(c, v)
}

// UpdateState routes each measurement to the line it lies on. A measurement
// of the base point is handed to every running searcher, since every line
// passes through it.
func (r *RadialDspSearcher) UpdateState() bool {
	if len(r.pending) == 0 {
		return false
	}
	for _, m := range r.pending {
		r.measured.Add(m.coord)
		if m.coord.Equal(r.base) {
			for _, group := range r.groups {
				for _, s := range group {
					if s.running {
						s.searcher.SetMetricValue(m.coord, m.value)
						s.searcher.UpdateState()
					}
				}
			}
			continue
		}
		dir, err := space.DirectionBetween(r.base, m.coord)
		if err != nil {
			continue
		}
		at, ok := r.active[dir.Key()]
		if !ok {
			continue
		}
		owner := r.groups[at.axes][at.index].searcher
		owner.SetMetricValue(m.coord, m.value)
		owner.UpdateState()
	}
	r.pending = nil

	// the base slot stays active until the base itself was reported
	if len(r.groups[0]) > 0 && r.groups[0][0].running {
		if s := r.groups[0][0].searcher; s.Finished() {
			// a direction may have completed before the base came in
			if v := r.db.Value(s.BestMeasured()); r.own == nil || !utils.Better(r.value, v, r.lowerIsBetter) {
				r.value = v
				r.own, r.judged, r.foundBetter = nil, r.base, false
			}
			r.groups[0][0].running = false
			delete(r.active, space.MustDirectionBetween(r.base, r.base).Key())
		}
	}

	var completed []Searcher
	for _, group := range r.groups[1:] {
		for _, m := range group {
			if !m.running || !m.searcher.Finished() {
				continue
			}
			dir := m.line.Direction()
			if m.stage == stageTri {
				curve := NewOneDimDspSearcher(r.db, m.line, r.base, r.lowerIsBetter, r.alpha)
				if !curve.Finished() {
					m.searcher, m.stage = curve, stageCurve
					continue
				}
				completed = append(completed, curve)
			} else {
				completed = append(completed, m.searcher)
			}
			m.running = false
			delete(r.active, dir.Key())
			r.finish(dir)
		}
	}

	for _, s := range completed {
		v := r.db.Value(s.BestMeasured())
		if utils.Better(v, r.value, r.lowerIsBetter) {
			r.own = s.BestMeasured()
			r.judged = s.BestJudged()
			r.value = v
			r.foundBetter = true
		}
	}
	r.updateSuggested()
	return true
}
