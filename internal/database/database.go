// Package database records measured samples, base points and the directions
// already exhausted from each base point. Entries are never removed.
package database

import (
	"math"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
)

// Reader is the read-only sample view handed to searchers.
type Reader interface {
	SpaceSize() space.Size
	Dimension() int
	HasSample(c space.Coordinate) bool
	// Value returns NaN when c was never measured.
	Value(c space.Coordinate) float64
	SampleCount() int
}

// DirectionReader answers whether a direction was exhausted from a base.
type DirectionReader interface {
	IsSearchedDirection(base space.Coordinate, dir space.Direction) bool
}

// View is what searchers are allowed to see.
type View interface {
	Reader
	DirectionReader
}

// Store is the mutable database owned by an operator.
type Store interface {
	View
	SetSample(c space.Coordinate, v float64)
	// SetBasePoint records c as the current base and reports whether it
	// differs from the previous one.
	SetBasePoint(c space.Coordinate) bool
	RecordSearchedDirection(base space.Coordinate, dir space.Direction)
	SetLoopEnd()
	LatestBase() space.Coordinate
	HasBaseChanged() bool
	LatestSamples() []Sample
	Entries() []Entry
	IsBasePoint(c space.Coordinate) bool
}

// Recorder is implemented by stores that keep a replayable history.
type Recorder interface {
	UpdateCandidateList(candidates []space.Coordinate)
	SetSampleTimed(c space.Coordinate, v float64, start, end time.Time)
	Log() []BaseLog
	BaseCoordinateLog() []space.Coordinate
	SuggestedLog() [][]space.Coordinate
	MeasuredLog() []Sample
}

// Entry is the combined state of one measured point.
type Entry struct {
	Coordinate space.Coordinate
	Value      float64
	Count      int
}

type samples struct {
	size       space.Size
	metricType MetricType
	values     map[string]Metric
	coords     map[string]space.Coordinate
	bases      map[string]space.DirectionSet
	latest     []Sample
	changed    bool
}

func newSamples(size space.Size, t MetricType) samples {
	return samples{
		size:       append(space.Size(nil), size...),
		metricType: t,
		values:     make(map[string]Metric),
		coords:     make(map[string]space.Coordinate),
		bases:      make(map[string]space.DirectionSet),
	}
}

func (s *samples) SpaceSize() space.Size { return s.size }
func (s *samples) Dimension() int        { return len(s.size) }
func (s *samples) SampleCount() int      { return len(s.values) }

func (s *samples) HasSample(c space.Coordinate) bool {
	_, ok := s.values[c.Key()]
	return ok
}

func (s *samples) Value(c space.Coordinate) float64 {
	if m, ok := s.values[c.Key()]; ok {
		return m.Value()
	}
	return math.NaN()
}

func (s *samples) set(c space.Coordinate, v float64, at time.Time) {
	s.latest = append(s.latest, Sample{Coordinate: c, Value: v, Start: at, End: at})
	key := c.Key()
	if m, ok := s.values[key]; ok {
		m.Set(v)
		return
	}
	s.values[key] = NewMetric(s.metricType, v)
	s.coords[key] = c.Clone()
}

func (s *samples) ensureBase(c space.Coordinate) space.DirectionSet {
	key := c.Key()
	set, ok := s.bases[key]
	if !ok {
		set = space.DirectionSet{}
		s.bases[key] = set
	}
	return set
}

func (s *samples) IsBasePoint(c space.Coordinate) bool {
	_, ok := s.bases[c.Key()]
	return ok
}

func (s *samples) RecordSearchedDirection(base space.Coordinate, dir space.Direction) {
	s.ensureBase(base).Add(dir)
}

func (s *samples) IsSearchedDirection(base space.Coordinate, dir space.Direction) bool {
	set, ok := s.bases[base.Key()]
	return ok && set.Has(dir)
}

func (s *samples) SetLoopEnd() {
	s.latest = nil
}

func (s *samples) HasBaseChanged() bool { return s.changed }

// LatestSamples returns the measurements reported since the last loop end
func (s *samples) LatestSamples() []Sample {
	out := make([]Sample, len(s.latest))
	copy(out, s.latest)
	return out
}

// Entries returns every measured point in row-major coordinate order
func (s *samples) Entries() []Entry {
	out := make([]Entry, 0, len(s.values))
	for key, m := range s.values {
		out = append(out, Entry{Coordinate: s.coords[key], Value: m.Value(), Count: m.Count()})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Coordinate, out[j].Coordinate
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return out
}

var (
	_ Store    = (*Standard)(nil)
	_ Store    = (*Logging)(nil)
	_ Recorder = (*Logging)(nil)
)
