package database

import (
	"time"

	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
)

// Sample is one reported measurement.
type Sample struct {
	Coordinate space.Coordinate
	Value      float64
	Start      time.Time
	End        time.Time
}

// Duration returns End - Start
func (s Sample) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// SuggestGroup is one round: the candidates handed out and what came back.
type SuggestGroup struct {
	Candidates []space.Coordinate
	Measured   []Sample
}

// BaseLog groups the rounds run from one base point.
type BaseLog struct {
	Base   space.Coordinate
	Groups []SuggestGroup
}

// Logging is a Standard store that also keeps the full round history.
// The first BaseLog is a placeholder with a nil base that collects rounds
// reported before any base point was set.
type Logging struct {
	samples
	log []BaseLog
}

// NewLogging creates an empty store with history
func NewLogging(size space.Size, t MetricType) *Logging {
	return &Logging{
		samples: newSamples(size, t),
		log:     []BaseLog{{}},
	}
}

func (d *Logging) current() *BaseLog {
	return &d.log[len(d.log)-1]
}

func (d *Logging) SetSample(c space.Coordinate, v float64) {
	now := time.Now()
	d.SetSampleTimed(c, v, now, now)
}

// SetSampleTimed records a measurement together with its wall-clock span
func (d *Logging) SetSampleTimed(c space.Coordinate, v float64, start, end time.Time) {
	cur := d.current()
	if len(cur.Groups) == 0 {
		cur.Groups = append(cur.Groups, SuggestGroup{Candidates: []space.Coordinate{}})
	}
	g := &cur.Groups[len(cur.Groups)-1]
	g.Measured = append(g.Measured, Sample{Coordinate: c.Clone(), Value: v, Start: start, End: end})
	d.set(c, v, start)
	d.latest[len(d.latest)-1].End = end
}

func (d *Logging) SetBasePoint(c space.Coordinate) bool {
	cur := d.current()
	if cur.Base != nil && cur.Base.Equal(c) {
		d.changed = false
		return false
	}
	d.log = append(d.log, BaseLog{Base: c.Clone()})
	d.changed = true
	d.ensureBase(c)
	return true
}

func (d *Logging) LatestBase() space.Coordinate {
	return d.current().Base
}

// UpdateCandidateList opens a new round with the given candidates
func (d *Logging) UpdateCandidateList(candidates []space.Coordinate) {
	cur := d.current()
	cur.Groups = append(cur.Groups, SuggestGroup{Candidates: space.CloneList(candidates)})
}

// Log returns the whole history, placeholder included
func (d *Logging) Log() []BaseLog {
	return d.log
}

// BaseCoordinateLog returns every base point in the order it was set
func (d *Logging) BaseCoordinateLog() []space.Coordinate {
	out := make([]space.Coordinate, 0, len(d.log)-1)
	for _, b := range d.log[1:] {
		out = append(out, b.Base)
	}
	return out
}

// SuggestedLog returns every round's candidate list in order
func (d *Logging) SuggestedLog() [][]space.Coordinate {
	var out [][]space.Coordinate
	for _, b := range d.log {
		for _, g := range b.Groups {
			out = append(out, g.Candidates)
		}
	}
	return out
}

// MeasuredLog returns every measurement in report order
func (d *Logging) MeasuredLog() []Sample {
	var out []Sample
	for _, b := range d.log {
		for _, g := range b.Groups {
			out = append(out, g.Measured...)
		}
	}
	return out
}
