package database

import (
	"time"

	"github.com/GoSim-25-26J-441/tuning-core/internal/space"
)

// Standard is the in-memory store without history.
type Standard struct {
	samples
	latestBase space.Coordinate
}

// NewStandard creates an empty store for the given space
func NewStandard(size space.Size, t MetricType) *Standard {
	return &Standard{samples: newSamples(size, t)}
}

func (d *Standard) SetSample(c space.Coordinate, v float64) {
	d.set(c, v, time.Now())
}

func (d *Standard) SetBasePoint(c space.Coordinate) bool {
	if d.latestBase != nil && d.latestBase.Equal(c) {
		d.changed = false
		return false
	}
	d.changed = true
	d.latestBase = c.Clone()
	d.ensureBase(c)
	return true
}

func (d *Standard) LatestBase() space.Coordinate {
	return d.latestBase
}
