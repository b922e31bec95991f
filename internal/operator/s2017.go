package operator

import "github.com/GoSim-25-26J-441/tuning-core/internal/space"

// NewS2017 creates the operator that searches neighbours over every axis
// from the start and stops as soon as a round leaves the base in place.
func NewS2017(size space.Size, opts Options) (*Directional, error) {
	return newDirectional(Algorithm2017, size, opts, false)
}
