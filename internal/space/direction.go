package space

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/tuning-core/pkg/utils"
)

// Direction is a canonical integer step through the grid: reduced by the
// gcd of its components and signed so that the first non-zero component is
// positive. Two directions are equal iff their canonical vectors match.
type Direction struct {
	vec       []int
	dimension int
}

// NewDirection canonicalises a raw step vector
func NewDirection(vec []int) Direction {
	g := 0
	sign := 0
	for _, v := range vec {
		if v == 0 {
			continue
		}
		if sign == 0 {
			sign = 1
			if v < 0 {
				sign = -1
			}
		}
		g = utils.GCD(g, v)
	}
	d := Direction{vec: make([]int, len(vec))}
	if g == 0 {
		return d
	}
	for i, v := range vec {
		d.vec[i] = v / (g * sign)
		if v != 0 {
			d.dimension++
		}
	}
	return d
}

// DirectionBetween returns the canonical direction of c2 - c1.
// Equal coordinates give the zero-dimension direction.
func DirectionBetween(c1, c2 Coordinate) (Direction, error) {
	if len(c1) != len(c2) {
		return Direction{}, fmt.Errorf("%w: %d and %d axes", ErrDimensionMismatch, len(c1), len(c2))
	}
	diff := make([]int, len(c1))
	for i := range c1 {
		diff[i] = c2[i] - c1[i]
	}
	return NewDirection(diff), nil
}

// MustDirectionBetween is DirectionBetween for coordinates of one space
func MustDirectionBetween(c1, c2 Coordinate) Direction {
	d, err := DirectionBetween(c1, c2)
	if err != nil {
		panic(err)
	}
	return d
}

// Vector returns a copy of the canonical step
func (d Direction) Vector() []int {
	out := make([]int, len(d.vec))
	copy(out, d.vec)
	return out
}

// Reverse returns a copy of the negated step
func (d Direction) Reverse() []int {
	out := make([]int, len(d.vec))
	for i, v := range d.vec {
		out[i] = -v
	}
	return out
}

// Dimension is the number of axes the direction moves along
func (d Direction) Dimension() int {
	return d.dimension
}

// HasDimension reports whether the direction moves at all
func (d Direction) HasDimension() bool {
	return d.dimension != 0
}

// Equal compares canonical forms
func (d Direction) Equal(other Direction) bool {
	if len(d.vec) != len(other.vec) {
		return false
	}
	for i := range d.vec {
		if d.vec[i] != other.vec[i] {
			return false
		}
	}
	return true
}

// Key returns a canonical string usable as a map key
func (d Direction) Key() string {
	var b strings.Builder
	for i, v := range d.vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func (d Direction) String() string {
	return "<" + d.Key() + ">"
}

// DirectionSet is an unordered collection of directions
type DirectionSet map[string]Direction

// Add inserts d
func (s DirectionSet) Add(d Direction) {
	s[d.Key()] = d
}

// Has reports whether d is in the set
func (s DirectionSet) Has(d Direction) bool {
	_, ok := s[d.Key()]
	return ok
}

// List returns the members in no particular order
func (s DirectionSet) List() []Direction {
	out := make([]Direction, 0, len(s))
	for _, d := range s {
		out = append(out, d)
	}
	return out
}
