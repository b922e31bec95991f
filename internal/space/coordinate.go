// Package space holds the geometry of a discrete tuning space: coordinates,
// canonical directions, lines through the grid and neighbour enumeration.
package space

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrOutOfBounds       = errors.New("coordinate out of bounds")
	ErrTooManyAxes       = errors.New("too many changed axes")
	ErrEmptySpace        = errors.New("space needs one axis at least")
	ErrEmptyAxis         = errors.New("every axis needs one value at least")
)

// Coordinate is an index into each axis's value list.
// Coordinates are treated as immutable once created.
type Coordinate []int

// Key returns a canonical string usable as a map key
func (c Coordinate) Key() string {
	var b strings.Builder
	for i, v := range c {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func (c Coordinate) String() string {
	return "(" + c.Key() + ")"
}

// Equal reports whether both coordinates hold the same indexes
func (c Coordinate) Equal(other Coordinate) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy
func (c Coordinate) Clone() Coordinate {
	if c == nil {
		return nil
	}
	out := make(Coordinate, len(c))
	copy(out, c)
	return out
}

// ParseKey is the inverse of Key
func ParseKey(key string) (Coordinate, error) {
	if key == "" {
		return Coordinate{}, nil
	}
	parts := strings.Split(key, ",")
	out := make(Coordinate, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate key %q: %w", key, err)
		}
		out[i] = v
	}
	return out, nil
}

// Size gives, per axis, the number of values the axis may take.
type Size []int

// Dimension returns the number of axes
func (s Size) Dimension() int {
	return len(s)
}

// Validate checks that the space is usable for tuning
func (s Size) Validate() error {
	if len(s) == 0 {
		return ErrEmptySpace
	}
	for i, n := range s {
		if n < 1 {
			return fmt.Errorf("axis %d: %w", i, ErrEmptyAxis)
		}
	}
	return nil
}

// Contains reports whether c lies inside the space
func (s Size) Contains(c Coordinate) bool {
	if len(c) != len(s) {
		return false
	}
	for i, v := range c {
		if v < 0 || v >= s[i] {
			return false
		}
	}
	return true
}

// Check returns a descriptive error when c is not a point of the space
func (s Size) Check(c Coordinate) error {
	if len(c) != len(s) {
		return fmt.Errorf("%w: coordinate has %d axes, space has %d", ErrDimensionMismatch, len(c), len(s))
	}
	if !s.Contains(c) {
		return fmt.Errorf("%w: %s in %v", ErrOutOfBounds, c, []int(s))
	}
	return nil
}

// Center returns the point with every index at half of the axis length
func (s Size) Center() Coordinate {
	c := make(Coordinate, len(s))
	for i, n := range s {
		c[i] = n / 2
	}
	return c
}

// Total returns the number of points in the space
func (s Size) Total() int {
	if len(s) == 0 {
		return 0
	}
	total := 1
	for _, n := range s {
		total *= n
	}
	return total
}

// Walk visits every point of the space in row-major order
// (last axis fastest). Returning false from fn stops the walk.
func (s Size) Walk(fn func(Coordinate) bool) {
	if s.Total() == 0 {
		return
	}
	c := make(Coordinate, len(s))
	for {
		if !fn(c.Clone()) {
			return
		}
		axis := len(s) - 1
		for axis >= 0 {
			c[axis]++
			if c[axis] < s[axis] {
				break
			}
			c[axis] = 0
			axis--
		}
		if axis < 0 {
			return
		}
	}
}

// Set is an unordered collection of coordinates
type Set map[string]Coordinate

// Add inserts c
func (s Set) Add(c Coordinate) {
	s[c.Key()] = c
}

// Has reports whether c is in the set
func (s Set) Has(c Coordinate) bool {
	_, ok := s[c.Key()]
	return ok
}

// List returns the members in no particular order
func (s Set) List() []Coordinate {
	out := make([]Coordinate, 0, len(s))
	for _, c := range s {
		out = append(out, c)
	}
	return out
}

// IndexOf returns the position of c in list or -1
func IndexOf(list []Coordinate, c Coordinate) int {
	for i, v := range list {
		if v.Equal(c) {
			return i
		}
	}
	return -1
}

// Remove deletes the first occurrence of c from list
func Remove(list []Coordinate, c Coordinate) []Coordinate {
	if i := IndexOf(list, c); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	return list
}

// CloneList copies a coordinate list (the coordinates are shared)
func CloneList(list []Coordinate) []Coordinate {
	out := make([]Coordinate, len(list))
	copy(out, list)
	return out
}
