package space

import "fmt"

// Line is the maximal run of in-bounds coordinates reachable from a point by
// unit steps along a direction, in both senses.
type Line struct {
	direction Direction
	points    []Coordinate
	index     map[string]int
}

// NewLine builds the line through point along dir.
// A zero-dimension direction gives the single point.
func NewLine(size Size, point Coordinate, dir Direction) (*Line, error) {
	if err := size.Check(point); err != nil {
		return nil, err
	}
	if len(dir.vec) != len(point) {
		return nil, fmt.Errorf("%w: direction has %d axes, point has %d", ErrDimensionMismatch, len(dir.vec), len(point))
	}
	l := &Line{direction: dir, index: make(map[string]int)}
	if !dir.HasDimension() {
		l.push(point.Clone())
		return l, nil
	}

	var backward []Coordinate
	for dist := 1; ; dist++ {
		c, ok := step(size, point, dir.vec, -dist)
		if !ok {
			break
		}
		backward = append(backward, c)
	}
	for i := len(backward) - 1; i >= 0; i-- {
		l.push(backward[i])
	}
	for dist := 0; ; dist++ {
		c, ok := step(size, point, dir.vec, dist)
		if !ok {
			break
		}
		l.push(c)
	}
	return l, nil
}

// LineThrough builds the line through c1 and c2, anchored at c1
func LineThrough(size Size, c1, c2 Coordinate) (*Line, error) {
	dir, err := DirectionBetween(c1, c2)
	if err != nil {
		return nil, err
	}
	return NewLine(size, c1, dir)
}

func step(size Size, from Coordinate, vec []int, dist int) (Coordinate, bool) {
	c := make(Coordinate, len(from))
	for i := range from {
		p := from[i] + vec[i]*dist
		if p < 0 || p >= size[i] {
			return nil, false
		}
		c[i] = p
	}
	return c, true
}

func (l *Line) push(c Coordinate) {
	l.index[c.Key()] = len(l.points)
	l.points = append(l.points, c)
}

// Direction returns the canonical direction of the line
func (l *Line) Direction() Direction {
	return l.direction
}

// Points returns the coordinates in line order
func (l *Line) Points() []Coordinate {
	return l.points
}

// Len returns the number of points
func (l *Line) Len() int {
	return len(l.points)
}

// At returns the i-th point
func (l *Line) At(i int) Coordinate {
	return l.points[i]
}

// Index returns the position of c on the line
func (l *Line) Index(c Coordinate) (int, bool) {
	i, ok := l.index[c.Key()]
	return i, ok
}

// Contains reports whether c lies on the line
func (l *Line) Contains(c Coordinate) bool {
	_, ok := l.index[c.Key()]
	return ok
}
