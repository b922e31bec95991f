package space

import "fmt"

// AroundPoints enumerates the neighbours of point obtained by moving ±1 on
// every non-empty subset of at most maxAxes axes, dropping moves that leave
// the space. Results are grouped by changed-axis count in ascending order;
// inside a group axis subsets come in ascending bitmask order (axis i is
// bit i) and sign patterns in ascending minus-mask order.
//
// The number of candidates is sum_{k<=maxAxes} C(n,k)*2^k, which is 3^n-1 for
// maxAxes == n. Callers should bound maxAxes on wide spaces or use
// WalkAroundPoints to stop early.
//
// The second result holds the changed-axis count of each neighbour.
func AroundPoints(size Size, point Coordinate, maxAxes int) ([]Coordinate, []int, error) {
	var points []Coordinate
	var changed []int
	err := WalkAroundPoints(size, point, maxAxes, func(c Coordinate, k int) bool {
		points = append(points, c)
		changed = append(changed, k)
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	return points, changed, nil
}

// WalkAroundPoints streams the AroundPoints sequence to fn, stopping as soon
// as fn returns false.
func WalkAroundPoints(size Size, point Coordinate, maxAxes int, fn func(c Coordinate, changedAxes int) bool) error {
	n := len(size)
	if len(point) != n {
		return fmt.Errorf("%w: point has %d axes, space has %d", ErrDimensionMismatch, len(point), n)
	}
	if maxAxes > n {
		return fmt.Errorf("%w: %d requested, space has %d axes", ErrTooManyAxes, maxAxes, n)
	}
	for k := 1; k <= maxAxes; k++ {
		axes := make([]int, k)
		for i := range axes {
			axes[i] = i
		}
		for {
			for minus := 0; minus < 1<<k; minus++ {
				c, ok := move(size, point, axes, minus)
				if !ok {
					continue
				}
				if !fn(c, k) {
					return nil
				}
			}
			if !nextCombination(axes, n) {
				break
			}
		}
	}
	return nil
}

// nextCombination advances a k-subset of [0,n) to its successor in
// ascending bitmask (colex) order.
func nextCombination(axes []int, n int) bool {
	k := len(axes)
	for i := 0; i < k; i++ {
		limit := n
		if i+1 < k {
			limit = axes[i+1]
		}
		if axes[i]+1 < limit {
			axes[i]++
			for j := 0; j < i; j++ {
				axes[j] = j
			}
			return true
		}
	}
	return false
}

func move(size Size, point Coordinate, axes []int, minus int) (Coordinate, bool) {
	c := point.Clone()
	for bit, axis := range axes {
		if minus&(1<<bit) != 0 {
			if point[axis] == 0 {
				return nil, false
			}
			c[axis]--
		} else {
			if point[axis]+1 >= size[axis] {
				return nil, false
			}
			c[axis]++
		}
	}
	return c, true
}
