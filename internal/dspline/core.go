// Package dspline implements the incremental d-Spline smoothing fit used to
// estimate a performance curve along a line of the tuning space.
//
// The fit minimises ||E f - y||^2 + alpha^2 ||D f||^2 where D is the second
// difference operator. The banded system is kept in upper triangular form and
// every new observation is folded in with Givens rotations, so an update costs
// O(markers) rather than a full refactorisation.
package dspline

import "math"

// Point is one observation: a marker (or sample) index and its value.
type Point struct {
	Index int
	Value float64
}

// Core is the banded incremental least squares solver.
type Core struct {
	n int
	z []float64 // three coefficients per row: diagonal, +1, +2
	b []float64
	f []float64
}

// NewCore creates a solver over n markers with smoothing weight alpha.
// A zero alpha is replaced by 1e-10 so the system stays regular.
func NewCore(n int, alpha float64) *Core {
	if alpha == 0 {
		alpha = 1e-10
	}
	c := &Core{
		n: n,
		z: make([]float64, 3*n),
		b: make([]float64, n),
		f: make([]float64, n),
	}
	for i := 0; i < n-2; i++ {
		c.z[3*i] = alpha
		c.z[3*i+1] = -2 * alpha
		c.z[3*i+2] = alpha
	}
	return c
}

// Len returns the number of markers
func (c *Core) Len() int {
	return c.n
}

// Update folds one observation and re-solves
func (c *Core) Update(index int, value float64) {
	c.fold(index, value)
	c.solve()
}

// UpdateBatch folds every observation before solving once
func (c *Core) UpdateBatch(points []Point) {
	for _, p := range points {
		c.fold(p.Index, p.Value)
	}
	c.solve()
}

// Values returns the fitted marker values. The slice is owned by the solver.
func (c *Core) Values() []float64 {
	return c.f
}

// Value returns the fitted value of marker i
func (c *Core) Value(i int) float64 {
	return c.f[i]
}

func (c *Core) rotate(col int, a1, a2, ab *float64) {
	z1, z2, z3 := c.z[3*col], c.z[3*col+1], c.z[3*col+2]
	r := math.Sqrt(z1*z1 + *a1**a1)
	cos := z1 / r
	sin := *a1 / r

	c.z[3*col] = cos*z1 + sin**a1
	c.z[3*col+1] = cos*z2 + sin**a2
	c.z[3*col+2] = cos * z3
	*a1 = -sin*z2 + cos**a2
	*a2 = -sin * z3

	tb := c.b[col]
	c.b[col] = cos*tb + sin**ab
	*ab = -sin*tb + cos**ab
}

func (c *Core) fold(index int, value float64) {
	a1, a2 := 1.0, 0.0
	for col := index; col < c.n; col++ {
		c.rotate(col, &a1, &a2, &value)
		if a1 == 0 {
			if a2 == 0 {
				break
			}
			a1, a2 = a2, 0
			col++
		}
	}
}

func (c *Core) solve() {
	copy(c.f, c.b)
	if c.n == 0 || c.z[3*(c.n-1)] == 0 {
		return
	}
	for i := c.n - 1; i >= 0; i-- {
		c.f[i] /= c.z[3*i]
		if i > 0 {
			c.f[i-1] -= c.z[3*(i-1)+1] * c.f[i]
		}
		if i > 1 {
			c.f[i-2] -= c.z[3*(i-2)+2] * c.f[i]
		}
	}
}
