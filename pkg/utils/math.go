package utils

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRange is returned for an empty or inverted value range
var ErrInvalidRange = errors.New("invalid range")

// Min returns the minimum of two integers
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max returns the maximum of two integers
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Abs returns the absolute value of an integer
func Abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// GCD returns the greatest common divisor of |a| and |b|.
// GCD(0, 0) is 0.
func GCD(a, b int) int {
	a, b = Abs(a), Abs(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Clamp clamps a value between min and max
func Clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Mean calculates the mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Better reports whether a is strictly better than b under the given
// optimisation direction. NaN is never better.
func Better(a, b float64, lowerIsBetter bool) bool {
	if math.IsNaN(a) {
		return false
	}
	if lowerIsBetter {
		return a < b
	}
	return a > b
}

// Worst returns the worst representable value for the optimisation direction
func Worst(lowerIsBetter bool) float64 {
	if lowerIsBetter {
		return math.MaxFloat64
	}
	return -math.MaxFloat64
}

// Round rounds a float64 to the specified number of decimal places
func Round(value float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(value*multiplier) / multiplier
}

// LinearSpace returns min, min+step, ... up to and including max.
// A zero step yields min alone.
func LinearSpace(min, max, step float64) ([]float64, error) {
	if max < min {
		return nil, fmt.Errorf("%w: max %v is below min %v", ErrInvalidRange, max, min)
	}
	if step < 0 {
		return nil, fmt.Errorf("%w: negative step %v", ErrInvalidRange, step)
	}
	if step == 0 {
		return []float64{min}, nil
	}
	tolerance := step * 1e-9
	var out []float64
	for i := 0; ; i++ {
		v := min + step*float64(i)
		if v > max+tolerance {
			break
		}
		out = append(out, v)
	}
	return out, nil
}
