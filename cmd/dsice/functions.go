package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/GoSim-25-26J-441/tuning-core/internal/tuner"
)

// benchFunc maps parameter values to a performance value
type benchFunc func(x []float64, offset float64) float64

var benchFuncs = map[string]benchFunc{
	"sphere":     sphere,
	"rosenbrock": rosenbrock,
	"parabola":   parabola,
}

// sphere has its minimum of 0 where every value equals offset
func sphere(x []float64, offset float64) float64 {
	sum := 0.0
	for _, v := range x {
		d := v - offset
		sum += d * d
	}
	return sum
}

// rosenbrock is the banana valley with its minimum of 0 at (1+offset, ...)
func rosenbrock(x []float64, offset float64) float64 {
	if len(x) == 1 {
		d := 1 - (x[0] - offset)
		return d * d
	}
	sum := 0.0
	for i := 0; i+1 < len(x); i++ {
		a, b := x[i]-offset, x[i+1]-offset
		sum += 100*(b-a*a)*(b-a*a) + (1-a)*(1-a)
	}
	return sum
}

// parabola is a hill with its maximum of 0 where every value equals offset
func parabola(x []float64, offset float64) float64 {
	return -sphere(x, offset)
}

func benchNames() string {
	names := make([]string, 0, len(benchFuncs))
	for name := range benchFuncs {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func lookupBench(name string, offset float64) (tuner.MeasureFunc, error) {
	f, ok := benchFuncs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown function %q (want one of %s)", name, benchNames())
	}
	return func(_ context.Context, x []float64) (float64, error) {
		return f(x, offset), nil
	}, nil
}
