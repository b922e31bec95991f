package database

import (
	"fmt"
	"strings"
)

// MetricType selects how repeated measurements of one point are combined.
type MetricType int

const (
	// Overwrite keeps the last reported value.
	Overwrite MetricType = iota
	// Average keeps the running mean of every reported value.
	Average
)

func (t MetricType) String() string {
	switch t {
	case Overwrite:
		return "overwrite"
	case Average:
		return "average"
	default:
		return fmt.Sprintf("MetricType(%d)", int(t))
	}
}

// ParseMetricType accepts "overwrite" or "average" (case insensitive)
func ParseMetricType(s string) (MetricType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overwrite", "overwritten":
		return Overwrite, nil
	case "average", "avg", "mean":
		return Average, nil
	}
	return 0, fmt.Errorf("unknown metric type %q", s)
}

// Metric is the combined value of one sample point.
type Metric interface {
	Set(v float64)
	Value() float64
	Count() int
}

type overwritten struct {
	value float64
	count int
}

func (m *overwritten) Set(v float64) {
	m.value = v
	m.count++
}

func (m *overwritten) Value() float64 { return m.value }
func (m *overwritten) Count() int     { return m.count }

type averaged struct {
	value float64
	count int
}

func (m *averaged) Set(v float64) {
	m.count++
	m.value += (v - m.value) / float64(m.count)
}

func (m *averaged) Value() float64 { return m.value }
func (m *averaged) Count() int     { return m.count }

// NewMetric creates a metric holding its first value
func NewMetric(t MetricType, first float64) Metric {
	if t == Average {
		return &averaged{value: first, count: 1}
	}
	return &overwritten{value: first, count: 1}
}
