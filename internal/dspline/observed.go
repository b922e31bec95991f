package dspline

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Mode selects how much bookkeeping Observed does after each update.
type Mode int

const (
	// Standard tracks curvature and the estimated optimum only.
	Standard Mode = iota
	// MeasuredZone also partitions markers and samples by the measured range.
	MeasuredZone
)

const noIndex = -1

// Observed wraps a Spline with the statistics the line searchers steer by:
// curvature, measured range, the consecutive stability of the estimated
// optimum and, in MeasuredZone mode, which points the curve places below,
// inside or above the measured range.
type Observed struct {
	Spline
	mode Mode

	curvatures       []float64
	sampleCurvatures []float64

	measuredMin float64
	measuredMax float64

	lowestIndex  int
	highestIndex int
	lowestCount  int
	highestCount int

	lowerMarkers    []int
	measuredMarkers []int
	higherMarkers   []int
	lowerSamples    []int
	measuredSamples []int
	higherSamples   []int
}

// NewObserved starts observing spline. Before any update every point is in
// both the lower and the higher zone.
func NewObserved(spline Spline, mode Mode) *Observed {
	o := &Observed{
		Spline:       spline,
		mode:         mode,
		measuredMin:  math.MaxFloat64,
		measuredMax:  -math.MaxFloat64,
		lowestIndex:  noIndex,
		highestIndex: noIndex,
	}
	for i := 0; i < spline.Markers(); i++ {
		o.lowerMarkers = append(o.lowerMarkers, i)
		o.higherMarkers = append(o.higherMarkers, i)
	}
	for i := 0; i < spline.Samples(); i++ {
		o.lowerSamples = append(o.lowerSamples, i)
		o.higherSamples = append(o.higherSamples, i)
	}
	return o
}

// Update folds one sample observation
func (o *Observed) Update(sample int, value float64) {
	o.Spline.Update(sample, value)
	o.refresh(1, value)
}

// UpdateBatch folds several sample observations. The stability counters
// advance by the number of observations delivered.
func (o *Observed) UpdateBatch(points []Point) {
	o.Spline.UpdateBatch(points)
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	o.refresh(len(points), values...)
}

func (o *Observed) refresh(used int, values ...float64) {
	o.updateCurvatures()
	o.checkBest(used)
	for _, v := range values {
		o.observe(v)
	}
	if o.mode == MeasuredZone {
		o.updateZones()
	}
}

func (o *Observed) observe(v float64) {
	if o.measuredMax < v {
		o.measuredMax = v
	}
	if o.measuredMin > v {
		o.measuredMin = v
	}
}

func (o *Observed) updateCurvatures() {
	values := o.MarkerValues()
	n := len(values)
	o.curvatures = make([]float64, n)
	for i := 1; i < n-1; i++ {
		o.curvatures[i] = math.Abs(values[i-1] - 2*values[i] + values[i+1])
	}
	o.sampleCurvatures = make([]float64, o.Samples())
	for i := range o.sampleCurvatures {
		o.sampleCurvatures[i] = o.curvatures[o.SampleToMarker(i)]
	}
}

func (o *Observed) checkBest(used int) {
	values := o.MarkerValues()
	lowest := o.MarkerToSample(floats.MinIdx(values))
	highest := o.MarkerToSample(floats.MaxIdx(values))

	if lowest == o.lowestIndex {
		o.lowestCount += used
	} else {
		o.lowestIndex = lowest
		o.lowestCount = 1
	}
	if highest == o.highestIndex {
		o.highestCount += used
	} else {
		o.highestIndex = highest
		o.highestCount = 1
	}
}

type ranked struct {
	value float64
	index int
}

func (o *Observed) partition(values []float64) (lower, measured, higher []int) {
	order := make([]ranked, len(values))
	for i, v := range values {
		order[i] = ranked{v, i}
	}
	sort.Slice(order, func(a, b int) bool {
		if order[a].value != order[b].value {
			return order[a].value < order[b].value
		}
		return order[a].index < order[b].index
	})
	i := 0
	for ; i < len(order) && order[i].value < o.measuredMin; i++ {
		lower = append(lower, order[i].index)
	}
	for ; i < len(order) && order[i].value <= o.measuredMax; i++ {
		measured = append(measured, order[i].index)
	}
	for j := len(order) - 1; j >= i; j-- {
		higher = append(higher, order[j].index)
	}
	return lower, measured, higher
}

func (o *Observed) updateZones() {
	o.lowerMarkers, o.measuredMarkers, o.higherMarkers = o.partition(o.MarkerValues())
	o.lowerSamples, o.measuredSamples, o.higherSamples = o.partition(o.SampleValues())
}

// Curvatures returns |f[i-1] - 2f[i] + f[i+1]| per marker (0 at the ends)
func (o *Observed) Curvatures() []float64 { return o.curvatures }

// SampleCurvatures returns the marker curvature at every sample
func (o *Observed) SampleCurvatures() []float64 { return o.sampleCurvatures }

// MeasuredMin returns the smallest raw value observed
func (o *Observed) MeasuredMin() float64 { return o.measuredMin }

// MeasuredMax returns the largest raw value observed
func (o *Observed) MeasuredMax() float64 { return o.measuredMax }

// LowestIndex returns the sample the curve currently places its minimum at,
// or -1 before the first update.
func (o *Observed) LowestIndex() int { return o.lowestIndex }

// HighestIndex is LowestIndex for the maximum
func (o *Observed) HighestIndex() int { return o.highestIndex }

// ConsecutiveLowestCount is how many observations in a row kept the minimum
func (o *Observed) ConsecutiveLowestCount() int { return o.lowestCount }

// ConsecutiveHighestCount is how many observations in a row kept the maximum
func (o *Observed) ConsecutiveHighestCount() int { return o.highestCount }

func (o *Observed) LowerZoneMarkers() []int    { return o.lowerMarkers }
func (o *Observed) MeasuredZoneMarkers() []int { return o.measuredMarkers }
func (o *Observed) HigherZoneMarkers() []int   { return o.higherMarkers }
func (o *Observed) LowerZoneSamples() []int    { return o.lowerSamples }
func (o *Observed) MeasuredZoneSamples() []int { return o.measuredSamples }
func (o *Observed) HigherZoneSamples() []int   { return o.higherSamples }
