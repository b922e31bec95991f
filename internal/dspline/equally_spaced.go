package dspline

// DefaultInterpolated is the number of hidden markers between two samples.
const DefaultInterpolated = 2

// DefaultAlpha is the smoothing weight used by the line searchers.
const DefaultAlpha = 0.1

// Spline is a curve over equally spaced samples backed by a marker grid.
type Spline interface {
	Update(sample int, value float64)
	UpdateBatch(points []Point)
	MarkerValues() []float64
	SampleValues() []float64
	MarkerToSample(marker int) int
	SampleToMarker(sample int) int
	Markers() int
	Samples() int
}

// EquallySpaced places samples on a marker grid with a fixed number of
// interpolated markers between neighbours and two guard markers at each end.
type EquallySpaced struct {
	samples      int
	interpolated int
	core         *Core
	nearest      []int
}

// NewEquallySpaced builds a spline over samples points
func NewEquallySpaced(samples int, alpha float64, interpolated int) *EquallySpaced {
	if samples < 1 {
		samples = 1
	}
	if interpolated < 0 {
		interpolated = 0
	}
	markers := samples + 4 + interpolated*(samples-1)
	s := &EquallySpaced{
		samples:      samples,
		interpolated: interpolated,
		core:         NewCore(markers, alpha),
	}
	s.buildNearest()
	return s
}

func (s *EquallySpaced) buildNearest() {
	s.nearest = make([]int, 0, s.core.Len())
	s.nearest = append(s.nearest, 0, 0, 0)
	half := s.interpolated / 2
	for i := 0; i < s.samples-1; i++ {
		for j := 0; j < half; j++ {
			s.nearest = append(s.nearest, i)
		}
		for j := half; j < s.interpolated; j++ {
			s.nearest = append(s.nearest, i+1)
		}
		s.nearest = append(s.nearest, i+1)
	}
	s.nearest = append(s.nearest, s.samples-1, s.samples-1)
}

func (s *EquallySpaced) Update(sample int, value float64) {
	s.core.Update(s.SampleToMarker(sample), value)
}

func (s *EquallySpaced) UpdateBatch(points []Point) {
	markers := make([]Point, len(points))
	for i, p := range points {
		markers[i] = Point{Index: s.SampleToMarker(p.Index), Value: p.Value}
	}
	s.core.UpdateBatch(markers)
}

func (s *EquallySpaced) MarkerValues() []float64 {
	return s.core.Values()
}

func (s *EquallySpaced) SampleValues() []float64 {
	out := make([]float64, s.samples)
	for i := range out {
		out[i] = s.core.Value(s.SampleToMarker(i))
	}
	return out
}

// SampleValue returns the fitted value at sample i
func (s *EquallySpaced) SampleValue(i int) float64 {
	return s.core.Value(s.SampleToMarker(i))
}

// MarkerToSample maps a marker to the nearest sample
func (s *EquallySpaced) MarkerToSample(marker int) int {
	return s.nearest[marker]
}

// SampleToMarker maps a sample to its marker
func (s *EquallySpaced) SampleToMarker(sample int) int {
	return 2 + sample*(s.interpolated+1)
}

func (s *EquallySpaced) Markers() int {
	return s.core.Len()
}

func (s *EquallySpaced) Samples() int {
	return s.samples
}
