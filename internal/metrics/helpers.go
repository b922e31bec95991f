package metrics

import (
	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

// Metric names of the session trace
const (
	MetricMeasuredValue   = "measured_value"
	MetricMeasureDuration = "measure_duration_ms"
	MetricBestValue       = "best_value"
	MetricRoundSize       = "round_size"
	MetricSampleCount     = "sample_count"
)

// SessionLabels creates a labels map for a session
func SessionLabels(sessionID string) map[string]string {
	return map[string]string{
		"session": sessionID,
	}
}

// RecordMeasurement records the value of one measurement and, when its
// span is known, how long it took.
func RecordMeasurement(collector *Collector, m models.Measurement, labels map[string]string) {
	at := m.End
	if at.IsZero() {
		at = m.Start
	}
	if at.IsZero() {
		collector.RecordNow(MetricMeasuredValue, m.Value, labels)
		return
	}
	collector.Record(MetricMeasuredValue, m.Value, at, labels)
	if !m.Start.IsZero() && !m.End.IsZero() {
		collector.Record(MetricMeasureDuration, float64(m.End.Sub(m.Start).Microseconds())/1000, at, labels)
	}
}

// RecordRound records one round of measurements together with the result
// the tuner reported after it.
func RecordRound(collector *Collector, measured []models.Measurement, res models.Result, labels map[string]string) {
	for _, m := range measured {
		RecordMeasurement(collector, m, labels)
	}
	collector.RecordNow(MetricRoundSize, float64(len(measured)), labels)
	collector.RecordNow(MetricSampleCount, float64(res.Measured), labels)
	if res.Value != nil {
		collector.RecordNow(MetricBestValue, *res.Value, labels)
	}
}

// Trace summarises a session trace for the API
type Trace struct {
	Measurements int64               `json:"measurements"`
	Rounds       int64               `json:"rounds"`
	Best         *float64            `json:"best,omitempty"`
	Value        *models.Aggregation `json:"value,omitempty"`
	DurationMs   *models.Aggregation `json:"duration_ms,omitempty"`
}

// ConvertToTrace aggregates the trace recorded under labels
func ConvertToTrace(collector *Collector, labels map[string]string) *Trace {
	tr := &Trace{
		Value:      collector.GetOrComputeAggregation(MetricMeasuredValue, labels),
		DurationMs: collector.GetOrComputeAggregation(MetricMeasureDuration, labels),
	}
	if tr.Value != nil {
		tr.Measurements = tr.Value.Count
	}
	if rounds := collector.GetAggregation(MetricRoundSize, labels); rounds != nil {
		tr.Rounds = rounds.Count
	}
	if best, ok := collector.Last(MetricBestValue, labels); ok {
		tr.Best = &best
	}
	return tr
}
