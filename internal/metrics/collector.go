// Package metrics keeps the per-session measurement trace and exposes the
// daemon's Prometheus instruments.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

// Collector collects the time series of one tuning session
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time

	// metric name -> label key -> points
	timeSeries map[string]map[string][]*models.MetricPoint

	// cached aggregations, dropped on every Record
	aggregations map[string]map[string]*models.Aggregation
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		startTime:    time.Now(),
		timeSeries:   make(map[string]map[string][]*models.MetricPoint),
		aggregations: make(map[string]map[string]*models.Aggregation),
	}
}

// Start marks the start of metric collection
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Stop marks the end of metric collection
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// Record records a metric value at a specific timestamp
func (c *Collector) Record(name string, value float64, timestamp time.Time, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if c.timeSeries[name] == nil {
		c.timeSeries[name] = make(map[string][]*models.MetricPoint)
	}
	c.timeSeries[name][key] = append(c.timeSeries[name][key], &models.MetricPoint{
		Timestamp: timestamp,
		Name:      name,
		Value:     value,
		Labels:    copyLabels(labels),
	})
	delete(c.aggregations[name], key)
}

// RecordNow records a metric value at the current time
func (c *Collector) RecordNow(name string, value float64, labels map[string]string) {
	c.Record(name, value, time.Now(), labels)
}

// GetTimeSeries returns a copy of the points recorded for a metric
func (c *Collector) GetTimeSeries(name string, labels map[string]string) []*models.MetricPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := c.getPointsUnsafe(name, labelKey(labels))
	if points == nil {
		return nil
	}
	result := make([]*models.MetricPoint, len(points))
	for i, p := range points {
		result[i] = &models.MetricPoint{
			Timestamp: p.Timestamp,
			Name:      p.Name,
			Value:     p.Value,
			Labels:    copyLabels(p.Labels),
		}
	}
	return result
}

// Last returns the most recent value of a metric
func (c *Collector) Last(name string, labels map[string]string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := c.getPointsUnsafe(name, labelKey(labels))
	if len(points) == 0 {
		return 0, false
	}
	return points[len(points)-1].Value, true
}

// GetAggregation calculates and returns aggregated statistics for a metric
func (c *Collector) GetAggregation(name string, labels map[string]string) *models.Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return calculateAggregation(c.getPointsUnsafe(name, labelKey(labels)))
}

// GetOrComputeAggregation gets the cached aggregation or computes it
func (c *Collector) GetOrComputeAggregation(name string, labels map[string]string) *models.Aggregation {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if agg, ok := c.aggregations[name][key]; ok {
		return agg
	}
	agg := calculateAggregation(c.getPointsUnsafe(name, key))
	if agg == nil {
		return nil
	}
	if c.aggregations[name] == nil {
		c.aggregations[name] = make(map[string]*models.Aggregation)
	}
	c.aggregations[name][key] = agg
	return agg
}

// GetSummary returns every recorded value per metric and an aggregation
// over all label combinations.
func (c *Collector) GetSummary() *models.MetricsSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	end := c.endTime
	if end.IsZero() {
		end = time.Now()
	}
	summary := &models.MetricsSummary{
		StartTime:    c.startTime,
		EndTime:      c.endTime,
		Duration:     end.Sub(c.startTime),
		Metrics:      make(map[string][]float64),
		Aggregations: make(map[string]*models.Aggregation),
	}

	for name, labelMap := range c.timeSeries {
		var all []*models.MetricPoint
		for _, points := range labelMap {
			all = append(all, points...)
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
		values := make([]float64, len(all))
		for i, p := range all {
			values[i] = p.Value
		}
		summary.Metrics[name] = values
		if agg := calculateAggregation(all); agg != nil {
			summary.Aggregations[name] = agg
		}
	}
	return summary
}

// GetMetricNames returns the collected metric names in sorted order
func (c *Collector) GetMetricNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.timeSeries))
	for name := range c.timeSeries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLabelsForMetric returns all label combinations for a metric
func (c *Collector) GetLabelsForMetric(name string) []map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.timeSeries[name] == nil {
		return nil
	}
	labelsList := make([]map[string]string, 0, len(c.timeSeries[name]))
	for _, points := range c.timeSeries[name] {
		if len(points) > 0 {
			labelsList = append(labelsList, copyLabels(points[0].Labels))
		}
	}
	return labelsList
}

// Clear clears all collected metrics
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timeSeries = make(map[string]map[string][]*models.MetricPoint)
	c.aggregations = make(map[string]map[string]*models.Aggregation)
	c.startTime = time.Now()
	c.endTime = time.Time{}
}

// getPointsUnsafe returns points without locking (caller must hold lock)
func (c *Collector) getPointsUnsafe(name, key string) []*models.MetricPoint {
	if c.timeSeries[name] == nil {
		return nil
	}
	return c.timeSeries[name][key]
}

func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// calculateAggregation computes count, sum, extrema, mean and empirical
// percentiles.
func calculateAggregation(points []*models.MetricPoint) *models.Aggregation {
	if len(points) == 0 {
		return nil
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return &models.Aggregation{
		Count: int64(len(values)),
		Sum:   sum,
		Min:   values[0],
		Max:   values[len(values)-1],
		Mean:  stat.Mean(values, nil),
		P50:   percentile(values, 0.50),
		P95:   percentile(values, 0.95),
		P99:   percentile(values, 0.99),
	}
}

// percentile returns the smallest value with at least a fraction p of the
// sorted samples at or below it.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}
