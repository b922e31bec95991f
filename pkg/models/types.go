package models

import (
	"sync"
	"time"
)

// SessionStatus represents the status of a tuning session
type SessionStatus string

const (
	SessionStatusRunning  SessionStatus = "running"
	SessionStatusFinished SessionStatus = "finished"
	SessionStatusClosed   SessionStatus = "closed"
	SessionStatusFailed   SessionStatus = "failed"
)

// Parameter is one tunable axis and the values it may take
type Parameter struct {
	Name   string    `json:"name" yaml:"name"`
	Values []float64 `json:"values" yaml:"values"`
}

// Suggestion is a point of the search space in both coordinate and value form
type Suggestion struct {
	Coordinate []int     `json:"coordinate" yaml:"coordinate"`
	Values     []float64 `json:"values" yaml:"values"`
}

// Measurement is a reported performance value for a suggestion
type Measurement struct {
	Coordinate []int     `json:"coordinate" yaml:"coordinate"`
	Values     []float64 `json:"values,omitempty" yaml:"values,omitempty"`
	Value      float64   `json:"value" yaml:"value"`
	Start      time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End        time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// Round is one batch of candidates handed out from a base point and the
// measurements reported against it
type Round struct {
	Loop       int           `json:"loop" yaml:"loop"`
	Base       []int         `json:"base" yaml:"base"`
	Candidates [][]int       `json:"candidates" yaml:"candidates"`
	Measured   []Measurement `json:"measured" yaml:"measured"`
}

// Result is the current answer of a tuning session
type Result struct {
	Algorithm string      `json:"algorithm" yaml:"algorithm"`
	Phase     string      `json:"phase" yaml:"phase"`
	Finished  bool        `json:"finished" yaml:"finished"`
	Loop      int         `json:"loop" yaml:"loop"`
	Measured  int         `json:"measured" yaml:"measured"`
	Total     int         `json:"total" yaml:"total"`
	Best      *Suggestion `json:"best,omitempty" yaml:"best,omitempty"`
	Value     *float64    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Session represents a tuning session held by the daemon
type Session struct {
	ID         string            `json:"id"`
	Status     SessionStatus     `json:"status"`
	Algorithm  string            `json:"algorithm"`
	Parameters []Parameter       `json:"parameters"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Result     *Result           `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// History is the round log of a session (thread-safe)
type History struct {
	SessionID string  `json:"session_id"`
	Rounds    []Round `json:"rounds"`
	mu        sync.RWMutex
}

// AddRound appends a round (thread-safe)
func (h *History) AddRound(r Round) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Rounds = append(h.Rounds, r)
}

// GetRounds returns a copy of the rounds (thread-safe)
func (h *History) GetRounds() []Round {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rounds := make([]Round, len(h.Rounds))
	copy(rounds, h.Rounds)
	return rounds
}

// MeasurementCount returns the number of measurements over all rounds (thread-safe)
func (h *History) MeasurementCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, r := range h.Rounds {
		n += len(r.Measured)
	}
	return n
}

// MetricPoint represents a single metric data point
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// MetricsSummary represents a summary of collected metrics
type MetricsSummary struct {
	StartTime    time.Time               `json:"start_time"`
	EndTime      time.Time               `json:"end_time"`
	Duration     time.Duration           `json:"duration"`
	Metrics      map[string][]float64    `json:"metrics"` // metric name -> values
	Aggregations map[string]*Aggregation `json:"aggregations,omitempty"`
}

// Aggregation represents aggregated statistics for a metric
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}
