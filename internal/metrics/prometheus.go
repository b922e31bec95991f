package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Instruments are the daemon's Prometheus metrics, registered on a
// registry owned by the set.
type Instruments struct {
	registry *prometheus.Registry

	sessionsCreated *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	sessionsEnded   *prometheus.CounterVec
	measurements    *prometheus.CounterVec
	measureSeconds  *prometheus.HistogramVec
	rounds          *prometheus.CounterVec
	requests        *prometheus.CounterVec
}

// NewInstruments creates and registers the tuning metrics
func NewInstruments() *Instruments {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Instruments{
		registry: reg,
		sessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsice_sessions_created_total",
			Help: "Tuning sessions created by algorithm",
		}, []string{"algorithm"}),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "dsice_sessions_active",
			Help: "Tuning sessions currently held in memory",
		}),
		sessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsice_sessions_ended_total",
			Help: "Tuning sessions ended by final status",
		}, []string{"status"}),
		measurements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsice_measurements_total",
			Help: "Measurements reported by algorithm",
		}, []string{"algorithm"}),
		measureSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsice_measure_duration_seconds",
			Help:    "Wall-clock span of reported measurements",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"algorithm"}),
		rounds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsice_rounds_total",
			Help: "Suggestion rounds completed by algorithm",
		}, []string{"algorithm"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsice_api_requests_total",
			Help: "API requests by transport, operation and result",
		}, []string{"transport", "operation", "result"}),
	}
}

func (i *Instruments) SessionCreated(algorithm string) {
	i.sessionsCreated.WithLabelValues(algorithm).Inc()
	i.sessionsActive.Inc()
}

// SessionEnded counts a session leaving memory with its final status
func (i *Instruments) SessionEnded(status string) {
	i.sessionsEnded.WithLabelValues(status).Inc()
	i.sessionsActive.Dec()
}

// Measured counts a reported measurement; a zero span is not observed
func (i *Instruments) Measured(algorithm string, span time.Duration) {
	i.measurements.WithLabelValues(algorithm).Inc()
	if span > 0 {
		i.measureSeconds.WithLabelValues(algorithm).Observe(span.Seconds())
	}
}

func (i *Instruments) RoundCompleted(algorithm string) {
	i.rounds.WithLabelValues(algorithm).Inc()
}

// Request counts one API call; result is "ok" or an error class
func (i *Instruments) Request(transport, operation, result string) {
	i.requests.WithLabelValues(transport, operation, result).Inc()
}

// Registry exposes the registry for tests and extra collectors
func (i *Instruments) Registry() *prometheus.Registry {
	return i.registry
}

// Handler serves the registry in the Prometheus text format
func (i *Instruments) Handler() http.Handler {
	return promhttp.HandlerFor(i.registry, promhttp.HandlerOpts{Registry: i.registry})
}
