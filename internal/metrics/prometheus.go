package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeSuccess     = "success"
	OutcomeInputError  = "input_error"
	OutcomeEnvError    = "environment_error"
	OutcomeScriptError = "script_error"
	OutcomeStoreError  = "storage_error"
)

// Metrics holds all Prometheus metrics for the optimizer
type Metrics struct {
	runs         *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	inputSize    prometheus.Histogram
	outputSize   prometheus.Histogram
	inFlight     prometheus.Gauge
}

// NewMetrics creates all optimizer metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	sizeBuckets := prometheus.ExponentialBuckets(64*1024, 4, 8) // 64 KiB .. 1 GiB
	return &Metrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optimizer_runs_total",
				Help: "Total number of optimization runs by outcome",
			},
			[]string{"outcome"},
		),
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optimizer_stage_latency_ms",
				Help:    "Latency of each optimization request stage in milliseconds",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 15000, 60000, 300000},
			},
			[]string{"stage"},
		),
		inputSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "optimizer_input_size_bytes",
				Help:    "Size of GLB files submitted for optimization",
				Buckets: sizeBuckets,
			},
		),
		outputSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "optimizer_output_size_bytes",
				Help:    "Size of optimized GLB files",
				Buckets: sizeBuckets,
			},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "optimizer_requests_in_flight",
				Help: "Number of optimization requests currently being handled",
			},
		),
	}
}

// IncrementRuns increments the run counter for outcome.
func (m *Metrics) IncrementRuns(outcome string) {
	m.runs.WithLabelValues(outcome).Inc()
}

// Observe records the stage latencies and sizes collected for one request.
func (m *Metrics) Observe(lm *LatencyMetrics) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for stage, ms := range lm.Timings {
		m.stageLatency.WithLabelValues(stage).Observe(ms)
	}
	if lm.InputSize > 0 {
		m.inputSize.Observe(float64(lm.InputSize))
	}
	if lm.OutputSize > 0 {
		m.outputSize.Observe(float64(lm.OutputSize))
	}
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) TrackInFlight() func() {
	m.inFlight.Inc()
	return m.inFlight.Dec
}
