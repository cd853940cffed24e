package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stage names recorded for an optimization request.
const (
	StageSpool    = "spool"
	StageExtract  = "extract"
	StageOptimize = "optimize"
	StageUpload   = "upload"
	StagePersist  = "persist"
)

// LatencyMetrics holds per-stage latency measurements for one optimization request.
type LatencyMetrics struct {
	mu sync.Mutex

	TotalStartTime time.Time `json:"-"`
	TotalLatencyMs float64   `json:"totalLatencyMs"`

	started map[string]time.Time
	// Timings maps stage name to elapsed milliseconds.
	Timings map[string]float64 `json:"timings"`

	InputSize  int64 `json:"inputSize"`
	OutputSize int64 `json:"outputSize"`
}

// NewLatencyMetrics creates a new metrics collector
func NewLatencyMetrics() *LatencyMetrics {
	return &LatencyMetrics{
		TotalStartTime: time.Now(),
		started:        make(map[string]time.Time),
		Timings:        make(map[string]float64),
	}
}

// Start marks the start of stage.
func (m *LatencyMetrics) Start(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[stage] = time.Now()
}

// End marks the end of stage. Ending a stage that never started is a no-op.
func (m *LatencyMetrics) End(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if start, ok := m.started[stage]; ok {
		m.Timings[stage] = float64(time.Since(start).Microseconds()) / 1000.0
		delete(m.started, stage)
	}
}

// Stage returns the recorded latency of stage in milliseconds.
func (m *LatencyMetrics) Stage(stage string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Timings[stage]
	return v, ok
}

// SetSizes records the byte sizes of the input and the optimized output.
func (m *LatencyMetrics) SetSizes(input, output int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InputSize = input
	m.OutputSize = output
}

// Finalize calculates the total latency.
func (m *LatencyMetrics) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.TotalStartTime.IsZero() {
		m.TotalLatencyMs = float64(time.Since(m.TotalStartTime).Microseconds()) / 1000.0
		m.Timings["total"] = m.TotalLatencyMs
	}
}

// GetHeaders returns HTTP headers with latency metrics
func (m *LatencyMetrics) GetHeaders() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	headers := map[string]string{
		"X-Latency-Total-Ms": formatFloat(m.TotalLatencyMs),
	}
	stages := make([]string, 0, len(m.Timings))
	for stage := range m.Timings {
		if stage != "total" {
			stages = append(stages, stage)
		}
	}
	sort.Strings(stages)
	for _, stage := range stages {
		headers["X-Latency-"+headerName(stage)+"-Ms"] = formatFloat(m.Timings[stage])
	}
	if m.InputSize > 0 {
		headers["X-Input-Size-Bytes"] = fmt.Sprintf("%d", m.InputSize)
	}
	if m.OutputSize > 0 {
		headers["X-Output-Size-Bytes"] = fmt.Sprintf("%d", m.OutputSize)
	}
	return headers
}

func headerName(stage string) string {
	if stage == "" {
		return stage
	}
	return strings.ToUpper(stage[:1]) + stage[1:]
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
