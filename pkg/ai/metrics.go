package ai

import (
	"math"
	"sync"
)

// MetricsRecorder accumulates ModelMetrics across concurrent requests.
// The zero value is ready to use.
type MetricsRecorder struct {
	mu      sync.Mutex
	metrics ModelMetrics
}

// Add folds m into the running totals and recomputes throughput.
func (r *MetricsRecorder) Add(m ModelMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.InputTokens += m.InputTokens
	r.metrics.OutputTokens += m.OutputTokens
	r.metrics.TotalTokens += m.TotalTokens
	r.metrics.DurationMs += m.DurationMs
	r.metrics.Requests++

	if r.metrics.DurationMs > 0 {
		tokensPerSecond := (float64(r.metrics.TotalTokens) * 1000.0) / float64(r.metrics.DurationMs)
		r.metrics.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}

func (r *MetricsRecorder) Reset() {
	r.mu.Lock()
	r.metrics = ModelMetrics{}
	r.mu.Unlock()
}

func (r *MetricsRecorder) Snapshot() ModelMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}
