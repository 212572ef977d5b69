package mcphost

import (
	"slices"
	"sync"
	"time"
)

const defaultWindowSize = 100

type callSample struct {
	latency time.Duration
	failed  bool
}

// callWindow keeps the most recent tool calls in a ring buffer for
// percentile and error-rate reporting. All methods are safe for concurrent
// use.
type callWindow struct {
	mu      sync.Mutex
	samples []callSample
	pos     int
	total   int
}

// newCallWindow creates a window holding size calls. A size of 0 or
// negative defaults to 100.
func newCallWindow(size int) *callWindow {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &callWindow{samples: make([]callSample, size)}
}

// Record adds one call, overwriting the oldest once the window is full.
func (w *callWindow) Record(latency time.Duration, failed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.pos] = callSample{latency: latency, failed: failed}
	w.pos = (w.pos + 1) % len(w.samples)
	w.total++
}

// live returns the occupied part of the buffer. Callers hold mu.
func (w *callWindow) live() []callSample {
	return w.samples[:min(w.total, len(w.samples))]
}

// Percentile returns the latency at quantile q in [0, 1] over the window, or
// 0 when nothing was recorded.
func (w *callWindow) Percentile(q float64) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	live := w.live()
	if len(live) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(live))
	for i, s := range live {
		sorted[i] = s.latency
	}
	slices.Sort(sorted)
	return sorted[int(float64(len(sorted)-1)*q)]
}

// ErrorRate returns the fraction of failed calls in the window (0.0–1.0).
func (w *callWindow) ErrorRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	live := w.live()
	if len(live) == 0 {
		return 0
	}
	failed := 0
	for _, s := range live {
		if s.failed {
			failed++
		}
	}
	return float64(failed) / float64(len(live))
}

// Count returns the total number of calls recorded, including those that
// have left the window.
func (w *callWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}
