package collector

import (
	"math"
	"sort"
	"sync"
	"time"
)

// observation is one completed request seen through RecordRequest.
type observation struct {
	at        time.Time
	latencyMs float64
	isErr     bool
}

// window accumulates request observations over a rolling duration and
// derives rate, error rate and latency percentiles from whatever is inside
// the window at read time.
type window struct {
	mu  sync.Mutex
	dur time.Duration
	obs []observation
}

func newWindow(dur time.Duration) *window {
	return &window{dur: dur}
}

func (w *window) record(latencyMs float64, isErr bool) {
	w.recordAt(time.Now(), latencyMs, isErr)
}

func (w *window) recordAt(at time.Time, latencyMs float64, isErr bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.obs = append(w.obs, observation{at: at, latencyMs: latencyMs, isErr: isErr})
}

// stats prunes expired observations and computes the window aggregates.
// Percentiles are nil when the window is empty.
func (w *window) stats(now time.Time) (reqPerSec, errRate float64, p50, p95, p99 *float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.dur)
	kept := w.obs[:0]
	for _, o := range w.obs {
		if o.at.After(cutoff) {
			kept = append(kept, o)
		}
	}
	w.obs = kept

	if len(w.obs) == 0 {
		return 0, 0, nil, nil, nil
	}

	latencies := make([]float64, 0, len(w.obs))
	errs := 0
	for _, o := range w.obs {
		latencies = append(latencies, o.latencyMs)
		if o.isErr {
			errs++
		}
	}
	sort.Float64s(latencies)

	reqPerSec = float64(len(w.obs)) / w.dur.Seconds()
	errRate = float64(errs) / float64(len(w.obs))
	p50 = percentile(latencies, 0.50)
	p95 = percentile(latencies, 0.95)
	p99 = percentile(latencies, 0.99)
	return reqPerSec, errRate, p50, p95, p99
}

// percentile returns the nearest-rank percentile of a sorted slice.
func percentile(sorted []float64, q float64) *float64 {
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	v := sorted[idx]
	return &v
}
