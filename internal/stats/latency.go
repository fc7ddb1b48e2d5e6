// Package stats tracks recent extraction latencies per method.
package stats

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// Snapshot is a point-in-time aggregate of latency samples.
type Snapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Latency keeps per-method samples within a rolling window.
type Latency struct {
	mu      sync.Mutex
	samples map[string][]sample
	maxAge  time.Duration
}

func NewLatency(maxAge time.Duration) *Latency {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Latency{
		samples: make(map[string][]sample),
		maxAge:  maxAge,
	}
}

// Record adds one sample for method.
func (l *Latency) Record(method string, d time.Duration) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[method] = append(prune(l.samples[method], now.Add(-l.maxAge)), sample{
		timestamp:  now,
		durationMs: ms,
	})
}

// Snapshot aggregates the live samples of every method. Methods whose
// samples have all expired are omitted.
func (l *Latency) Snapshot() map[string]Snapshot {
	cutoff := time.Now().Add(-l.maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Snapshot, len(l.samples))
	for method, samples := range l.samples {
		samples = prune(samples, cutoff)
		if len(samples) == 0 {
			delete(l.samples, method)
			continue
		}
		l.samples[method] = samples
		out[method] = aggregate(samples)
	}
	return out
}

func prune(samples []sample, cutoff time.Time) []sample {
	writeIdx := 0
	for _, s := range samples {
		if !s.timestamp.Before(cutoff) {
			samples[writeIdx] = s
			writeIdx++
		}
	}
	return samples[:writeIdx]
}

func aggregate(samples []sample) Snapshot {
	values := make([]int64, 0, len(samples))
	var sum int64
	for _, s := range samples {
		values = append(values, s.durationMs)
		sum += s.durationMs
	}
	slices.Sort(values)

	return Snapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
