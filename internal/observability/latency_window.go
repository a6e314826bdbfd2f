package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

type LatencyStats struct {
	Outcome string  `json:"outcome"`
	Samples int     `json:"samples"`
	Count   int     `json:"count"`
	LastMS  float64 `json:"last_ms"`
	AvgMS   float64 `json:"avg_ms"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
	P99MS   float64 `json:"p99_ms"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	WindowSize  int            `json:"window_size"`
	Outcomes    []LatencyStats `json:"outcomes"`
}

// latencyWindow keeps the last maxSamples latencies per outcome in ring buffers.
type latencyWindow struct {
	mu         sync.RWMutex
	maxSamples int
	series     map[string]*latencyRing
}

type latencyRing struct {
	values []float64
	next   int
	filled bool
	last   float64
	count  int
}

func newLatencyWindow(maxSamples int) *latencyWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &latencyWindow{
		maxSamples: maxSamples,
		series:     make(map[string]*latencyRing),
	}
}

func (w *latencyWindow) Observe(outcome string, ms float64) {
	if outcome == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	ring, ok := w.series[outcome]
	if !ok {
		ring = &latencyRing{values: make([]float64, w.maxSamples)}
		w.series[outcome] = ring
	}
	ring.values[ring.next] = ms
	ring.last = ms
	ring.count++
	ring.next++
	if ring.next >= len(ring.values) {
		ring.next = 0
		ring.filled = true
	}
}

func (w *latencyWindow) Snapshot() LatencySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.series))
	for outcome := range w.series {
		keys = append(keys, outcome)
	}
	sort.Strings(keys)

	out := make([]LatencyStats, 0, len(keys))
	for _, outcome := range keys {
		ring := w.series[outcome]
		n := ring.next
		if ring.filled {
			n = len(ring.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, ring.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		out = append(out, LatencyStats{
			Outcome: outcome,
			Samples: n,
			Count:   ring.count,
			LastMS:  round2(ring.last),
			AvgMS:   round2(sum / float64(n)),
			P50MS:   round2(quantile(samples, 0.50)),
			P95MS:   round2(quantile(samples, 0.95)),
			P99MS:   round2(quantile(samples, 0.99)),
		})
	}

	return LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Outcomes:    out,
	}
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
