package generate

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at       time.Time
	duration time.Duration
}

// StatsSnapshot aggregates generation latencies inside the rolling window.
// The outcome counters cover the whole process lifetime.
type StatsSnapshot struct {
	Count     int     `json:"count"`
	MinMs     int64   `json:"min_ms"`
	MaxMs     int64   `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
	Failures  int64   `json:"failures"`
	Retries   int64   `json:"retries"`
	CacheHits int64   `json:"cache_hits"`
}

// LLMStats tracks recent generation call latencies within a rolling window.
type LLMStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration

	failures  int64
	retries   int64
	cacheHits int64
}

func NewLLMStats(maxAge time.Duration) *LLMStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds a successful call's latency.
func (s *LLMStats) Record(d time.Duration) {
	if d < 0 {
		d = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, duration: d})
}

// RecordFailure counts a call that failed after all retries.
func (s *LLMStats) RecordFailure() {
	s.mu.Lock()
	s.failures++
	s.mu.Unlock()
}

// RecordRetry counts one retried attempt.
func (s *LLMStats) RecordRetry() {
	s.mu.Lock()
	s.retries++
	s.mu.Unlock()
}

// RecordCacheHit counts a response served from the cache.
func (s *LLMStats) RecordCacheHit() {
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	snap := StatsSnapshot{
		Failures:  s.failures,
		Retries:   s.retries,
		CacheHits: s.cacheHits,
	}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		ms := sm.duration.Milliseconds()
		values = append(values, ms)
		sum += ms
	}
	slices.Sort(values)

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[upper])
	return lo + ((hi - lo) * weight)
}
