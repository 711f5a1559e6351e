package usecase

import (
	"sync"
	"time"

	"github.com/fairyhunter13/openweather-proxy/internal/adapter/observability"
)

// Stats collects request counters and the response-time reservoir.
// All methods are safe for concurrent use; Snapshot is read-only.
type Stats struct {
	mu sync.Mutex

	totalRequests int64
	cacheHits     int64
	cacheWrites   int64
	upstreamCalls int64
	errorCount    int64

	rtCount int64
	rtSum   time.Duration
	rtMin   time.Duration
	rtMax   time.Duration

	inFlight  int64
	startedAt time.Time
}

// Snapshot is a point-in-time view of the telemetry counters.
type Snapshot struct {
	TotalRequests int64   `json:"totalRequests"`
	CacheHits     int64   `json:"cacheHits"`
	CacheWrites   int64   `json:"cacheWrites"`
	UpstreamCalls int64   `json:"upstreamCalls"`
	Errors        int64   `json:"errors"`
	CacheHitRate  float64 `json:"cacheHitRate"`

	AvgResponseMS float64 `json:"avgResponseTimeMs"`
	MinResponseMS float64 `json:"minResponseTimeMs"`
	MaxResponseMS float64 `json:"maxResponseTimeMs"`

	InFlight      int64   `json:"pendingRequests"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// NewStats constructs a Stats anchored at now.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

// RecordRequest counts one logical client request.
func (s *Stats) RecordRequest() {
	s.mu.Lock()
	s.totalRequests++
	s.mu.Unlock()
}

// RecordCacheHit counts one result-cache hit.
func (s *Stats) RecordCacheHit() {
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
	observability.CacheHitsTotal.Inc()
}

// RecordCacheWrite counts one result-cache fill.
func (s *Stats) RecordCacheWrite() {
	s.mu.Lock()
	s.cacheWrites++
	s.mu.Unlock()
	observability.CacheWritesTotal.Inc()
}

// RecordUpstreamCall counts one upstream attempt.
func (s *Stats) RecordUpstreamCall() {
	s.mu.Lock()
	s.upstreamCalls++
	s.mu.Unlock()
}

// RecordError counts one terminal request error.
func (s *Stats) RecordError() {
	s.mu.Lock()
	s.errorCount++
	s.mu.Unlock()
}

// ObserveResponseTime feeds the response-time reservoir.
func (s *Stats) ObserveResponseTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtCount++
	s.rtSum += d
	if s.rtMin == 0 || d < s.rtMin {
		s.rtMin = d
	}
	if d > s.rtMax {
		s.rtMax = d
	}
}

// IncInFlight marks one fingerprint as having an upstream call in flight.
func (s *Stats) IncInFlight() {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
	observability.InFlightFingerprints.Inc()
}

// DecInFlight is the counterpart of IncInFlight.
func (s *Stats) DecInFlight() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	observability.InFlightFingerprints.Dec()
}

// Snapshot returns a consistent copy of all counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TotalRequests: s.totalRequests,
		CacheHits:     s.cacheHits,
		CacheWrites:   s.cacheWrites,
		UpstreamCalls: s.upstreamCalls,
		Errors:        s.errorCount,
		InFlight:      s.inFlight,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
	if s.totalRequests > 0 {
		snap.CacheHitRate = float64(s.cacheHits) / float64(s.totalRequests)
	}
	if s.rtCount > 0 {
		snap.AvgResponseMS = float64(s.rtSum.Milliseconds()) / float64(s.rtCount)
		snap.MinResponseMS = float64(s.rtMin.Milliseconds())
		snap.MaxResponseMS = float64(s.rtMax.Milliseconds())
	}
	return snap
}

// StartedAt reports when the process telemetry was initialized.
func (s *Stats) StartedAt() time.Time { return s.startedAt }
