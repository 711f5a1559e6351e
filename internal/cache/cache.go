// Package cache provides the bounded in-memory TTL cache for upstream
// response bodies, keyed by request fingerprint.
package cache

import (
	"sync"
	"time"

	"log/slog"
)

type entry struct {
	body     []byte
	storedAt time.Time
}

func (e *entry) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.storedAt) > ttl
}

// ResultCache is a bounded TTL map from fingerprint to response body.
// When disabled, Get always misses and Set is a no-op. Bodies are returned
// without cloning; callers must treat them as immutable.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	enabled bool
	ttl     time.Duration
	maxKeys int

	hits   int64
	misses int64
	writes int64

	sweepInterval time.Duration
	stopSweep     chan struct{}
	stopOnce      sync.Once
}

// Stats is a read-only snapshot of cache counters.
type Stats struct {
	Enabled bool    `json:"enabled"`
	Size    int     `json:"size"`
	MaxKeys int     `json:"maxKeys"`
	TTL     string  `json:"ttl"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Writes  int64   `json:"writes"`
	HitRate float64 `json:"hitRate"`
}

// New constructs a ResultCache and starts its sweeper goroutine.
// Call Stop on shutdown to release the sweeper.
func New(enabled bool, ttl time.Duration, maxKeys int) *ResultCache {
	c := &ResultCache{
		entries:       make(map[string]*entry),
		enabled:       enabled,
		ttl:           ttl,
		maxKeys:       maxKeys,
		sweepInterval: sweepIntervalFor(ttl),
		stopSweep:     make(chan struct{}),
	}
	go c.sweepRoutine()
	return c
}

// sweepIntervalFor keeps the sweeper responsive for short TTLs without
// waking up needlessly for long ones.
func sweepIntervalFor(ttl time.Duration) time.Duration {
	iv := ttl / 2
	if iv < time.Second {
		iv = time.Second
	}
	if iv > time.Minute {
		iv = time.Minute
	}
	return iv
}

// Get returns the cached body for fp, if present and fresh.
func (c *ResultCache) Get(fp string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}
	now := time.Now()

	c.mu.RLock()
	e, ok := c.entries[fp]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	if e.expired(c.ttl, now) {
		c.mu.Lock()
		delete(c.entries, fp)
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return e.body, true
}

// Set stores body under fp with the configured TTL, evicting when the entry
// count would exceed the bound.
func (c *ResultCache) Set(fp string, body []byte) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fp]; !exists && len(c.entries) >= c.maxKeys {
		c.evictLocked()
	}
	c.entries[fp] = &entry{body: body, storedAt: time.Now()}
	c.writes++
}

// evictLocked frees one slot: expired entries first, then the oldest
// insertion. Caller holds the write lock.
func (c *ResultCache) evictLocked() {
	now := time.Now()
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if e.expired(c.ttl, now) {
			delete(c.entries, k)
			return
		}
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		slog.Debug("cache evicted oldest entry",
			slog.String("key", shortKey(oldestKey)),
			slog.Duration("age", now.Sub(oldestAt)))
	}
}

// Clear removes all entries and returns how many were dropped.
func (c *ResultCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*entry)
	slog.Info("result cache cleared", slog.Int("entries", n))
	return n
}

// Size returns the current entry count.
func (c *ResultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Enabled reports whether caching is active.
func (c *ResultCache) Enabled() bool { return c.enabled }

// GetStats returns cache counters for the stats endpoints.
func (c *ResultCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Enabled: c.enabled,
		Size:    len(c.entries),
		MaxKeys: c.maxKeys,
		TTL:     c.ttl.String(),
		Hits:    c.hits,
		Misses:  c.misses,
		Writes:  c.writes,
		HitRate: rate,
	}
}

// Stop terminates the sweeper goroutine.
func (c *ResultCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopSweep) })
}

func (c *ResultCache) sweepRoutine() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopSweep:
			return
		}
	}
}

// sweep removes expired entries so stale bodies do not occupy the bound.
func (c *ResultCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if e.expired(c.ttl, now) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("swept expired cache entries", slog.Int("count", removed))
	}
}

func shortKey(k string) string {
	if len(k) > 16 {
		return k[:16] + "..."
	}
	return k
}
