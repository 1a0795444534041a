// Package metrics provides in-memory backend request statistics.
package metrics

import (
	"math"
	"sync"
	"time"
)

// RequestMetrics holds aggregated metrics for a single backend operation.
type RequestMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// RequestSnapshot provides computed stats from raw metrics.
type RequestSnapshot struct {
	Operation   string
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Collector aggregates in-memory request statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*RequestMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*RequestMetrics),
	}
}

// Record records one backend request for an operation.
func (c *Collector) Record(op string, duration time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.ops[op]
	if !ok {
		m = &RequestMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}

	m.Count++
	if failed {
		m.Failures++
	}
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// Snapshot returns a point-in-time snapshot of all recorded operations,
// sorted order left to the caller.
func (c *Collector) Snapshot() []RequestSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snaps := make([]RequestSnapshot, 0, len(c.ops))
	for op, m := range c.ops {
		if m.Count == 0 {
			continue
		}
		snaps = append(snaps, RequestSnapshot{
			Operation:   op,
			Count:       m.Count,
			Failures:    m.Failures,
			TotalTimeMs: m.TotalTime.Milliseconds(),
			AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
			MinTimeMs:   m.MinTime.Milliseconds(),
			MaxTimeMs:   m.MaxTime.Milliseconds(),
		})
	}
	return snaps
}

// Uptime returns how long the collector has been alive.
func (c *Collector) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.startTime)
}
