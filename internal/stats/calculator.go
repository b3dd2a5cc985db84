// Package stats derives dashboard statistics from device log records.
// All derivations are pure functions of the record sequence; the
// Calculator only adds memoization on top of them.
package stats

import (
	"sync"
	"time"

	"github.com/nixlim/hometop/internal/telemetry"
)

// Calculator computes DashboardStats and memoizes the latest result.
type Calculator struct {
	loc *time.Location

	mu    sync.Mutex
	key   string
	valid bool
	last  DashboardStats
}

// NewCalculator creates a Calculator that buckets hours in loc.
// Pass nil to use time.Local.
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{loc: loc}
}

// Location returns the location hours are bucketed in.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// Compute calculates the full DashboardStats from logs. It has no side
// effects and does not touch the memo.
func (c *Calculator) Compute(logs []telemetry.LogRecord) DashboardStats {
	devices := AggregateDevices(logs)
	return DashboardStats{
		Devices:       devices,
		Summary:       SummarizeDevices(devices),
		HourlyPower:   HourlyPower(logs, c.loc),
		FunctionUsage: FunctionUsage(logs),
		Users:         ComputeUsers(logs, c.loc),
	}
}

// ComputeFor returns the stats for logs, reusing the previous result when
// key matches the key of the last call. Callers build key from the source
// of logs and its generation, so a new fetch or query always recomputes.
func (c *Calculator) ComputeFor(key string, logs []telemetry.LogRecord) DashboardStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.key == key {
		return c.last
	}
	c.last = c.Compute(logs)
	c.key = key
	c.valid = true
	return c.last
}

// Reset drops the memoized result.
func (c *Calculator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.key = ""
	c.last = DashboardStats{}
}
