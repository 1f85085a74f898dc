// Package cache tracks whether aggregated results for a given query are
// safe to serve, stale, or must be recomputed.
package cache

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ccstats/internal/model"
)

// Status is the freshness classification of one cache entry.
type Status string

const (
	StatusEmpty   Status = "empty"
	StatusLoading Status = "loading"
	StatusFresh   Status = "fresh"
	StatusStale   Status = "stale"
	StatusExpired Status = "expired"
	StatusError   Status = "error"
)

// Servable reports whether data under this status may be shown without a
// recompute (possibly with a staleness annotation).
func (s Status) Servable() bool {
	return s == StatusFresh || s == StatusStale
}

// Entry is the cached aggregate for one query key. Each key has its own
// independent state; there is no global cache state.
type Entry struct {
	QueryKey   string
	FromDay    string
	ToDay      string
	Project    string
	Status     Status
	CacheTime  time.Time
	ExpiryTime time.Time
	HitCount   int
	ApproxSize int
	LastError  string

	Stats model.AggregateStatistics
}

// QueryKey builds the cache key for a date-range/project filter.
func QueryKey(fromDay, toDay, project string) string {
	return fmt.Sprintf("%s..%s|%s", fromDay, toDay, project)
}

// Controller owns all cache entries and applies the freshness state
// machine: Empty -> Loading -> Fresh -> Stale -> Expired, with Error
// reachable from any non-terminal state.
type Controller struct {
	ttl         time.Duration
	staleWindow time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	entries map[string]*Entry

	// Now is swappable for tests.
	Now func() time.Time
}

// NewController builds a controller with the given TTL and near-expiry
// stale window.
func NewController(ttl, staleWindow time.Duration, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		ttl:         ttl,
		staleWindow: staleWindow,
		logger:      logger,
		entries:     make(map[string]*Entry),
		Now:         time.Now,
	}
}

// Lookup evaluates TTL expiry lazily and returns a copy of the entry.
// Every hit on a servable entry increments its hit count. A missing key
// reports StatusEmpty.
func (c *Controller) Lookup(key string) (Entry, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{QueryKey: key, Status: StatusEmpty}, StatusEmpty
	}

	c.advance(e)
	if e.Status.Servable() {
		e.HitCount++
	}
	return *e, e.Status
}

// advance applies time-based transitions. Fresh degrades to Stale inside
// the near-expiry window and to Expired at the deadline; never backwards.
func (c *Controller) advance(e *Entry) {
	if e.Status != StatusFresh && e.Status != StatusStale {
		return
	}
	now := c.Now()
	switch {
	case !now.Before(e.ExpiryTime):
		e.Status = StatusExpired
	case now.After(e.ExpiryTime.Add(-c.staleWindow)):
		e.Status = StatusStale
	}
}

// BeginLoad marks the key as loading: requested with no usable entry, or
// an explicit refresh of an existing one.
func (c *Controller) BeginLoad(key, fromDay, toDay, project string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &Entry{QueryKey: key, FromDay: fromDay, ToDay: toDay, Project: project}
		c.entries[key] = e
	}
	e.Status = StatusLoading
	e.LastError = ""
}

// Complete records a successful computation: the entry becomes Fresh with
// a new expiry deadline.
func (c *Controller) Complete(key string, stats model.AggregateStatistics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &Entry{QueryKey: key}
		c.entries[key] = e
	}
	now := c.Now()
	e.Status = StatusFresh
	e.CacheTime = now
	e.ExpiryTime = now.Add(c.ttl)
	e.Stats = stats
	e.ApproxSize = approxSize(stats)
	e.LastError = ""
}

// Fail transitions the entry to Error but keeps the last known-good
// aggregate so it can still be served with a stale annotation.
func (c *Controller) Fail(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &Entry{QueryKey: key}
		c.entries[key] = e
	}
	e.Status = StatusError
	e.LastError = err.Error()
	c.logger.Warn("cache entry moved to error state",
		zap.String("query_key", key), zap.Error(err))
}

// InvalidateDays drops every entry whose date range intersects the given
// days, so the next query recomputes from the updated aggregates. Called
// after a sync commits new data. TTL expiry, by contrast, keeps the entry
// so expired data can still be served with its annotation.
func (c *Controller) InvalidateDays(days []string) {
	if len(days) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		for _, day := range days {
			if (e.FromDay == "" || e.FromDay <= day) && (e.ToDay == "" || day <= e.ToDay) {
				delete(c.entries, key)
				break
			}
		}
	}
}

// Discard removes an entry that never completed a computation, so a query
// that found no data does not linger as a loading entry. Entries holding a
// known-good aggregate are kept.
func (c *Controller) Discard(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.CacheTime.IsZero() {
		delete(c.entries, key)
	}
}

// Clear destroys all entries.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}

// Snapshot returns a copy of every entry for status reporting.
func (c *Controller) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		c.advance(e)
		out = append(out, *e)
	}
	return out
}

// approxSize estimates the entry footprint by breakdown row count.
func approxSize(stats model.AggregateStatistics) int {
	return len(stats.ByModel) + len(stats.ByDate) + len(stats.ByProject)
}
