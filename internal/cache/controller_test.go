package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccstats/internal/model"
)

func newTestController(ttl, staleWindow time.Duration) (*Controller, *time.Time) {
	c := NewController(ttl, staleWindow, nil)
	now := time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return now }
	return c, &now
}

func someStats() model.AggregateStatistics {
	return model.AggregateStatistics{
		TotalCost:     1.5,
		TotalRequests: 3,
		ByDate:        []model.DateStats{{Date: "2025-08-29"}},
	}
}

func TestLookupMissingKeyIsEmpty(t *testing.T) {
	c, _ := newTestController(5*time.Minute, 30*time.Second)

	entry, status := c.Lookup("k")
	assert.Equal(t, StatusEmpty, status)
	assert.Equal(t, "k", entry.QueryKey)
	assert.Zero(t, entry.HitCount)
}

func TestFreshnessLifecycle(t *testing.T) {
	c, now := newTestController(5*time.Minute, 30*time.Second)
	key := QueryKey("2025-08-01", "2025-08-30", "")

	c.BeginLoad(key, "2025-08-01", "2025-08-30", "")
	_, status := c.Lookup(key)
	assert.Equal(t, StatusLoading, status)
	assert.False(t, status.Servable())

	c.Complete(key, someStats())
	entry, status := c.Lookup(key)
	require.Equal(t, StatusFresh, status)
	assert.True(t, status.Servable())
	assert.Equal(t, 1.5, entry.Stats.TotalCost)
	assert.Equal(t, now.Add(5*time.Minute), entry.ExpiryTime)

	// inside the near-expiry window: stale but still servable
	*now = now.Add(5*time.Minute - 10*time.Second)
	_, status = c.Lookup(key)
	assert.Equal(t, StatusStale, status)
	assert.True(t, status.Servable())

	// past the deadline: expired, must recompute
	*now = now.Add(time.Minute)
	_, status = c.Lookup(key)
	assert.Equal(t, StatusExpired, status)
	assert.False(t, status.Servable())
}

// Time alone never moves an entry backwards toward fresher states.
func TestFreshnessMonotonicUnderTime(t *testing.T) {
	c, now := newTestController(time.Minute, 10*time.Second)

	c.Complete("k", someStats())
	*now = now.Add(55 * time.Second)
	_, status := c.Lookup("k")
	require.Equal(t, StatusStale, status)

	// going forward again can only expire, never refresh
	*now = now.Add(10 * time.Second)
	_, status = c.Lookup("k")
	assert.Equal(t, StatusExpired, status)
	_, status = c.Lookup("k")
	assert.Equal(t, StatusExpired, status)
}

func TestHitCountOnlyOnServable(t *testing.T) {
	c, now := newTestController(time.Minute, time.Second)

	c.Complete("k", someStats())
	c.Lookup("k")
	entry, _ := c.Lookup("k")
	assert.Equal(t, 2, entry.HitCount)

	// expired lookups are not hits
	*now = now.Add(2 * time.Minute)
	entry, status := c.Lookup("k")
	require.Equal(t, StatusExpired, status)
	assert.Equal(t, 2, entry.HitCount)
}

func TestFailKeepsLastGoodStats(t *testing.T) {
	c, _ := newTestController(time.Minute, time.Second)

	c.Complete("k", someStats())
	c.Fail("k", errors.New("disk exploded"))

	entry, status := c.Lookup("k")
	assert.Equal(t, StatusError, status)
	assert.Equal(t, "disk exploded", entry.LastError)
	assert.Equal(t, 1.5, entry.Stats.TotalCost, "last-good stats must survive the error")
	assert.False(t, entry.CacheTime.IsZero())
}

func TestCompleteClearsError(t *testing.T) {
	c, _ := newTestController(time.Minute, time.Second)

	c.Fail("k", errors.New("boom"))
	c.Complete("k", someStats())

	entry, status := c.Lookup("k")
	assert.Equal(t, StatusFresh, status)
	assert.Empty(t, entry.LastError)
}

func TestInvalidateDays(t *testing.T) {
	c, _ := newTestController(time.Hour, time.Second)

	mk := func(from, to string) string {
		key := QueryKey(from, to, "")
		c.BeginLoad(key, from, to, "")
		c.Complete(key, someStats())
		return key
	}
	inRange := mk("2025-08-01", "2025-08-31")
	before := mk("2025-07-01", "2025-07-31")
	open := mk("", "")

	c.InvalidateDays([]string{"2025-08-15"})

	_, status := c.Lookup(inRange)
	assert.Equal(t, StatusEmpty, status, "intersecting range must be dropped")
	_, status = c.Lookup(before)
	assert.Equal(t, StatusFresh, status, "disjoint range must survive")
	_, status = c.Lookup(open)
	assert.Equal(t, StatusEmpty, status, "open range intersects everything")

	// no days, no effect
	fresh := mk("2025-09-01", "2025-09-30")
	c.InvalidateDays(nil)
	_, status = c.Lookup(fresh)
	assert.Equal(t, StatusFresh, status)
}

func TestDiscardOnlyRemovesUnfilledEntries(t *testing.T) {
	c, _ := newTestController(time.Hour, time.Second)

	c.BeginLoad("a", "", "", "")
	c.Discard("a")
	assert.Empty(t, c.Snapshot(), "a never-completed entry is removed")

	c.Complete("b", someStats())
	c.Discard("b")
	_, status := c.Lookup("b")
	assert.Equal(t, StatusFresh, status, "completed entries are kept")
}

func TestClear(t *testing.T) {
	c, _ := newTestController(time.Hour, time.Second)
	c.Complete("a", someStats())
	c.Complete("b", someStats())

	c.Clear()

	assert.Empty(t, c.Snapshot())
	_, status := c.Lookup("a")
	assert.Equal(t, StatusEmpty, status)
}

func TestSnapshot(t *testing.T) {
	c, _ := newTestController(time.Hour, time.Second)
	c.Complete("a", someStats())
	c.BeginLoad("b", "", "", "")

	snap := c.Snapshot()
	assert.Len(t, snap, 2)

	byKey := make(map[string]Entry)
	for _, e := range snap {
		byKey[e.QueryKey] = e
	}
	assert.Equal(t, StatusFresh, byKey["a"].Status)
	assert.Equal(t, 1, byKey["a"].ApproxSize)
	assert.Equal(t, StatusLoading, byKey["b"].Status)
}

func TestQueryKeyDistinctPerFilter(t *testing.T) {
	a := QueryKey("2025-08-01", "2025-08-30", "")
	b := QueryKey("2025-08-01", "2025-08-30", "app")
	cKey := QueryKey("2025-08-02", "2025-08-30", "")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, cKey)
}
