package analysis

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"climatelens/internal/observability"
	"climatelens/internal/types"
)

// Key identifies one cached analysis result. The coordinate is rounded to
// the fixed spatial resolution so near-duplicate queries share entries, and
// the source identifier is part of the key so results from different
// upstreams are never silently mixed.
type Key struct {
	Coord       types.Coordinate
	Month       int
	Day         int
	ConditionID string
	SourceID    string
}

// NewKey builds a cache key, rounding the coordinate.
func NewKey(coord types.Coordinate, month, day int, conditionID, sourceID string) Key {
	return Key{
		Coord:       types.RoundCoordinate(coord),
		Month:       month,
		Day:         day,
		ConditionID: conditionID,
		SourceID:    sourceID,
	}
}

// String renders the key in its storage form.
func (k Key) String() string {
	return fmt.Sprintf("%.2f,%.2f|%02d-%02d|%s|%s",
		k.Coord.Lat, k.Coord.Lon, k.Month, k.Day, k.ConditionID, k.SourceID)
}

// Cache memoizes successful analysis results with TTL-based expiry. Expired
// entries are treated as misses and evicted lazily on the next lookup; there
// is no background sweep. Error states are never cached, so a failed compute
// is retried on the next request rather than poisoning the key.
//
// Writes are last-writer-wins: values are deterministic and idempotent, so a
// losing concurrent writer overwriting redundantly is harmless.
type Cache struct {
	store   *gocache.Cache
	metrics *observability.Metrics
}

// NewCache creates a cache with the given default TTL. The zero cleanup
// interval disables go-cache's janitor, keeping eviction purely lazy.
func NewCache(ttl time.Duration, metrics *observability.Metrics) *Cache {
	return &Cache{
		store:   gocache.New(ttl, 0),
		metrics: metrics,
	}
}

// Get returns the cached result for the key, or a miss. The stored value is
// copied out so callers can never mutate a shared entry.
func (c *Cache) Get(k Key) (*types.AnalysisResult, bool) {
	v, ok := c.store.Get(k.String())
	if !ok {
		return nil, false
	}
	result, ok := v.(types.AnalysisResult)
	if !ok {
		return nil, false
	}
	out := result
	return &out, true
}

// Put stores a successful result under the key with the cache's default TTL,
// overwriting any existing entry.
func (c *Cache) Put(k Key, result *types.AnalysisResult) {
	if result == nil {
		return
	}
	c.store.SetDefault(k.String(), *result)
}

// Invalidate removes the entry for the key, if any.
func (c *Cache) Invalidate(k Key) {
	c.store.Delete(k.String())
}

func (c *Cache) recordLookup(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}
