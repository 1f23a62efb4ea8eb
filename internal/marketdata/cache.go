package marketdata

import (
	"fmt"
	"sync"
	"time"

	"github.com/retracehq/retrace/internal/domain"
)

// cacheKey identifies one fetched range bucket.
type cacheKey struct {
	symbol string
	tf     domain.Timeframe
	start  int64
	end    int64
}

func newCacheKey(symbol string, tf domain.Timeframe, start, end time.Time) cacheKey {
	return cacheKey{symbol: symbol, tf: tf, start: start.Unix(), end: end.Unix()}
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s_%s_%d_%d", k.symbol, k.tf, k.start, k.end)
}

type cacheEntry struct {
	bars     []domain.Bar
	warnings []string
	storedAt time.Time
}

// barCache is a TTL cache shared by all concurrent runs. Entries past
// their TTL stay resident so they can still be served as CACHED_STALE
// when the external source is down.
type barCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[cacheKey]cacheEntry
}

func newBarCache(ttl time.Duration) *barCache {
	return &barCache{ttl: ttl, entries: make(map[cacheKey]cacheEntry)}
}

// get returns the entry and whether it is still within its TTL.
func (c *barCache) get(key cacheKey) (entry cacheEntry, fresh, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok = c.entries[key]
	if !ok {
		return cacheEntry{}, false, false
	}
	fresh = time.Since(entry.storedAt) < c.ttl
	return entry, fresh, true
}

func (c *barCache) put(key cacheKey, bars []domain.Bar, warnings []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{bars: bars, warnings: warnings, storedAt: time.Now()}
}
