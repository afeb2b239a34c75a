// Package querycache caches the result key sets of queries. A cached
// result is keyed by the serialized query plus parameters and stamped with
// the region clock values at creation time; it stays valid exactly until
// any region the query read is bumped by a mutation. Invalidation is
// comparison-based and lazy, so no per-query invalidation messages exist.
package querycache

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-entity-cache/cache"
)

// Entry is one cached query result: the ordered keys the query produced,
// the regions it read, and the region stamps observed when it was stored.
//
// Result keys must remain independently fetchable: a stale or evicted
// entity behind one of the keys does not invalidate the query result, only
// a region bump does.
type Entry struct {
	QueryKey         string
	ResultKeys       []cache.Key
	Regions          []string
	StampsAtCreation map[string]int64
}

// Valid reports whether the entry was created at or after the current
// stamp of every region it read.
func (e Entry) Valid(clock *cache.RegionClock) bool {
	for _, region := range e.Regions {
		if e.StampsAtCreation[region] < clock.Stamp(region) {
			return false
		}
	}
	return true
}

// Cache stores query result entries for one node.
type Cache struct {
	entries *xsync.MapOf[string, Entry]
}

// New creates an empty query result cache.
func New() *Cache {
	return &Cache{entries: xsync.NewMapOf[string, Entry]()}
}

// Lookup returns the entry for a query key if it exists and is still valid
// against the clock. Stale entries are discarded on the spot and reported
// as absent.
func (c *Cache) Lookup(queryKey string, clock *cache.RegionClock) (Entry, bool) {
	entry, ok := c.entries.Load(queryKey)
	if !ok {
		return Entry{}, false
	}

	if !entry.Valid(clock) {
		c.entries.Delete(queryKey)
		return Entry{}, false
	}

	return entry, true
}

// Store records a query result, overwriting any previous entry for the
// same query key.
func (c *Cache) Store(entry Entry) {
	c.entries.Store(entry.QueryKey, entry)
}

// Evict drops one query result.
func (c *Cache) Evict(queryKey string) {
	c.entries.Delete(queryKey)
}

// Purge drops every cached query result.
func (c *Cache) Purge() {
	c.entries.Clear()
}

// Len returns the number of cached results, valid or not.
func (c *Cache) Len() int {
	return c.entries.Size()
}
