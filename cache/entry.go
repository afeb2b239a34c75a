package cache

import "time"

// Entry is a cached value plus the metadata the coordinator needs to decide
// whether it is servable. Entries are copied by value between the store and
// its callers; nodes never share an entry by reference, clustering
// replicates by message instead.
type Entry struct {
	Key     Key
	Value   any
	Version int64

	// StoredAt is when the entry was last put into the local store.
	StoredAt time.Time

	// ExpiresAt is the expiry deadline. Zero means the entry never expires.
	ExpiresAt time.Time
}

// Expired reports whether the entry's deadline has passed at the given time.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// EntryStore is the per-node in-memory store for cached entries.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Get returns false for absent entries and for entries whose expiry
//     deadline has passed; expiry is checked lazily on read.
//   - Put always overwrites and restamps the expiry deadline from the
//     region TTL configuration.
//   - Evict and EvictRegion remove unconditionally regardless of expiry
//     state. Eviction is a cache-management action, not an access; callers
//     must not count it against hit/miss/put statistics.
type EntryStore interface {
	Get(key Key) (Entry, bool)
	Put(entry Entry)
	Evict(key Key)
	EvictRegion(entityType string)
}
