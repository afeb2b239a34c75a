package cacheinfra

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-entity-cache/cache"
)

// neverExpireTTL backs regions configured without a TTL. sturdyc requires a
// positive TTL per client, so "never" is approximated with a deadline no
// test or process will outlive; the entry itself carries a zero ExpiresAt
// and is exempt from the lazy expiry check.
const neverExpireTTL = 10 * 365 * 24 * time.Hour

// SturdycStore implements cache.EntryStore on top of sturdyc, with one
// sharded client per region. Regions are created lazily on first use, each
// with the TTL and capacity resolved from the configuration, which is how
// per-entity-type expiry is carried without per-entry timers.
//
// Version compatibility note: this implementation assumes sturdyc v1.x API.
// Monitor sturdyc version upgrades for potential option mapping changes.
type SturdycStore struct {
	cfg     cache.Config
	regions *xsync.MapOf[string, *sturdyc.Client[cache.Entry]]
}

// Interface assertion to ensure SturdycStore implements cache.EntryStore.
var _ cache.EntryStore = (*SturdycStore)(nil)

// NewSturdycStore creates a sturdyc-backed entry store. It validates the
// configuration before building any region client.
func NewSturdycStore(cfg cache.Config) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &SturdycStore{
		cfg:     cfg,
		regions: xsync.NewMapOf[string, *sturdyc.Client[cache.Entry]](),
	}, nil
}

// region returns the client for an entity type, creating it on first use.
func (s *SturdycStore) region(entityType string) *sturdyc.Client[cache.Entry] {
	client, _ := s.regions.LoadOrCompute(entityType, func() *sturdyc.Client[cache.Entry] {
		ttl := s.cfg.RegionTTL(entityType)
		if ttl <= 0 {
			ttl = neverExpireTTL
		}

		var options []sturdyc.Option
		if s.cfg.EvictionInterval > 0 {
			options = append(options, sturdyc.WithEvictionInterval(s.cfg.EvictionInterval))
		}

		return sturdyc.New[cache.Entry](
			s.cfg.Capacity,
			s.cfg.NumShards,
			ttl,
			s.cfg.EvictionPercentage,
			options...,
		)
	})
	return client
}

// Get implements cache.EntryStore.Get. Expiry is checked lazily here: an
// entry past its deadline is removed and reported absent even if sturdyc's
// background eviction has not reached it yet.
func (s *SturdycStore) Get(key cache.Key) (cache.Entry, bool) {
	client, ok := s.regions.Load(key.EntityType)
	if !ok {
		return cache.Entry{}, false
	}

	entry, ok := client.Get(key.ID)
	if !ok {
		return cache.Entry{}, false
	}

	if entry.Expired(time.Now()) {
		client.Delete(key.ID)
		return cache.Entry{}, false
	}

	return entry, true
}

// Put implements cache.EntryStore.Put. It always overwrites and restamps
// the entry's expiry deadline from the region TTL.
func (s *SturdycStore) Put(entry cache.Entry) {
	now := time.Now()
	entry.StoredAt = now

	if ttl := s.cfg.RegionTTL(entry.Key.EntityType); ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	} else {
		entry.ExpiresAt = time.Time{}
	}

	s.region(entry.Key.EntityType).Set(entry.Key.ID, entry)
}

// Evict implements cache.EntryStore.Evict.
func (s *SturdycStore) Evict(key cache.Key) {
	if client, ok := s.regions.Load(key.EntityType); ok {
		client.Delete(key.ID)
	}
}

// EvictRegion implements cache.EntryStore.EvictRegion. It removes every
// entry of the region unconditionally, expired or not.
func (s *SturdycStore) EvictRegion(entityType string) {
	client, ok := s.regions.Load(entityType)
	if !ok {
		return
	}

	for _, id := range client.ScanKeys() {
		client.Delete(id)
	}
}

// Size returns the number of live entries in a region. Used by diagnostics
// and tests; not part of the EntryStore contract.
func (s *SturdycStore) Size(entityType string) int {
	client, ok := s.regions.Load(entityType)
	if !ok {
		return 0
	}
	return client.Size()
}
