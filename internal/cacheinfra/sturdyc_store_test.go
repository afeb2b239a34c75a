package cacheinfra

import (
	"testing"
	"time"

	"github.com/goliatone/go-entity-cache/cache"
)

func newTestStore(t *testing.T, mutate func(cfg *cache.Config)) *SturdycStore {
	t.Helper()

	cfg := cache.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store, err := NewSturdycStore(cfg)
	if err != nil {
		t.Fatalf("NewSturdycStore() error = %v", err)
	}
	return store
}

func TestNewSturdycStore_InvalidConfig(t *testing.T) {
	cfg := cache.DefaultConfig()
	cfg.Capacity = 0

	if _, err := NewSturdycStore(cfg); err == nil {
		t.Fatal("NewSturdycStore() error = nil, want config error")
	}
}

func TestSturdycStore_PutGet(t *testing.T) {
	store := newTestStore(t, nil)
	key := cache.NewKey("event", "1")

	store.Put(cache.Entry{Key: key, Value: "caught a pokemon", Version: 1})

	entry, ok := store.Get(key)
	if !ok {
		t.Fatal("Get() = false after Put, want true")
	}
	if entry.Value != "caught a pokemon" {
		t.Errorf("entry.Value = %v, want %q", entry.Value, "caught a pokemon")
	}
	if entry.Version != 1 {
		t.Errorf("entry.Version = %d, want 1", entry.Version)
	}
	if entry.StoredAt.IsZero() {
		t.Error("entry.StoredAt is zero, want stamped")
	}
	if !entry.ExpiresAt.IsZero() {
		t.Errorf("entry.ExpiresAt = %v, want zero for a region without TTL", entry.ExpiresAt)
	}
}

func TestSturdycStore_GetAbsent(t *testing.T) {
	store := newTestStore(t, nil)

	if _, ok := store.Get(cache.NewKey("event", "missing")); ok {
		t.Error("Get() = true for absent key, want false")
	}
}

func TestSturdycStore_PutOverwrites(t *testing.T) {
	store := newTestStore(t, nil)
	key := cache.NewKey("event", "1")

	store.Put(cache.Entry{Key: key, Value: "old", Version: 1})
	store.Put(cache.Entry{Key: key, Value: "new", Version: 2})

	entry, ok := store.Get(key)
	if !ok {
		t.Fatal("Get() = false, want true")
	}
	if entry.Value != "new" || entry.Version != 2 {
		t.Errorf("entry = {%v, v%d}, want {new, v2}", entry.Value, entry.Version)
	}
}

func TestSturdycStore_Evict(t *testing.T) {
	store := newTestStore(t, nil)
	key := cache.NewKey("event", "1")

	store.Put(cache.Entry{Key: key, Value: "v"})
	store.Evict(key)

	if _, ok := store.Get(key); ok {
		t.Error("Get() = true after Evict, want false")
	}
}

func TestSturdycStore_EvictAbsentIsNoop(t *testing.T) {
	store := newTestStore(t, nil)

	// Neither the key nor its region exist yet.
	store.Evict(cache.NewKey("event", "missing"))
	store.EvictRegion("event")
}

func TestSturdycStore_EvictRegion(t *testing.T) {
	store := newTestStore(t, nil)

	store.Put(cache.Entry{Key: cache.NewKey("event", "1"), Value: "a"})
	store.Put(cache.Entry{Key: cache.NewKey("event", "2"), Value: "b"})
	store.Put(cache.Entry{Key: cache.NewKey("person", "1"), Value: "c"})

	store.EvictRegion("event")

	if got := store.Size("event"); got != 0 {
		t.Errorf("Size(event) = %d after EvictRegion, want 0", got)
	}
	if _, ok := store.Get(cache.NewKey("person", "1")); !ok {
		t.Error("Get(person::1) = false, want other regions untouched")
	}
}

func TestSturdycStore_RegionTTLExpiry(t *testing.T) {
	store := newTestStore(t, func(cfg *cache.Config) {
		cfg.RegionTTLs = map[string]time.Duration{"person": 30 * time.Millisecond}
	})

	person := cache.NewKey("person", "4")
	event := cache.NewKey("event", "1")

	store.Put(cache.Entry{Key: person, Value: "satoshi"})
	store.Put(cache.Entry{Key: event, Value: "hatched an egg"})

	entry, ok := store.Get(person)
	if !ok {
		t.Fatal("Get(person) = false before expiry, want true")
	}
	if entry.ExpiresAt.IsZero() {
		t.Error("entry.ExpiresAt is zero, want stamped from the region TTL")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok := store.Get(person); ok {
		t.Error("Get(person) = true after TTL, want false")
	}
	if _, ok := store.Get(event); !ok {
		t.Error("Get(event) = false, want regions without TTL to keep their entries")
	}
}

func TestSturdycStore_PutRestampsDeadline(t *testing.T) {
	store := newTestStore(t, func(cfg *cache.Config) {
		cfg.RegionTTLs = map[string]time.Duration{"person": 60 * time.Millisecond}
	})

	key := cache.NewKey("person", "4")
	store.Put(cache.Entry{Key: key, Value: "v1"})

	time.Sleep(40 * time.Millisecond)
	store.Put(cache.Entry{Key: key, Value: "v2"})
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first put, but only 40ms after the second: the rewrite
	// moved the deadline.
	if _, ok := store.Get(key); !ok {
		t.Error("Get() = false, want Put to restamp the expiry deadline")
	}
}
