package entitycache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/cluster"
	"github.com/goliatone/go-entity-cache/entitycache"
	"github.com/goliatone/go-entity-cache/internal/cacheinfra"
	"github.com/goliatone/go-entity-cache/pkg/testsupport"
	"github.com/goliatone/go-entity-cache/stats"
)

// failingBus accepts subscriptions but fails every publish.
type failingBus struct {
	err error
}

func (b *failingBus) Publish(context.Context, ...cluster.Message) error { return b.err }
func (b *failingBus) Subscribe(cluster.Handler) func()                  { return func() {} }

func TestSession_SaveRequiresEntityType(t *testing.T) {
	node, _ := singleNode(t)

	_, err := node.Begin().Save(context.Background(), cache.Record{Value: "v"})

	var configErr *cache.ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("Save() error = %v, want *cache.ConfigError", err)
	}
}

func TestSession_SaveAssignsID(t *testing.T) {
	node, _ := singleNode(t)

	session := node.Begin()
	defer session.Rollback()

	key, err := session.Save(context.Background(), cache.Record{
		Key:   cache.NewKey("event", ""),
		Value: "v",
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if key.ID == "" {
		t.Error("Save() assigned no ID, want a generated one")
	}
	if key.EntityType != "event" {
		t.Errorf("key.EntityType = %q, want %q", key.EntityType, "event")
	}
}

func TestSession_StagedSaveInvisibleBeforeCommit(t *testing.T) {
	node, backing := singleNode(t)
	ctx := context.Background()

	session := node.Begin()
	key, err := session.Save(ctx, cache.Record{Key: cache.NewKey("event", "1"), Value: "v"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if got := backing.Persists(); got != 0 {
		t.Errorf("backing store saw %d persists before Commit, want 0", got)
	}
	if _, found, err := node.Find(ctx, key); err != nil || found {
		t.Errorf("Find() = (found=%v, err=%v) before Commit, want absent", found, err)
	}

	session.Rollback()
}

func TestSession_CommitAppliesSaves(t *testing.T) {
	node, backing := singleNode(t)
	ctx := context.Background()

	baseline := node.Stats().Snapshot()

	session := node.Begin()
	key := cache.NewKey("event", "1")
	if _, err := session.Save(ctx, cache.Record{Key: key, Value: "caught a pokemon"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := session.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	// One persist, one counted put, and the entity now serves locally.
	if got := backing.Persists(); got != 1 {
		t.Errorf("backing store saw %d persists, want 1", got)
	}
	baseline = testsupport.ExpectCounts(t, node.Stats(), baseline, stats.Counts{Puts: 1})

	value, found, err := node.Find(ctx, key)
	if err != nil || !found || value != "caught a pokemon" {
		t.Fatalf("Find() = (%v, %v, %v), want the committed value from cache", value, found, err)
	}
	testsupport.ExpectCounts(t, node.Stats(), baseline, stats.Counts{Hits: 1})
}

func TestSession_UpdateCountsHitAndPut(t *testing.T) {
	node, backing := singleNode(t)
	ctx := context.Background()

	key := cache.NewKey("event", "1")
	backing.Seed(cache.Record{Key: key, Value: "caught a pokemon"})
	if _, _, err := node.Find(ctx, key); err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	baseline := node.Stats().Snapshot()

	session := node.Begin()
	err := session.Update(ctx, key, func(current any) (any, error) {
		return current.(string) + "!", nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := session.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	// The read inside Update counts the hit; the commit counts the put.
	testsupport.ExpectCounts(t, node.Stats(), baseline, stats.Counts{Hits: 1, Puts: 1})

	value, _, err := node.Find(ctx, key)
	if err != nil || value != "caught a pokemon!" {
		t.Errorf("Find() = (%v, %v), want the updated value", value, err)
	}
}

func TestSession_UpdateAbsentEntity(t *testing.T) {
	node, _ := singleNode(t)

	session := node.Begin()
	defer session.Rollback()

	err := session.Update(context.Background(), cache.NewKey("event", "missing"),
		func(current any) (any, error) { return current, nil })
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestSession_UpdateMutatorFailureStagesNothing(t *testing.T) {
	node, backing := singleNode(t)
	ctx := context.Background()

	key := cache.NewKey("event", "1")
	backing.Seed(cache.Record{Key: key, Value: "v"})

	session := node.Begin()
	mutateErr := errors.New("validation failed")
	if err := session.Update(ctx, key, func(any) (any, error) { return nil, mutateErr }); !errors.Is(err, mutateErr) {
		t.Fatalf("Update() error = %v, want the mutator error", err)
	}
	if err := session.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if got := backing.Persists(); got != 0 {
		t.Errorf("backing store saw %d persists, want 0", got)
	}
}

func TestSession_RemoveDeletesEverywhere(t *testing.T) {
	node, backing := singleNode(t)
	ctx := context.Background()

	key := cache.NewKey("event", "1")
	backing.Seed(cache.Record{Key: key, Value: "v"})
	if _, _, err := node.Find(ctx, key); err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	baseline := node.Stats().Snapshot()

	session := node.Begin()
	if err := session.Remove(ctx, key); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := session.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	// The read inside Remove counts the hit; the removal itself is not a
	// cache access.
	baseline = testsupport.ExpectCounts(t, node.Stats(), baseline, stats.Counts{Hits: 1})

	if got := backing.Deletes(); got != 1 {
		t.Errorf("backing store saw %d deletes, want 1", got)
	}
	if _, found, err := node.Find(ctx, key); err != nil || found {
		t.Errorf("Find() = (found=%v, err=%v) after Remove, want absent", found, err)
	}
	testsupport.ExpectCounts(t, node.Stats(), baseline, stats.Counts{Misses: 1})
}

func TestSession_RollbackDiscards(t *testing.T) {
	node, backing := singleNode(t)
	ctx := context.Background()

	key := cache.NewKey("event", "1")
	backing.Seed(cache.Record{Key: key, Value: "original"})
	if _, _, err := node.Find(ctx, key); err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	session := node.Begin()
	if err := session.Update(ctx, key, func(any) (any, error) { return "changed", nil }); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	session.Rollback()

	if got := backing.Persists(); got != 0 {
		t.Errorf("backing store saw %d persists after Rollback, want 0", got)
	}
	value, _, err := node.Find(ctx, key)
	if err != nil || value != "original" {
		t.Errorf("Find() = (%v, %v), want the original value", value, err)
	}
}

func TestSession_DoneSessionRejectsFurtherUse(t *testing.T) {
	node, _ := singleNode(t)
	ctx := context.Background()

	session := node.Begin()
	if err := session.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if err := session.Commit(ctx); !errors.Is(err, entitycache.ErrSessionDone) {
		t.Errorf("second Commit() error = %v, want ErrSessionDone", err)
	}
	if _, err := session.Save(ctx, cache.Record{Key: cache.NewKey("event", "1")}); !errors.Is(err, entitycache.ErrSessionDone) {
		t.Errorf("Save() after Commit error = %v, want ErrSessionDone", err)
	}
}

func TestSession_PersistFailureLeavesCacheUntouched(t *testing.T) {
	node, backing := singleNode(t)
	ctx := context.Background()

	backing.FailPersists(errors.New("disk full"))

	session := node.Begin()
	key := cache.NewKey("event", "1")
	if _, err := session.Save(ctx, cache.Record{Key: key, Value: "v"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	err := session.Commit(ctx)
	var storeErr *cache.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Commit() error = %v, want *cache.StoreError", err)
	}
	if storeErr.Op != "persist" {
		t.Errorf("StoreError.Op = %q, want %q", storeErr.Op, "persist")
	}

	// Neither the entry store nor the counters saw the failed save.
	snap := node.Stats().Snapshot()
	if snap.Puts != 0 {
		t.Errorf("puts = %d after failed Commit, want 0", snap.Puts)
	}
}

func TestSession_PublishFailureAbortsAndEvicts(t *testing.T) {
	busErr := errors.New("peer unreachable")
	backing := testsupport.NewMemoryStore()

	store, err := cacheinfra.NewSturdycStore(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSturdycStore() error = %v", err)
	}
	node, err := entitycache.NewNode(entitycache.NodeConfig{
		ID:     "node-1",
		Store:  store,
		Loader: backing,
		Bus:    &failingBus{err: busErr},
		Stats:  stats.New(),
	})
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}
	defer node.Close()

	ctx := context.Background()
	key := cache.NewKey("event", "1")

	session := node.Begin()
	if _, err := session.Save(ctx, cache.Record{Key: key, Value: "v"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	commitErr := session.Commit(ctx)
	var publishErr *cache.PublishError
	if !errors.As(commitErr, &publishErr) {
		t.Fatalf("Commit() error = %v, want *cache.PublishError", commitErr)
	}
	if !errors.Is(commitErr, busErr) {
		t.Errorf("Commit() error does not wrap the bus error: %v", commitErr)
	}

	// The backing store kept the write, but the local replica was reverted
	// to a safe miss.
	if got := backing.Persists(); got != 1 {
		t.Errorf("backing store saw %d persists, want 1", got)
	}
	baseline := node.Stats().Snapshot()
	if _, found, err := node.Find(ctx, key); err != nil || !found {
		t.Fatalf("Find() = (found=%v, err=%v), want a reload from the backing store", found, err)
	}
	testsupport.ExpectCounts(t, node.Stats(), baseline, stats.Counts{Misses: 1, Puts: 1})
}

func TestSession_EmptyCommit(t *testing.T) {
	node, backing := singleNode(t)

	if err := node.Begin().Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if got := backing.Persists() + backing.Deletes(); got != 0 {
		t.Errorf("backing store saw %d writes for an empty commit, want 0", got)
	}
}
