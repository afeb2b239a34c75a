package entitycache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/cluster"
)

// ErrSessionDone marks a session that already committed or rolled back.
var ErrSessionDone = errors.New("entitycache: session already completed")

type stageKind int

const (
	stageSave stageKind = iota
	stageUpdate
	stageRemove
)

// stagedOp is one deferred mutation. rec is set for saves and updates, key
// for removes.
type stagedOp struct {
	kind stageKind
	rec  cache.Record
	key  cache.Key
}

// Session is a transaction-scoped unit of work. Mutations are staged and
// only reach the backing store, the entry store, the region clock and the
// cluster on Commit; Rollback discards them. Reads inside the session go
// straight through the node and count immediately.
//
// A Session is not safe for concurrent use; run concurrent units of work
// as separate sessions.
type Session struct {
	node *Node

	mu     sync.Mutex
	staged []stagedOp
	done   bool
}

// Save stages a new entity. The key's ID is assigned when empty. The
// backing-store persist and the counted cache put both happen at Commit.
func (s *Session) Save(_ context.Context, rec cache.Record) (cache.Key, error) {
	if rec.Key.EntityType == "" {
		return cache.Key{}, &cache.ConfigError{Field: "Key.EntityType", Message: "is required"}
	}
	if rec.Key.ID == "" {
		rec.Key.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return cache.Key{}, ErrSessionDone
	}

	s.staged = append(s.staged, stagedOp{kind: stageSave, rec: rec})
	return rec.Key, nil
}

// Update loads the current value with find semantics, applies the mutator
// and stages the result. The write reaches the backing store, the cache and
// the cluster at Commit.
func (s *Session) Update(ctx context.Context, key cache.Key, mutate func(current any) (any, error)) error {
	current, found, err := s.node.Find(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("entitycache: update %s: %w", key, cache.ErrNotFound)
	}

	next, err := mutate(current)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrSessionDone
	}

	s.staged = append(s.staged, stagedOp{kind: stageUpdate, rec: cache.Record{Key: key, Value: next}})
	return nil
}

// Remove loads the current value with find semantics and stages its
// deletion. The backing-store delete, the local evict and the cluster-wide
// removal all happen at Commit.
func (s *Session) Remove(ctx context.Context, key cache.Key) error {
	_, found, err := s.node.Find(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("entitycache: remove %s: %w", key, cache.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrSessionDone
	}

	s.staged = append(s.staged, stagedOp{kind: stageRemove, key: key})
	return nil
}

// Commit flushes the staged mutations: backing-store writes first, then
// local cache state, then the invalidation batch. A backing-store failure
// aborts before any cache state changed. A publish failure evicts the
// locally applied keys again and returns *cache.PublishError; the unit of
// work is considered failed because cluster consistency cannot be
// guaranteed.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrSessionDone
	}
	s.done = true

	if len(s.staged) == 0 {
		return nil
	}

	n := s.node

	// Phase 1: backing store. Nothing cache-visible happened yet, so a
	// failure here leaves the entry store unmodified.
	for _, op := range s.staged {
		switch op.kind {
		case stageSave, stageUpdate:
			if err := n.loader.Persist(ctx, op.rec); err != nil {
				return &cache.StoreError{Op: "persist", Key: op.rec.Key, Err: err}
			}
		case stageRemove:
			if err := n.loader.Delete(ctx, op.key); err != nil {
				return &cache.StoreError{Op: "delete", Key: op.key, Err: err}
			}
		}
	}

	// Phase 2: local cache state, synchronously on the originating node.
	var (
		applied []cache.Key
		msgs    []cluster.Message
		bumped  = make(map[string]int64)
	)
	for _, op := range s.staged {
		switch op.kind {
		case stageSave:
			n.putEntry(ctx, op.rec.Key, op.rec.Value)
			applied = append(applied, op.rec.Key)
			bumped[op.rec.Key.EntityType] = n.regions.Bump(op.rec.Key.EntityType)

		case stageUpdate:
			n.putEntry(ctx, op.rec.Key, op.rec.Value)
			applied = append(applied, op.rec.Key)
			bumped[op.rec.Key.EntityType] = n.regions.Bump(op.rec.Key.EntityType)
			msgs = append(msgs, cluster.Message{
				Origin: n.id, Kind: cluster.EvictKey, Key: op.rec.Key,
			})

		case stageRemove:
			n.store.Evict(op.key)
			bumped[op.key.EntityType] = n.regions.Bump(op.key.EntityType)
			msgs = append(msgs, cluster.Message{
				Origin: n.id, Kind: cluster.RemoveKey, Key: op.key,
			})
		}
	}
	for region, stamp := range bumped {
		msgs = append(msgs, cluster.Message{
			Origin: n.id, Kind: cluster.BumpRegion, Region: region, Stamp: stamp,
		})
	}

	// Phase 3: cluster invalidation.
	if err := n.bus.Publish(ctx, msgs...); err != nil {
		// The backing store already holds the new state, so revert the
		// local replicas to a safe miss rather than serving values the
		// rest of the cluster was never told about. Region bumps stand;
		// they only ever invalidate.
		for _, key := range applied {
			n.store.Evict(key)
		}
		n.log.Error("invalidation publish failed, unit of work aborted",
			"keys", len(applied), "error", err)
		return &cache.PublishError{Keys: applied, Err: err}
	}

	return nil
}

// Rollback discards the staged mutations. The entry store, the region
// clock and the cluster never see them.
func (s *Session) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
	s.done = true
}
