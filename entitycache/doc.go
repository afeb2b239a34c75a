// Package entitycache provides the per-node cache coordinator: the facade
// an application goes through for find/save/update/remove/query operations
// against a second-level entity cache backed by an opaque store.
//
// # Overview
//
// A Node owns one entry store, one region clock, one query result cache and
// a subscription on the cluster invalidation bus. Reads (Find, Query) serve
// from the local store when possible and fault misses in from the backing
// store, counting hits, misses and puts on the injected Statistics.
//
// Mutations run inside a Session, the unit of work:
//
//	session := node.Begin()
//	if err := session.Update(ctx, key, mutate); err != nil {
//		session.Rollback()
//		return err
//	}
//	if err := session.Commit(ctx); err != nil {
//		return err
//	}
//
// # Deferred cache mutation
//
// Save, Update and Remove stage their backing-store writes and cache
// effects on the session. Commit persists the staged writes, applies the
// cache mutations, bumps the touched region clocks and publishes the
// invalidation batch; Rollback discards everything. Cache puts from staged
// writes are therefore counted at commit time only, and an aborted unit of
// work never pollutes the cache.
//
// # Cluster coherence
//
// The committing node updates its own state synchronously, then publishes.
// Remote nodes apply EvictKey/RemoveKey to their entry stores and merge
// BumpRegion stamps with max, so delivery may be duplicated or reordered
// across senders. If the publish itself fails, Commit evicts the locally
// applied keys again and returns a *cache.PublishError: a mutation is never
// allowed to succeed with an unannounced invalidation.
//
// # Counting rules
//
//   - Find: present and unexpired counts one hit; otherwise one miss, and
//     a successful backing load adds one put. A backing "not found" adds
//     nothing beyond the miss.
//   - Manual Evict: no counter movement at all.
//   - Query: a valid cached result counts one query hit plus one entity hit
//     per result key still present locally; otherwise one query miss, one
//     query put, and one entity put per result entity not already cached.
//
// Concurrent misses for the same key collapse onto a single backing-store
// load via singleflight; each caller still counts its own miss, the put is
// counted once.
package entitycache
