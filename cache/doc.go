// Package cache provides the core contracts and data model for the
// second-level entity cache: keys, entries, region clocks, the backing
// store contract, and query key serialization.
//
// # Overview
//
// A second-level cache holds individual entities shared across units of
// work, in front of a slower backing store. This package defines the
// storage-agnostic pieces that the coordinator (entitycache), the query
// result cache (querycache), and the cluster bus (cluster) build on:
//
//   - Key / Entry: the (entityType, id) identity and the cached value
//     with version and expiry metadata
//   - EntryStore: the per-node in-memory store contract
//   - BackingStore: the opaque loader/persister the cache fronts
//   - RegionClock: per-entity-type invalidation timestamps
//   - KeySerializer: stable cache keys for query results
//
// # Regions
//
// Entries are grouped by entity type into regions. Each region carries a
// "last modified" stamp in the RegionClock. Mutations bump the stamp; query
// results recorded before the bump become stale by comparison, with no
// per-query invalidation messages. Stamps only ever increase, and incoming
// cluster stamps merge with max, so delivery may be duplicated or reordered
// across senders without harm.
//
// # Key Serialization Strategy
//
// Query cache keys are built from the query string plus its parameters.
// The default serializer handles Go types deterministically:
//
//   - Basic types: direct string representation
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs for deterministic output
//   - Structs: exported fields with name:value pairs
//   - Complex types: JSON fallback with error handling
//
// Custom serializers can be supplied when an application needs stable keys
// across processes or backend-specific key formats.
//
// # Error Handling
//
// Backing store failures surface as *StoreError carrying the operation and
// the offending key; the entry store is left unmodified. ErrNotFound marks
// a key the backing store does not have, which is not a failure.
//
// # See Also
//
// For the per-node coordinator and unit-of-work semantics, see the
// entitycache package. For the concrete sturdyc-backed entry store, see
// internal/cacheinfra.
package cache
