package entitycache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/cluster"
	"github.com/goliatone/go-entity-cache/querycache"
	"github.com/goliatone/go-entity-cache/stats"
)

// NodeConfig wires the collaborators a Node needs. Store, Loader, Bus and
// Stats are required.
type NodeConfig struct {
	// ID identifies this node on the invalidation bus. Defaults to a
	// random UUID.
	ID string

	// Store is the per-node entry store.
	Store cache.EntryStore

	// Loader is the backing store the cache sits in front of.
	Loader cache.BackingStore

	// Bus distributes invalidations to the rest of the cluster.
	Bus cluster.Bus

	// Stats receives hit/miss/put accounting.
	Stats *stats.Statistics

	// KeySerializer builds query cache keys. Defaults to the reflection
	// based serializer from the cache package.
	KeySerializer cache.KeySerializer

	// Logger receives commit diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Node is the per-node cache coordinator. All methods are safe for
// concurrent use; independent units of work may run in parallel.
type Node struct {
	id      string
	store   cache.EntryStore
	loader  cache.BackingStore
	bus     cluster.Bus
	stats   *stats.Statistics
	keys    cache.KeySerializer
	log     *slog.Logger
	regions *cache.RegionClock
	queries *querycache.Cache

	group       singleflight.Group
	version     atomic.Int64
	unsubscribe func()
}

// NewNode creates a coordinator and subscribes it to the bus.
func NewNode(cfg NodeConfig) (*Node, error) {
	if cfg.Store == nil {
		return nil, &cache.ConfigError{Field: "Store", Message: "is required"}
	}
	if cfg.Loader == nil {
		return nil, &cache.ConfigError{Field: "Loader", Message: "is required"}
	}
	if cfg.Bus == nil {
		return nil, &cache.ConfigError{Field: "Bus", Message: "is required"}
	}
	if cfg.Stats == nil {
		return nil, &cache.ConfigError{Field: "Stats", Message: "is required"}
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.KeySerializer == nil {
		cfg.KeySerializer = cache.NewDefaultKeySerializer()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	n := &Node{
		id:      cfg.ID,
		store:   cfg.Store,
		loader:  cfg.Loader,
		bus:     cfg.Bus,
		stats:   cfg.Stats,
		keys:    cfg.KeySerializer,
		log:     cfg.Logger.With("node", cfg.ID),
		regions: cache.NewRegionClock(),
		queries: querycache.New(),
	}
	n.unsubscribe = cfg.Bus.Subscribe(n.handleMessage)

	return n, nil
}

// ID returns the node's bus identity.
func (n *Node) ID() string { return n.id }

// Stats returns the statistics aggregator the node accounts on.
func (n *Node) Stats() *stats.Statistics { return n.stats }

// Regions returns the node's region clock.
func (n *Node) Regions() *cache.RegionClock { return n.regions }

// Close cancels the bus subscription. The node must not be used after.
func (n *Node) Close() {
	if n.unsubscribe != nil {
		n.unsubscribe()
		n.unsubscribe = nil
	}
}

// handleMessage applies an incoming cluster invalidation. The originating
// node already applied its own state synchronously, so self-delivered
// messages are skipped.
func (n *Node) handleMessage(msg cluster.Message) {
	if msg.Origin == n.id {
		return
	}

	switch msg.Kind {
	case cluster.EvictKey, cluster.RemoveKey:
		n.store.Evict(msg.Key)
	case cluster.BumpRegion:
		n.regions.Merge(msg.Region, msg.Stamp)
	}
}

// Find returns the value for a key, serving from the local entry store
// when present and unexpired, otherwise faulting it in from the backing
// store. The second return is false when the entity does not exist.
func (n *Node) Find(ctx context.Context, key cache.Key) (any, bool, error) {
	if entry, ok := n.store.Get(key); ok {
		n.stats.RecordHit(ctx)
		return entry.Value, true, nil
	}
	n.stats.RecordMiss(ctx)

	// Concurrent misses for the same key share one backing load. Every
	// caller counted its miss above; the winner counts the single put.
	value, err, _ := n.group.Do(key.String(), func() (any, error) {
		value, err := n.loader.Load(ctx, key)
		if err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				return nil, err
			}
			return nil, &cache.StoreError{Op: "load", Key: key, Err: err}
		}
		n.putEntry(ctx, key, value)
		return value, nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Evict removes the local entry only. It is an administrative single-node
// action: no cluster invalidation is published and no counter moves.
func (n *Node) Evict(key cache.Key) {
	n.store.Evict(key)
}

// EvictRegion removes every local entry of an entity type. Like Evict it
// is local-only and uncounted.
func (n *Node) EvictRegion(entityType string) {
	n.store.EvictRegion(entityType)
}

// Query runs a cacheable query. regions lists the entity types the query
// reads; any mutation of those types invalidates the cached result by
// region stamp comparison. The result is the ordered key set; individual
// values are fetched with Find.
func (n *Node) Query(ctx context.Context, query string, regions []string, args ...any) ([]cache.Key, error) {
	queryKey := n.keys.SerializeKey(query, args...)

	if entry, ok := n.queries.Lookup(queryKey, n.regions); ok {
		n.stats.RecordQueryHit(ctx)
		// A query hit still touches each constituent entity's cache state.
		for _, key := range entry.ResultKeys {
			if _, ok := n.store.Get(key); ok {
				n.stats.RecordHit(ctx)
			}
		}
		return entry.ResultKeys, nil
	}
	n.stats.RecordQueryMiss(ctx)

	// Snapshot the region stamps before running the query. A mutation that
	// commits while the query executes bumps past this snapshot, so the
	// entry stored below is already stale on its next lookup.
	stamps := n.regions.Snapshot(regions)

	records, err := n.loader.ExecuteQuery(ctx, query, args...)
	if err != nil {
		return nil, &cache.StoreError{Op: "query", Query: query, Err: err}
	}
	resultKeys := make([]cache.Key, 0, len(records))
	for _, rec := range records {
		resultKeys = append(resultKeys, rec.Key)
		if _, ok := n.store.Get(rec.Key); !ok {
			n.putEntry(ctx, rec.Key, rec.Value)
		}
	}

	n.queries.Store(querycache.Entry{
		QueryKey:         queryKey,
		ResultKeys:       resultKeys,
		Regions:          regions,
		StampsAtCreation: stamps,
	})
	n.stats.RecordQueryPut(ctx)

	return resultKeys, nil
}

// Begin opens a unit of work on this node.
func (n *Node) Begin() *Session {
	return &Session{node: n}
}

// putEntry stores a value and counts the put.
func (n *Node) putEntry(ctx context.Context, key cache.Key, value any) {
	n.store.Put(cache.Entry{
		Key:     key,
		Value:   value,
		Version: n.nextVersion(),
	})
	n.stats.RecordPut(ctx)
}

// nextVersion returns a node-local monotonic entry version.
func (n *Node) nextVersion() int64 {
	return n.version.Add(1)
}
