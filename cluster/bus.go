// Package cluster provides the invalidation bus that keeps second-level
// caches coherent across nodes. A mutating node applies its own state
// synchronously, then publishes eviction/removal/region-bump messages; every
// other node applies them to its local entry store and region clock.
//
// Delivery is at-least-once and ordered per sender; there is no ordering
// guarantee across senders. Receivers stay correct under duplicates and
// cross-sender reordering because evictions are idempotent and region bumps
// merge with max.
package cluster

import (
	"context"

	"github.com/goliatone/go-entity-cache/cache"
)

// MessageKind discriminates invalidation message variants.
type MessageKind uint8

const (
	// EvictKey tells remote nodes to drop their replica of a key after an
	// update; the next read faults it in from the backing store.
	EvictKey MessageKind = iota + 1

	// RemoveKey tells remote nodes the entity was deleted from the backing
	// store; local replicas are dropped the same way, the kind exists so
	// receivers can distinguish deletion from update in logs and hooks.
	RemoveKey

	// BumpRegion carries a region's new invalidation stamp. Receivers merge
	// it into their region clock with max.
	BumpRegion
)

// String returns the kind name for logs.
func (k MessageKind) String() string {
	switch k {
	case EvictKey:
		return "evict-key"
	case RemoveKey:
		return "remove-key"
	case BumpRegion:
		return "bump-region"
	default:
		return "unknown"
	}
}

// Message is a single invalidation event. Key is set for EvictKey and
// RemoveKey; Region and Stamp are set for BumpRegion.
type Message struct {
	Origin string      `msgpack:"o"`
	Kind   MessageKind `msgpack:"k"`
	Key    cache.Key   `msgpack:"key,omitempty"`
	Region string      `msgpack:"r,omitempty"`
	Stamp  int64       `msgpack:"s,omitempty"`
}

// Handler consumes delivered messages. Handlers run on the bus delivery
// path and must not block.
type Handler func(Message)

// Bus is the pluggable transport for invalidation messages.
//
// Contract:
//   - Publish delivers the messages, in order, to all other known nodes.
//     A Publish error means delivery could not be guaranteed; callers must
//     treat the in-flight mutation as failed.
//   - Subscribe registers a handler for incoming messages and returns a
//     cancel function. Handlers also see the node's own published messages
//     on some implementations; receivers filter by Origin.
type Bus interface {
	Publish(ctx context.Context, msgs ...Message) error
	Subscribe(h Handler) (cancel func())
}

// Membership reports cluster size. It exists for external verification
// only; the cache logic never consults it.
type Membership interface {
	MemberCount() int
}
