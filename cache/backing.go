package cache

import (
	"context"
	"errors"
)

// ErrNotFound marks a key the backing store has no value for. It is not a
// store failure: the coordinator treats it as a clean miss and does not
// populate the cache.
var ErrNotFound = errors.New("cache: entity not found")

// BackingStore is the source of truth the second-level cache sits in front
// of. The cache treats it as an opaque key-value loader; query parsing,
// mapping and transaction semantics live behind this interface.
//
// Contract:
//   - Calls are synchronous and may block on I/O.
//   - Load returns ErrNotFound (possibly wrapped) for absent keys.
//   - Failures carry a store-specific error; the coordinator does not
//     retry, it propagates the failure and leaves the cache unmodified.
type BackingStore interface {
	// Load fetches the value for a key.
	Load(ctx context.Context, key Key) (any, error)

	// Persist writes a record, creating or overwriting it.
	Persist(ctx context.Context, rec Record) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// ExecuteQuery runs a named query and returns the matching records in a
	// stable order.
	ExecuteQuery(ctx context.Context, query string, args ...any) ([]Record, error)
}
