package cache

import "fmt"

// StoreError wraps a backing store failure with the operation and the key
// or query that triggered it. The coordinator surfaces it to the caller and
// leaves the entry store unmodified.
type StoreError struct {
	Op    string // "load", "persist", "delete" or "query"
	Key   Key    // zero for query failures
	Query string // empty for key operations
	Err   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("cache: backing store %s %q failed: %v", e.Op, e.Query, e.Err)
	}
	return fmt.Sprintf("cache: backing store %s %s failed: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying store-specific error.
func (e *StoreError) Unwrap() error { return e.Err }

// PublishError reports a failed invalidation publish. It is fatal to the
// in-flight unit of work: cluster consistency cannot be guaranteed, so the
// mutation must abort rather than silently continue.
type PublishError struct {
	Keys []Key
	Err  error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	return fmt.Sprintf("cache: invalidation publish failed for %d key(s): %v", len(e.Keys), e.Err)
}

// Unwrap returns the underlying bus error.
func (e *PublishError) Unwrap() error { return e.Err }
