package cache

import "fmt"

// Key identifies a cached entity by its region (entity type) and identifier.
// Keys compare by value; two keys naming the same entity are equal.
type Key struct {
	EntityType string
	ID         string
}

// NewKey builds a Key for the given entity type and identifier.
func NewKey(entityType, id string) Key {
	return Key{EntityType: entityType, ID: id}
}

// String renders the key in the region::id form used by entry store backends.
func (k Key) String() string {
	return k.EntityType + KeySeparator + k.ID
}

// IsZero reports whether the key is the zero value.
func (k Key) IsZero() bool {
	return k.EntityType == "" && k.ID == ""
}

// Record pairs a key with its value when moving entities across the
// backing store boundary.
type Record struct {
	Key   Key
	Value any
}

// GoString implements fmt.GoStringer for readable test failures.
func (k Key) GoString() string {
	return fmt.Sprintf("cache.Key{%s, %s}", k.EntityType, k.ID)
}
