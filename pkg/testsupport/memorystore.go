// Package testsupport provides the shared fakes and harnesses the cache
// packages test with: an in-memory backing store with failure injection and
// a multi-node cluster harness wired over the in-process bus.
package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-entity-cache/cache"
)

// QueryHandler resolves a named query against the store's current records.
// records arrives sorted by key for deterministic result ordering.
type QueryHandler func(records []cache.Record, args ...any) []cache.Record

// MemoryStore is an in-memory cache.BackingStore. It is safe for
// concurrent use and supports failure injection for error-path tests.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[cache.Key]any
	queries map[string]QueryHandler

	failLoad    error
	failPersist error
	failDelete  error
	failQuery   error

	loads    atomic.Int64
	persists atomic.Int64
	deletes  atomic.Int64
	runs     atomic.Int64
}

// Interface assertion to ensure MemoryStore implements cache.BackingStore.
var _ cache.BackingStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory backing store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:    make(map[cache.Key]any),
		queries: make(map[string]QueryHandler),
	}
}

// Seed inserts records without going through Persist accounting.
func (m *MemoryStore) Seed(recs ...cache.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.data[rec.Key] = rec.Value
	}
}

// RegisterQuery installs the handler ExecuteQuery resolves name with.
func (m *MemoryStore) RegisterQuery(name string, h QueryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[name] = h
}

// AllInRegion is a QueryHandler selecting every record of one region.
func AllInRegion(region string) QueryHandler {
	return func(records []cache.Record, _ ...any) []cache.Record {
		var out []cache.Record
		for _, rec := range records {
			if rec.Key.EntityType == region {
				out = append(out, rec)
			}
		}
		return out
	}
}

// FailLoads makes subsequent Load calls fail with err; nil restores.
func (m *MemoryStore) FailLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = err
}

// FailPersists makes subsequent Persist calls fail with err; nil restores.
func (m *MemoryStore) FailPersists(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPersist = err
}

// FailDeletes makes subsequent Delete calls fail with err; nil restores.
func (m *MemoryStore) FailDeletes(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDelete = err
}

// FailQueries makes subsequent ExecuteQuery calls fail with err.
func (m *MemoryStore) FailQueries(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failQuery = err
}

// Load implements cache.BackingStore.Load.
func (m *MemoryStore) Load(_ context.Context, key cache.Key) (any, error) {
	m.loads.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failLoad != nil {
		return nil, m.failLoad
	}

	value, ok := m.data[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return value, nil
}

// Persist implements cache.BackingStore.Persist.
func (m *MemoryStore) Persist(_ context.Context, rec cache.Record) error {
	m.persists.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPersist != nil {
		return m.failPersist
	}

	m.data[rec.Key] = rec.Value
	return nil
}

// Delete implements cache.BackingStore.Delete.
func (m *MemoryStore) Delete(_ context.Context, key cache.Key) error {
	m.deletes.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}

	delete(m.data, key)
	return nil
}

// ExecuteQuery implements cache.BackingStore.ExecuteQuery.
func (m *MemoryStore) ExecuteQuery(_ context.Context, query string, args ...any) ([]cache.Record, error) {
	m.runs.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failQuery != nil {
		return nil, m.failQuery
	}

	handler, ok := m.queries[query]
	if !ok {
		return nil, fmt.Errorf("testsupport: unknown query %q", query)
	}

	records := make([]cache.Record, 0, len(m.data))
	for key, value := range m.data {
		records = append(records, cache.Record{Key: key, Value: value})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Key.EntityType != records[j].Key.EntityType {
			return records[i].Key.EntityType < records[j].Key.EntityType
		}
		return records[i].Key.ID < records[j].Key.ID
	})

	return handler(records, args...), nil
}

// Loads returns how many Load calls the store served.
func (m *MemoryStore) Loads() int64 { return m.loads.Load() }

// Persists returns how many Persist calls the store served.
func (m *MemoryStore) Persists() int64 { return m.persists.Load() }

// Deletes returns how many Delete calls the store served.
func (m *MemoryStore) Deletes() int64 { return m.deletes.Load() }

// QueryRuns returns how many ExecuteQuery calls the store served.
func (m *MemoryStore) QueryRuns() int64 { return m.runs.Load() }
