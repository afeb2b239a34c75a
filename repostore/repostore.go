// Package repostore adapts a go-repository-bun repository into the
// cache.BackingStore contract, so a second-level cache node can sit in
// front of an existing bun-backed repository without knowing anything
// about SQL or mapping. One Store covers one entity type / cache region.
package repostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-entity-cache/cache"
)

// QueryFunc builds the select criteria for a named query from its
// parameters.
type QueryFunc func(args ...any) []repository.SelectCriteria

// Config wires a repository into a backing store.
type Config[T any] struct {
	// Repo is the underlying repository. Required.
	Repo repository.Repository[T]

	// ID extracts the identifier used as the cache key ID. Required.
	ID func(record T) string

	// Region names the cache region. Defaults to the snake_cased entity
	// type name.
	Region string

	// Queries maps query names to criteria builders for ExecuteQuery.
	Queries map[string]QueryFunc

	// IsNotFound recognizes the repository's "no such row" error.
	// Defaults to checking sql.ErrNoRows.
	IsNotFound func(error) bool
}

// Store implements cache.BackingStore over a repository.Repository.
type Store[T any] struct {
	cfg    Config[T]
	region string
}

// New creates a backing store adapter for one entity type.
func New[T any](cfg Config[T]) (*Store[T], error) {
	if cfg.Repo == nil {
		return nil, &cache.ConfigError{Field: "Repo", Message: "is required"}
	}
	if cfg.ID == nil {
		return nil, &cache.ConfigError{Field: "ID", Message: "is required"}
	}
	if cfg.Region == "" {
		cfg.Region = RegionForType[T]()
	}
	if cfg.IsNotFound == nil {
		cfg.IsNotFound = func(err error) bool { return errors.Is(err, sql.ErrNoRows) }
	}

	return &Store[T]{cfg: cfg, region: cfg.Region}, nil
}

// Region returns the cache region this store serves.
func (s *Store[T]) Region() string { return s.region }

// Load implements cache.BackingStore.Load via GetByID.
func (s *Store[T]) Load(ctx context.Context, key cache.Key) (any, error) {
	record, err := s.cfg.Repo.GetByID(ctx, key.ID)
	if err != nil {
		if s.cfg.IsNotFound(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// Persist implements cache.BackingStore.Persist via Upsert, covering both
// the save and the update path of a unit of work.
func (s *Store[T]) Persist(ctx context.Context, rec cache.Record) error {
	record, ok := rec.Value.(T)
	if !ok {
		return fmt.Errorf("repostore: record for %s has type %T, want %s",
			rec.Key, rec.Value, RegionForType[T]())
	}

	_, err := s.cfg.Repo.Upsert(ctx, record)
	return err
}

// Delete implements cache.BackingStore.Delete. Deleting an absent row is
// not an error.
func (s *Store[T]) Delete(ctx context.Context, key cache.Key) error {
	err := s.cfg.Repo.DeleteWhere(ctx, deleteByID(key.ID))
	if err != nil && s.cfg.IsNotFound(err) {
		return nil
	}
	return err
}

// ExecuteQuery implements cache.BackingStore.ExecuteQuery by resolving the
// named query to its registered criteria builder and listing through the
// repository.
func (s *Store[T]) ExecuteQuery(ctx context.Context, query string, args ...any) ([]cache.Record, error) {
	build, ok := s.cfg.Queries[query]
	if !ok {
		return nil, fmt.Errorf("repostore: unknown query %q", query)
	}

	records, _, err := s.cfg.Repo.List(ctx, build(args...)...)
	if err != nil {
		return nil, err
	}

	out := make([]cache.Record, 0, len(records))
	for _, record := range records {
		out = append(out, cache.Record{
			Key:   cache.NewKey(s.region, s.cfg.ID(record)),
			Value: record,
		})
	}
	return out, nil
}

// deleteByID builds the delete criteria for a primary key.
func deleteByID(id string) repository.DeleteCriteria {
	return func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("id = ?", id)
	}
}

// Interface assertion to ensure Store implements cache.BackingStore.
var _ cache.BackingStore = (*Store[struct{}])(nil)
