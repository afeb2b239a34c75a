// Package stats exposes the cumulative hit/miss/put counters of the entity
// cache and the query result cache. A Statistics instance is injected per
// node rather than held in a package global so that independent caches, and
// independent tests, account separately.
package stats

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counts is a point-in-time snapshot of the cache counters. Counters are
// process-lifetime monotonic; deltas between snapshots are what callers
// compare against expectations.
type Counts struct {
	Hits        int64
	Misses      int64
	Puts        int64
	QueryHits   int64
	QueryMisses int64
	QueryPuts   int64
}

// Delta returns the counter movement since a baseline snapshot.
func (c Counts) Delta(baseline Counts) Counts {
	return Counts{
		Hits:        c.Hits - baseline.Hits,
		Misses:      c.Misses - baseline.Misses,
		Puts:        c.Puts - baseline.Puts,
		QueryHits:   c.QueryHits - baseline.QueryHits,
		QueryMisses: c.QueryMisses - baseline.QueryMisses,
		QueryPuts:   c.QueryPuts - baseline.QueryPuts,
	}
}

// String renders the counts in the compact bracket form used by the demo
// and test logs.
func (c Counts) String() string {
	return fmt.Sprintf(
		"[hits=%d, misses=%d, puts=%d, queryHits=%d, queryMisses=%d, queryPuts=%d]",
		c.Hits, c.Misses, c.Puts, c.QueryHits, c.QueryMisses, c.QueryPuts)
}

// Statistics aggregates atomic cache counters. All methods are safe for
// concurrent use. When built with NewWithMeter, every increment is mirrored
// to OpenTelemetry counters as well.
type Statistics struct {
	hits        atomic.Int64
	misses      atomic.Int64
	puts        atomic.Int64
	queryHits   atomic.Int64
	queryMisses atomic.Int64
	queryPuts   atomic.Int64

	otel *otelCounters
}

// New creates a Statistics instance with all counters at zero.
func New() *Statistics {
	return &Statistics{}
}

// otelCounters mirrors the atomic counters to an OpenTelemetry meter.
type otelCounters struct {
	attrs       metric.MeasurementOption
	hits        metric.Int64Counter
	misses      metric.Int64Counter
	puts        metric.Int64Counter
	queryHits   metric.Int64Counter
	queryMisses metric.Int64Counter
	queryPuts   metric.Int64Counter
}

// NewWithMeter creates a Statistics instance that mirrors every increment
// to OpenTelemetry counters on the given meter. cacheName distinguishes
// multiple caches (or nodes) reporting through the same meter.
func NewWithMeter(meter metric.Meter, cacheName string) (*Statistics, error) {
	oc := &otelCounters{
		attrs: metric.WithAttributes(attribute.String("cache.name", cacheName)),
	}

	counters := []struct {
		name string
		desc string
		dst  *metric.Int64Counter
	}{
		{"cache.entity.hits", "Entity cache hits", &oc.hits},
		{"cache.entity.misses", "Entity cache misses", &oc.misses},
		{"cache.entity.puts", "Entity cache puts", &oc.puts},
		{"cache.query.hits", "Query cache hits", &oc.queryHits},
		{"cache.query.misses", "Query cache misses", &oc.queryMisses},
		{"cache.query.puts", "Query cache puts", &oc.queryPuts},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return &Statistics{otel: oc}, nil
}

// RecordHit counts an entity cache hit.
func (s *Statistics) RecordHit(ctx context.Context) {
	s.hits.Add(1)
	if s.otel != nil {
		s.otel.hits.Add(ctx, 1, s.otel.attrs)
	}
}

// RecordMiss counts an entity cache miss.
func (s *Statistics) RecordMiss(ctx context.Context) {
	s.misses.Add(1)
	if s.otel != nil {
		s.otel.misses.Add(ctx, 1, s.otel.attrs)
	}
}

// RecordPut counts an entity cache put.
func (s *Statistics) RecordPut(ctx context.Context) {
	s.puts.Add(1)
	if s.otel != nil {
		s.otel.puts.Add(ctx, 1, s.otel.attrs)
	}
}

// RecordQueryHit counts a query cache hit.
func (s *Statistics) RecordQueryHit(ctx context.Context) {
	s.queryHits.Add(1)
	if s.otel != nil {
		s.otel.queryHits.Add(ctx, 1, s.otel.attrs)
	}
}

// RecordQueryMiss counts a query cache miss.
func (s *Statistics) RecordQueryMiss(ctx context.Context) {
	s.queryMisses.Add(1)
	if s.otel != nil {
		s.otel.queryMisses.Add(ctx, 1, s.otel.attrs)
	}
}

// RecordQueryPut counts a query cache put.
func (s *Statistics) RecordQueryPut(ctx context.Context) {
	s.queryPuts.Add(1)
	if s.otel != nil {
		s.otel.queryPuts.Add(ctx, 1, s.otel.attrs)
	}
}

// Snapshot returns the current counter values.
func (s *Statistics) Snapshot() Counts {
	return Counts{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Puts:        s.puts.Load(),
		QueryHits:   s.queryHits.Load(),
		QueryMisses: s.queryMisses.Load(),
		QueryPuts:   s.queryPuts.Load(),
	}
}

// Expect compares the movement since baseline against an expected delta and
// returns a descriptive error on mismatch. It exists for verification; the
// cache logic itself never reads counters.
func (s *Statistics) Expect(baseline Counts, want Counts) error {
	got := s.Snapshot().Delta(baseline)
	if got != want {
		return fmt.Errorf("stats: counter delta mismatch: got %s, want %s", got, want)
	}
	return nil
}
