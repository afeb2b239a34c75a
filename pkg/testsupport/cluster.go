package testsupport

import (
	"fmt"
	"testing"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/cluster"
	"github.com/goliatone/go-entity-cache/entitycache"
	"github.com/goliatone/go-entity-cache/internal/cacheinfra"
	"github.com/goliatone/go-entity-cache/stats"
)

// Cluster bundles coordinator nodes that share one backing store and one
// in-process invalidation bus, the single-process rendition of a clustered
// second-level cache. Each node carries its own entry store and its own
// statistics, matching how per-node counters are verified.
type Cluster struct {
	Bus     *cluster.LocalBus
	Backing *MemoryStore
	Nodes   []*entitycache.Node
}

// NewCluster builds a cluster of size nodes with the given entry store
// configuration; nodes are closed with the test.
func NewCluster(t *testing.T, size int, cfg cache.Config) *Cluster {
	t.Helper()

	c := &Cluster{
		Bus:     cluster.NewLocalBus(),
		Backing: NewMemoryStore(),
	}

	for i := 0; i < size; i++ {
		store, err := cacheinfra.NewSturdycStore(cfg)
		if err != nil {
			t.Fatalf("failed to build entry store: %v", err)
		}

		node, err := entitycache.NewNode(entitycache.NodeConfig{
			ID:     fmt.Sprintf("node-%d", i+1),
			Store:  store,
			Loader: c.Backing,
			Bus:    c.Bus,
			Stats:  stats.New(),
		})
		if err != nil {
			t.Fatalf("failed to build node: %v", err)
		}
		t.Cleanup(node.Close)

		c.Nodes = append(c.Nodes, node)
	}

	return c
}

// ExpectCounts fails the test when the counter movement since baseline
// differs from want, and returns the fresh snapshot for use as the next
// baseline.
func ExpectCounts(t *testing.T, s *stats.Statistics, baseline stats.Counts, want stats.Counts) stats.Counts {
	t.Helper()

	if err := s.Expect(baseline, want); err != nil {
		t.Fatal(err)
	}
	return s.Snapshot()
}
