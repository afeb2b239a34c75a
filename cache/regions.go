package cache

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// RegionClock tracks the "last modified" stamp of every cache region.
// Stamps never decrease: local bumps advance past both the previous stamp
// and the wall clock, and stamps arriving from other nodes merge with max,
// so duplicate or cross-sender-reordered deliveries are harmless.
//
// Stamp comparison is what invalidates cached query results; there is no
// per-query invalidation message.
type RegionClock struct {
	stamps *xsync.MapOf[string, int64]
}

// NewRegionClock creates an empty region clock. Unknown regions stamp as 0.
func NewRegionClock() *RegionClock {
	return &RegionClock{stamps: xsync.NewMapOf[string, int64]()}
}

// Stamp returns the current stamp for a region, 0 if it was never bumped.
func (c *RegionClock) Stamp(region string) int64 {
	stamp, _ := c.stamps.Load(region)
	return stamp
}

// Bump advances a region's stamp for a local mutation and returns the new
// stamp. The new stamp is strictly greater than the previous one.
func (c *RegionClock) Bump(region string) int64 {
	stamp, _ := c.stamps.Compute(region, func(old int64, _ bool) (int64, bool) {
		next := time.Now().UnixNano()
		if next <= old {
			next = old + 1
		}
		return next, false
	})
	return stamp
}

// Merge applies a stamp received from another node by taking the max of the
// local and incoming values. Merge is idempotent and commutative.
func (c *RegionClock) Merge(region string, incoming int64) int64 {
	stamp, _ := c.stamps.Compute(region, func(old int64, _ bool) (int64, bool) {
		if incoming > old {
			return incoming, false
		}
		return old, false
	})
	return stamp
}

// Snapshot captures the current stamps for the given regions. Query cache
// entries record this at creation time to compare against later.
func (c *RegionClock) Snapshot(regions []string) map[string]int64 {
	out := make(map[string]int64, len(regions))
	for _, r := range regions {
		out[r] = c.Stamp(r)
	}
	return out
}
