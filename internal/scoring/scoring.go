// Package scoring implements the C7 arrangement-quality metrics (spec
// §4.7): pure functions over a container's current occupancy, cached per
// (container, arrangement) since recomputing them is O(items²) and callers
// frequently ask for the same arrangement repeatedly between mutations.
package scoring

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
)

// Metrics summarizes one container's current stowage quality.
type Metrics struct {
	SpaceUtilization     float64 // fraction of container volume occupied
	Accessibility        float64 // mean of 1/(1+blockers) over placed items
	Stability            float64 // fraction of items floor-resting or supported under geom.Supports' 50% footprint rule
	PriorityDistribution float64 // mean of (1-z/H)*priority/100 over placed items
}

// cacheKey identifies one (container, arrangement) pair. arrangementHash is
// a content hash of every placed item's id/box/orientation so any mutation
// invalidates the cache entry implicitly by changing the key.
type cacheKey struct {
	containerID     string
	arrangementHash uint64
}

// Cache memoizes Metrics per (container, arrangement).
type Cache struct {
	lru *lru.Cache[cacheKey, Metrics]
}

// NewCache builds a Cache holding up to size entries.
func NewCache(size int) *Cache {
	c, _ := lru.New[cacheKey, Metrics](size)
	return &Cache{lru: c}
}

// Compute returns the cached Metrics for container's current arrangement of
// items, computing and storing them on a miss.
func (c *Cache) Compute(container *domain.Container, items []*domain.Item) Metrics {
	key := cacheKey{containerID: container.ID, arrangementHash: arrangementHash(items)}
	if m, ok := c.lru.Get(key); ok {
		return m
	}
	m := compute(container, items)
	c.lru.Add(key, m)
	return m
}

// Invalidate drops every cached entry for containerID. Callers hold no
// reference to which arrangementHash is current, so this is a full scan of
// the LRU's keys rather than a single delete.
func (c *Cache) Invalidate(containerID string) {
	for _, k := range c.lru.Keys() {
		if k.containerID == containerID {
			c.lru.Remove(k)
		}
	}
}

func compute(container *domain.Container, items []*domain.Item) Metrics {
	placed := make([]*domain.Item, 0, len(items))
	for _, it := range items {
		if it.IsPlaced() && it.Placement.ContainerID == container.ID {
			placed = append(placed, it)
		}
	}
	if len(placed) == 0 {
		return Metrics{}
	}

	totalVol := container.Volume()
	var usedVol int
	var accessibilitySum float64
	var prioritySum float64
	stable := 0

	for _, it := range placed {
		box := it.EffectiveBox()
		usedVol += box.Dims.Volume()

		depthWeight := 1 - float64(box.Z)/float64(container.Dims.H)
		prioritySum += depthWeight * (float64(it.Priority) / 100)

		blockers := 0
		supported := box.Z == 0 // floor-resting counts as supported
		for _, other := range placed {
			if other.ID == it.ID {
				continue
			}
			otherBox := other.EffectiveBox()
			if geom.Blocks(otherBox, box) {
				blockers++
			}
			if geom.Supports(otherBox, box) {
				supported = true
			}
		}
		accessibilitySum += 1 / float64(1+blockers)
		if supported {
			stable++
		}
	}

	n := float64(len(placed))
	util := 0.0
	if totalVol > 0 {
		util = float64(usedVol) / float64(totalVol)
	}
	return Metrics{
		SpaceUtilization:     util,
		Accessibility:        accessibilitySum / n,
		Stability:            float64(stable) / n,
		PriorityDistribution: prioritySum / n,
	}
}

// arrangementHash hashes every placed item's id, box, and orientation so
// that any change to the arrangement changes the hash.
func arrangementHash(items []*domain.Item) uint64 {
	type entry struct {
		id  string
		box geom.Box
		o   geom.Orientation
	}
	var entries []entry
	for _, it := range items {
		if it.IsPlaced() {
			entries = append(entries, entry{id: it.ID, box: it.EffectiveBox(), o: it.Placement.Orientation})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	h := sha256.New()
	var buf [8]byte
	for _, e := range entries {
		h.Write([]byte(e.id))
		for _, v := range []int{e.box.X, e.box.Y, e.box.Z, e.box.W, e.box.D, e.box.H, int(e.o)} {
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
			h.Write(buf[:])
		}
	}
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}
