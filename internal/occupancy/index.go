// Package occupancy implements the per-container spatial index (spec §4.2):
// answering "is region free?", "what overlaps region R?", and first-fit
// scans in canonical (z,y,x) order.
package occupancy

import "github.com/stationcargo/cargostow/internal/geom"

// bitmapCeiling is the per-axis bound at or below which the dense roaring-bitmap
// representation is used; containers exceeding it fall back to the
// interval-tree representation (spec §4.2: "≤ 250x250x250").
const bitmapCeiling = 250

// Placed pairs an item id with its currently occupied box.
type Placed struct {
	ItemID string
	Box    geom.Box
}

// Index answers spatial queries for a single container's current occupancy.
type Index interface {
	// IsFree reports whether box b is entirely unoccupied and within bounds.
	IsFree(b geom.Box) bool
	// FirstFit scans candidate origins in (z,y,x) lexicographic order and
	// returns the first free slot that fits dims d, or ok=false if none fits.
	FirstFit(d geom.Dims) (b geom.Box, ok bool)
	// Overlappers returns the ids of items whose box overlaps b.
	Overlappers(b geom.Box) []string
	// Insert records itemID as occupying box b. Caller must have already
	// verified containment and non-overlap.
	Insert(itemID string, b geom.Box)
	// Remove clears any occupancy recorded for itemID.
	Remove(itemID string)
	// Iterate returns all current placements, sorted by item id.
	Iterate() []Placed
}

// New builds the appropriate Index implementation for a container of the
// given interior dimensions (spec §4.2: dense bitmap for typical sizes,
// interval-tree fallback above the threshold; identical contract either way).
func New(dims geom.Dims) Index {
	if dims.W <= bitmapCeiling && dims.D <= bitmapCeiling && dims.H <= bitmapCeiling {
		return newBitmapIndex(dims)
	}
	return newIntervalIndex(dims)
}
