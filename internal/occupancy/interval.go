package occupancy

import (
	"sort"

	"github.com/google/btree"
	"github.com/stationcargo/cargostow/internal/geom"
)

// entry is a btree element ordered by (y, x, id) so range queries can prune
// candidates by depth before a precise geom.Overlap check.
type entry struct {
	y, x   int
	itemID string
	box    geom.Box
}

func entryLess(a, b entry) bool {
	if a.y != b.y {
		return a.y < b.y
	}
	if a.x != b.x {
		return a.x < b.x
	}
	return a.itemID < b.itemID
}

// intervalIndex is the large-container fallback (spec §4.2): a
// google/btree-ordered index that prunes by depth range instead of
// maintaining a per-cell bitmap. Same Index contract as bitmapIndex.
type intervalIndex struct {
	dims  geom.Dims
	tree  *btree.BTreeG[entry]
	boxes map[string]geom.Box
}

func newIntervalIndex(dims geom.Dims) *intervalIndex {
	return &intervalIndex{
		dims:  dims,
		tree:  btree.NewG(32, entryLess),
		boxes: make(map[string]geom.Box),
	}
}

func (idx *intervalIndex) Overlappers(b geom.Box) []string {
	var ids []string
	lo := entry{y: -1 << 31, x: -1 << 31}
	hi := entry{y: b.Y + b.D, x: 1 << 31}
	idx.tree.AscendRange(lo, hi, func(e entry) bool {
		if geom.Overlap(b, e.box) {
			ids = append(ids, e.itemID)
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

func (idx *intervalIndex) IsFree(b geom.Box) bool {
	if !geom.Contains(idx.dims, b) {
		return false
	}
	return len(idx.Overlappers(b)) == 0
}

func (idx *intervalIndex) FirstFit(d geom.Dims) (geom.Box, bool) {
	if d.W > idx.dims.W || d.D > idx.dims.D || d.H > idx.dims.H {
		return geom.Box{}, false
	}
	for z := 0; z <= idx.dims.H-d.H; z++ {
		for y := 0; y <= idx.dims.D-d.D; y++ {
			for x := 0; x <= idx.dims.W-d.W; x++ {
				cand := geom.Box{X: x, Y: y, Z: z, Dims: d}
				if idx.IsFree(cand) {
					return cand, true
				}
			}
		}
	}
	return geom.Box{}, false
}

func (idx *intervalIndex) Insert(itemID string, b geom.Box) {
	e := entry{y: b.Y, x: b.X, itemID: itemID, box: b}
	idx.tree.ReplaceOrInsert(e)
	idx.boxes[itemID] = b
}

func (idx *intervalIndex) Remove(itemID string) {
	b, ok := idx.boxes[itemID]
	if !ok {
		return
	}
	idx.tree.Delete(entry{y: b.Y, x: b.X, itemID: itemID})
	delete(idx.boxes, itemID)
}

func (idx *intervalIndex) Iterate() []Placed {
	out := make([]Placed, 0, len(idx.boxes))
	for id, b := range idx.boxes {
		out = append(out, Placed{ItemID: id, Box: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
