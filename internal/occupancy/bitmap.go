package occupancy

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stationcargo/cargostow/internal/geom"
)

// bitmapIndex is a dense 1cm-resolution occupancy map backed by a roaring
// bitmap over a z-major linear cell id, used for containers within the
// typical size ceiling (spec §4.2).
type bitmapIndex struct {
	dims     geom.Dims
	occupied *roaring.Bitmap
	boxes    map[string]geom.Box // itemID -> its occupied box, for Overlappers/Remove
}

func newBitmapIndex(dims geom.Dims) *bitmapIndex {
	return &bitmapIndex{
		dims:     dims,
		occupied: roaring.New(),
		boxes:    make(map[string]geom.Box),
	}
}

func (idx *bitmapIndex) cell(x, y, z int) uint32 {
	return uint32(z*idx.dims.W*idx.dims.D + y*idx.dims.W + x)
}

func (idx *bitmapIndex) IsFree(b geom.Box) bool {
	if !geom.Contains(idx.dims, b) {
		return false
	}
	for z := b.Z; z < b.Z+b.H; z++ {
		for y := b.Y; y < b.Y+b.D; y++ {
			for x := b.X; x < b.X+b.W; x++ {
				if idx.occupied.Contains(idx.cell(x, y, z)) {
					return false
				}
			}
		}
	}
	return true
}

func (idx *bitmapIndex) FirstFit(d geom.Dims) (geom.Box, bool) {
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

func (idx *bitmapIndex) Overlappers(b geom.Box) []string {
	var ids []string
	for id, box := range idx.boxes {
		if geom.Overlap(b, box) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (idx *bitmapIndex) Insert(itemID string, b geom.Box) {
	for z := b.Z; z < b.Z+b.H; z++ {
		for y := b.Y; y < b.Y+b.D; y++ {
			for x := b.X; x < b.X+b.W; x++ {
				idx.occupied.Add(idx.cell(x, y, z))
			}
		}
	}
	idx.boxes[itemID] = b
}

func (idx *bitmapIndex) Remove(itemID string) {
	b, ok := idx.boxes[itemID]
	if !ok {
		return
	}
	for z := b.Z; z < b.Z+b.H; z++ {
		for y := b.Y; y < b.Y+b.D; y++ {
			for x := b.X; x < b.X+b.W; x++ {
				idx.occupied.Remove(idx.cell(x, y, z))
			}
		}
	}
	delete(idx.boxes, itemID)
}

func (idx *bitmapIndex) Iterate() []Placed {
	out := make([]Placed, 0, len(idx.boxes))
	for id, b := range idx.boxes {
		out = append(out, Placed{ItemID: id, Box: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
