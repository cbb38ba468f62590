// Package geom implements the axis-aligned box geometry the stowage core
// reasons about: orientation permutations, containment, overlap, blocking,
// and support predicates. All coordinates are integer centimeters.
package geom

// Dims is a width/depth/height triple in centimeters.
type Dims struct {
	W, D, H int
}

// Volume returns W*D*H.
func (d Dims) Volume() int { return d.W * d.D * d.H }

// Box is an axis-aligned bounding box: an origin plus oriented dimensions.
type Box struct {
	X, Y, Z int
	Dims
}

// End returns the box's far corner (exclusive), i.e. X+W, Y+D, Z+H.
func (b Box) End() (int, int, int) { return b.X + b.W, b.Y + b.D, b.Z + b.H }

// Orientation is one of the six permutations of an item's base (w,d,h) triple.
type Orientation uint8

const (
	OrientWDH Orientation = iota // identity
	OrientDWH                    // swap w<->d
	OrientWHD                    // swap w<->h
	OrientHWD                    // (w,d,h) -> (h,w,d)
	OrientDHW                    // (w,d,h) -> (d,h,w)
	OrientHDW                    // (w,d,h) -> (h,d,w)
)

// AllOrientations is the fixed try order the placement planner uses:
// identity first, then permutations of increasing anisotropy.
var AllOrientations = [6]Orientation{OrientWDH, OrientDWH, OrientWHD, OrientHWD, OrientDHW, OrientHDW}

// Apply returns the effective dimensions of base under this orientation.
func (o Orientation) Apply(base Dims) Dims {
	switch o {
	case OrientWDH:
		return Dims{base.W, base.D, base.H}
	case OrientDWH:
		return Dims{base.D, base.W, base.H}
	case OrientWHD:
		return Dims{base.W, base.H, base.D}
	case OrientHWD:
		return Dims{base.H, base.W, base.D}
	case OrientDHW:
		return Dims{base.D, base.H, base.W}
	case OrientHDW:
		return Dims{base.H, base.D, base.W}
	default:
		return base
	}
}

// Contains reports whether box b lies wholly inside a container interior of
// the given dimensions, with the container's near corner at the origin.
func Contains(container Dims, b Box) bool {
	if b.X < 0 || b.Y < 0 || b.Z < 0 {
		return false
	}
	ex, ey, ez := b.End()
	return ex <= container.W && ey <= container.D && ez <= container.H
}

// Overlap reports whether two boxes' open interiors intersect on all three axes.
func Overlap(a, b Box) bool {
	ax2, ay2, az2 := a.End()
	bx2, by2, bz2 := b.End()
	if a.X >= bx2 || b.X >= ax2 {
		return false
	}
	if a.Y >= by2 || b.Y >= ay2 {
		return false
	}
	if a.Z >= bz2 || b.Z >= az2 {
		return false
	}
	return true
}

// Blocks reports whether blocker sits strictly in front of target on the
// depth axis and its xz-projection onto the front face overlaps target's.
func Blocks(blocker, target Box) bool {
	if blocker.Y >= target.Y {
		return false
	}
	bx2, _, bz2 := blocker.End()
	tx2, _, tz2 := target.End()
	if blocker.X >= tx2 || target.X >= bx2 {
		return false
	}
	if blocker.Z >= tz2 || target.Z >= bz2 {
		return false
	}
	return true
}

// Supports reports whether sup adequately supports above: their top/bottom
// faces touch and the xy-footprint overlap is at least half of above's footprint.
func Supports(sup, above Box) bool {
	if sup.Z+sup.H != above.Z {
		return false
	}
	ox := overlapLen(sup.X, sup.X+sup.W, above.X, above.X+above.W)
	oy := overlapLen(sup.Y, sup.Y+sup.D, above.Y, above.Y+above.D)
	if ox <= 0 || oy <= 0 {
		return false
	}
	area := ox * oy
	need := above.W * above.D
	// 50% footprint rule; compare by cross-multiplication to stay in integers.
	return 2*area >= need
}

func overlapLen(aLo, aHi, bLo, bHi int) int {
	lo := aLo
	if bLo > lo {
		lo = bLo
	}
	hi := aHi
	if bHi < hi {
		hi = bHi
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

// AccessKey is the sort key used for the canonical front-to-back,
// top-to-bottom, left-to-right access order: lexicographic on (y, -z, x, id).
type AccessKey struct {
	Y, NegZ, X int
	ID         string
}

// KeyOf builds the access-order key for a box belonging to the given id.
func KeyOf(b Box, id string) AccessKey {
	return AccessKey{Y: b.Y, NegZ: -b.Z, X: b.X, ID: id}
}

// Less implements the lexicographic tie-break order (y, -z, x, id).
func (k AccessKey) Less(o AccessKey) bool {
	if k.Y != o.Y {
		return k.Y < o.Y
	}
	if k.NegZ != o.NegZ {
		return k.NegZ < o.NegZ
	}
	if k.X != o.X {
		return k.X < o.X
	}
	return k.ID < o.ID
}
