package domain

import (
	"time"

	"github.com/stationcargo/cargostow/internal/geom"
)

// Placement records where a placed item currently sits.
type Placement struct {
	ContainerID string           `json:"container_id"`
	Origin      [3]int           `json:"origin"` // x,y,z
	Orientation geom.Orientation `json:"orientation"`
}

// Box returns the item's effective oriented bounding box given its base dims.
func (p *Placement) Box(base geom.Dims) geom.Box {
	eff := p.Orientation.Apply(base)
	return geom.Box{X: p.Origin[0], Y: p.Origin[1], Z: p.Origin[2], Dims: eff}
}

// Item is a piece of cargo: identity, base dimensions, lifecycle fields, and
// an optional current placement.
type Item struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Base           geom.Dims  `json:"base"` // base (w,d,h) before orientation
	Mass           float64    `json:"mass"`
	Priority       int        `json:"priority"` // [0,100]
	ExpiryAt       *time.Time `json:"expiry_at,omitempty"`
	UsageLimit     int        `json:"usage_limit"`
	RemainingUses  int        `json:"remaining_uses"`
	PreferredZone  string     `json:"preferred_zone"`
	Waste          bool       `json:"waste"`
	Placement      *Placement `json:"placement,omitempty"`
}

// IsPlaced reports whether the item currently occupies a container slot.
func (it *Item) IsPlaced() bool { return it.Placement != nil }

// EffectiveBox returns the item's current oriented bounding box. Panics if
// the item is not placed; callers must check IsPlaced first.
func (it *Item) EffectiveBox() geom.Box {
	return it.Placement.Box(it.Base)
}

// DeepClone returns an independent copy of the item, including its placement.
func (it *Item) DeepClone() *Item {
	if it == nil {
		return nil
	}
	clone := *it
	if it.ExpiryAt != nil {
		t := *it.ExpiryAt
		clone.ExpiryAt = &t
	}
	if it.Placement != nil {
		p := *it.Placement
		clone.Placement = &p
	}
	return &clone
}

// Validate enforces the item's static invariants that don't depend on a
// container (negative dims, bad priority, usage bounds). Containment and
// non-overlap (I1/I2) are checked by the occupancy index at placement time.
func (it *Item) Validate() error {
	if it.Base.W < 0 || it.Base.D < 0 || it.Base.H < 0 {
		return errInvalidDims
	}
	if it.Priority < 0 || it.Priority > 100 {
		return errInvalidPriority
	}
	if it.RemainingUses < 0 || it.RemainingUses > it.UsageLimit {
		return errInvalidUsage
	}
	return nil
}
