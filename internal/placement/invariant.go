package placement

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
)

// assertPlaceable guards I1 (containment) and I2 (non-overlap) at the one
// point every placement and rearrangement path funnels through before
// touching the occupancy index. A violation here means a planner bug let a
// bad candidate slip past firstFit/tryRearrange, not a reachable runtime
// condition, so it panics with a full state dump rather than returning an
// error a caller could paper over.
func assertPlaceable(c *domain.Container, idx interface{ IsFree(geom.Box) bool }, box geom.Box) {
	if !geom.Contains(c.Dims, box) {
		panic("placement: box escapes container bounds\n" + spew.Sdump(c, box))
	}
	if !idx.IsFree(box) {
		panic("placement: box overlaps an existing occupant\n" + spew.Sdump(c, box))
	}
}
