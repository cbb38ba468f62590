package placement

import (
	"context"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
	"github.com/stationcargo/cargostow/internal/occupancy"
	"github.com/stationcargo/cargostow/internal/store"
)

// Planner assigns new items to containers and, when no direct fit exists,
// evicts a single strictly-lower-priority item to make room (spec §4.3).
type Planner struct {
	log *zap.Logger
}

// New constructs a Planner. log may be nil, in which case a no-op logger is used.
func New(log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{log: log.Named("placement")}
}

// world is the planner's working state for one Place call: one occupancy
// index and running free volume per container, plus the set of items
// currently known to be placed (read from the store, mutated in memory as
// the plan is built).
type world struct {
	containers map[string]*domain.Container
	indexes    map[string]occupancy.Index
	freeVol    map[string]int64
	placed     map[string]*domain.Item // itemID -> item, only placed items
}

// Place plans and persists placements for items against containers, inside
// tx. Items that cannot be placed even after rearrangement are reported in
// Result.Unplaced; this is not an error (spec §4.3 Edge cases).
func (p *Planner) Place(ctx context.Context, tx store.Tx, items []*domain.Item, containers []*domain.Container) (*Result, error) {
	if err := validateRequest(items, containers); err != nil {
		return nil, err
	}

	w, err := p.loadWorld(ctx, tx, containers)
	if err != nil {
		return nil, err
	}

	sorted := make([]*domain.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].Base.Volume() > sorted[j].Base.Volume()
	})

	result := &Result{}
	for _, it := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Wrap(apperr.Cancelled, err)
		}
		placed, err := p.placeOne(ctx, tx, w, it, result)
		if err != nil {
			return nil, err
		}
		if !placed {
			result.Unplaced = append(result.Unplaced, it.ID)
		}
	}
	return result, nil
}

// PlaceAt places item at an operator-chosen container and position/
// orientation (the wire table's "place" operation, as opposed to Place's
// batch planner). Unlike the planner's own candidate search, the caller has
// already picked the slot, so this only validates I1/I2 against the
// container's current occupants and reports a violation as
// apperr.PreconditionFailed rather than treating it as a planner bug.
func (p *Planner) PlaceAt(ctx context.Context, tx store.Tx, item *domain.Item, container *domain.Container, origin [3]int, o geom.Orientation) error {
	box := geom.Box{X: origin[0], Y: origin[1], Z: origin[2], Dims: o.Apply(item.Base)}

	idx := occupancy.New(container.Dims)
	existing, err := tx.Items().ListByContainer(ctx, container.ID)
	if err != nil {
		return err
	}
	for _, it := range existing {
		if it.ID == item.ID {
			continue
		}
		idx.Insert(it.ID, it.EffectiveBox())
	}

	if !geom.Contains(container.Dims, box) {
		return apperr.New(apperr.PreconditionFailed, "item would extend outside container bounds")
	}
	if !idx.IsFree(box) {
		return apperr.New(apperr.PreconditionFailed, "item overlaps an existing placement")
	}

	alreadyPlaced := item.IsPlaced()
	item.Placement = &domain.Placement{ContainerID: container.ID, Origin: origin, Orientation: o}
	if alreadyPlaced {
		return tx.Items().Update(ctx, item)
	}
	return tx.Items().Create(ctx, item)
}

func (p *Planner) loadWorld(ctx context.Context, tx store.Tx, containers []*domain.Container) (*world, error) {
	w := &world{
		containers: make(map[string]*domain.Container, len(containers)),
		indexes:    make(map[string]occupancy.Index, len(containers)),
		freeVol:    make(map[string]int64, len(containers)),
		placed:     make(map[string]*domain.Item),
	}
	for _, c := range containers {
		w.containers[c.ID] = c
		idx := occupancy.New(c.Dims)
		existing, err := tx.Items().ListByContainer(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		free := int64(c.Volume())
		for _, it := range existing {
			box := it.EffectiveBox()
			idx.Insert(it.ID, box)
			free -= int64(box.Dims.Volume())
			w.placed[it.ID] = it
		}
		w.indexes[c.ID] = idx
		w.freeVol[c.ID] = free
	}
	return w, nil
}

// candidateContainers returns containers preferring the item's zone, falling
// back to every container when the zone has none (spec §4.3).
func (p *Planner) candidateContainers(w *world, zone string) []*domain.Container {
	var zoned []*domain.Container
	for _, c := range w.containers {
		if zone != "" && c.Zone == zone {
			zoned = append(zoned, c)
		}
	}
	candidates := zoned
	if len(candidates) == 0 {
		for _, c := range w.containers {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if w.freeVol[candidates[i].ID] != w.freeVol[candidates[j].ID] {
			return w.freeVol[candidates[i].ID] > w.freeVol[candidates[j].ID]
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates
}

type fitResult struct {
	candidateIdx int
	orientation  geom.Orientation
	box          geom.Box
	ok           bool
}

// firstFit evaluates every candidate container in parallel (each index is
// read-only until a winner is chosen) and deterministically picks the first
// candidate, in the pre-sorted order, that has a fit.
func (p *Planner) firstFit(ctx context.Context, w *world, candidates []*domain.Container, base geom.Dims) (int, geom.Orientation, geom.Box, bool) {
	results := make([]fitResult, len(candidates))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			idx := w.indexes[c.ID]
			for _, o := range geom.AllOrientations {
				eff := o.Apply(base)
				if box, ok := idx.FirstFit(eff); ok {
					results[i] = fitResult{candidateIdx: i, orientation: o, box: box, ok: true}
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return an error; fit/no-fit is encoded in results
	for i, r := range results {
		if r.ok {
			return i, r.orientation, r.box, true
		}
	}
	return 0, 0, geom.Box{}, false
}

func (p *Planner) placeOne(ctx context.Context, tx store.Tx, w *world, it *domain.Item, result *Result) (bool, error) {
	candidates := p.candidateContainers(w, it.PreferredZone)
	if ci, o, box, ok := p.firstFit(ctx, w, candidates, it.Base); ok {
		c := candidates[ci]
		if err := p.commitPlacement(ctx, tx, w, it, c.ID, o, box); err != nil {
			return false, err
		}
		result.Placements = append(result.Placements, Placement{
			ItemID: it.ID, ContainerID: c.ID, Origin: [3]int{box.X, box.Y, box.Z}, Orientation: o,
		})
		return true, nil
	}
	return p.tryRearrange(ctx, tx, w, it, candidates, result)
}

func (p *Planner) commitPlacement(ctx context.Context, tx store.Tx, w *world, it *domain.Item, containerID string, o geom.Orientation, box geom.Box) error {
	idx := w.indexes[containerID]
	assertPlaceable(w.containers[containerID], idx, box)
	idx.Insert(it.ID, box)
	_, alreadyPlaced := w.placed[it.ID]
	it.Placement = &domain.Placement{ContainerID: containerID, Origin: [3]int{box.X, box.Y, box.Z}, Orientation: o}
	w.freeVol[containerID] -= int64(box.Dims.Volume())
	w.placed[it.ID] = it

	if alreadyPlaced {
		return tx.Items().Update(ctx, it)
	}
	return tx.Items().Create(ctx, it)
}

// tryRearrange looks for a single strictly-lower-priority victim whose
// eviction from its current container makes room for it, and who can itself
// be relocated to some other container (spec §4.3's single-swap rule).
func (p *Planner) tryRearrange(ctx context.Context, tx store.Tx, w *world, it *domain.Item, candidates []*domain.Container, result *Result) (bool, error) {
	victims := make([]*domain.Item, 0, len(w.placed))
	for _, v := range w.placed {
		if v.Priority < it.Priority {
			victims = append(victims, v)
		}
	}
	sort.SliceStable(victims, func(i, j int) bool { return victims[i].Priority < victims[j].Priority })

	for _, victim := range victims {
		cid := victim.Placement.ContainerID
		c, ok := w.containers[cid]
		if !ok {
			continue // victim lives in a container outside this request's scope
		}
		idx := w.indexes[cid]
		victimBox := victim.EffectiveBox()
		idx.Remove(victim.ID)

		placedHere := false
		var itBox geom.Box
		var itO geom.Orientation
		for _, o := range geom.AllOrientations {
			eff := o.Apply(it.Base)
			if box, ok := idx.FirstFit(eff); ok {
				itBox, itO, placedHere = box, o, true
				break
			}
		}
		if !placedHere {
			idx.Insert(victim.ID, victimBox)
			continue
		}

		altID, altBox, altO, ok := p.firstFitElsewhere(w, victim, cid)
		if !ok {
			idx.Insert(victim.ID, victimBox)
			continue
		}

		if err := p.commitSwap(ctx, tx, w, it, c.ID, itO, itBox, victim, altID, altO, altBox, result); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (p *Planner) firstFitElsewhere(w *world, victim *domain.Item, excludeID string) (string, geom.Box, geom.Orientation, bool) {
	var others []*domain.Container
	for id, c := range w.containers {
		if id != excludeID {
			others = append(others, c)
		}
	}
	sort.SliceStable(others, func(i, j int) bool {
		if w.freeVol[others[i].ID] != w.freeVol[others[j].ID] {
			return w.freeVol[others[i].ID] > w.freeVol[others[j].ID]
		}
		return others[i].ID < others[j].ID
	})
	for _, c := range others {
		idx := w.indexes[c.ID]
		for _, o := range geom.AllOrientations {
			eff := o.Apply(victim.Base)
			if box, ok := idx.FirstFit(eff); ok {
				return c.ID, box, o, true
			}
		}
	}
	return "", geom.Box{}, 0, false
}

func (p *Planner) commitSwap(ctx context.Context, tx store.Tx, w *world, it *domain.Item, itCtnr string, itO geom.Orientation, itBox geom.Box,
	victim *domain.Item, victCtnr string, victO geom.Orientation, victBox geom.Box, result *Result) error {

	step := len(result.Rearrangements)
	fromCtnr := victim.Placement.ContainerID

	// 1. remove victim from its current container
	result.Rearrangements = append(result.Rearrangements, RearrangementStep{
		Step: step + 1, Action: StepRemove, ItemID: victim.ID, FromCtnr: fromCtnr,
	})

	// 2. place the incoming item where the victim used to be
	assertPlaceable(w.containers[itCtnr], w.indexes[itCtnr], itBox)
	w.indexes[itCtnr].Insert(it.ID, itBox)
	w.freeVol[itCtnr] -= int64(itBox.Dims.Volume())
	it.Placement = &domain.Placement{ContainerID: itCtnr, Origin: [3]int{itBox.X, itBox.Y, itBox.Z}, Orientation: itO}
	w.placed[it.ID] = it
	if err := tx.Items().Create(ctx, it); err != nil {
		return err
	}
	result.Rearrangements = append(result.Rearrangements, RearrangementStep{
		Step: step + 2, Action: StepPlace, ItemID: it.ID, ToCtnr: itCtnr,
		Origin: it.Placement.Origin, Orientation: itO,
	})
	result.Placements = append(result.Placements, Placement{
		ItemID: it.ID, ContainerID: itCtnr, Origin: it.Placement.Origin, Orientation: itO,
	})

	// 3. place the victim into its new container
	assertPlaceable(w.containers[victCtnr], w.indexes[victCtnr], victBox)
	w.indexes[victCtnr].Insert(victim.ID, victBox)
	w.freeVol[victCtnr] -= int64(victBox.Dims.Volume())
	w.freeVol[fromCtnr] += int64(victim.EffectiveBox().Dims.Volume())
	victim.Placement = &domain.Placement{ContainerID: victCtnr, Origin: [3]int{victBox.X, victBox.Y, victBox.Z}, Orientation: victO}
	w.placed[victim.ID] = victim
	if err := tx.Items().Update(ctx, victim); err != nil {
		return err
	}
	result.Rearrangements = append(result.Rearrangements, RearrangementStep{
		Step: step + 3, Action: StepPlace, ItemID: victim.ID, ToCtnr: victCtnr,
		Origin: victim.Placement.Origin, Orientation: victO,
	})

	return nil
}
