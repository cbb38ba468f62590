package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
	"github.com/stationcargo/cargostow/internal/store"
)

// Planner resolves a name to a single item and plans its retrieval,
// including any blocking items that must be temporarily removed (spec §4.4).
type Planner struct {
	log *zap.Logger
	now func() time.Time
}

// New constructs a Planner. log may be nil; now defaults to time.Now.
func New(log *zap.Logger, now func() time.Time) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Planner{log: log.Named("retrieval"), now: now}
}

// Disambiguate scores every item named name and returns the single highest
// scoring one, per spec §4.4's weighted formula.
func (p *Planner) Disambiguate(ctx context.Context, tx store.Tx, name string) (*domain.Item, error) {
	matches, err := tx.Items().GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, apperr.Newf(apperr.NotFound, "no item named %q", name)
	}
	if len(matches) == 1 {
		return matches[0], nil
	}

	now := p.now()
	best := matches[0]
	bestScore := math.Inf(-1)
	bestID := ""
	for _, it := range matches {
		blockers := 0
		if it.IsPlaced() {
			siblings, err := tx.Items().ListByContainer(ctx, it.Placement.ContainerID)
			if err != nil {
				return nil, err
			}
			blockers = len(directBlockers(it, siblings))
		}
		days := 365
		if it.ExpiryAt != nil {
			d := int(it.ExpiryAt.Sub(now).Hours() / 24)
			days = clamp(d, 0, 365)
		}
		score := 0.5*(1-float64(min(blockers, 20))/20) + 0.3*(1-float64(days)/365) + 0.2*(float64(it.Priority)/100)
		if score > bestScore || (score == bestScore && it.ID < bestID) {
			best, bestScore, bestID = it, score, it.ID
		}
	}
	return best, nil
}

// Plan computes the ordered step sequence needed to retrieve item, including
// removal and set-aside of any blocking items and their closure of
// dependents, followed by reversed place-back steps (spec §4.4).
func (p *Planner) Plan(ctx context.Context, tx store.Tx, item *domain.Item) (*Plan, error) {
	if !item.IsPlaced() {
		return nil, apperr.Newf(apperr.PreconditionFailed, "item %q is not currently placed", item.ID)
	}
	siblings, err := tx.Items().ListByContainer(ctx, item.Placement.ContainerID)
	if err != nil {
		return nil, err
	}

	targetBox := item.EffectiveBox()
	direct := directBlockers(item, siblings)
	removal := supportClosure(direct, siblings)

	sort.SliceStable(removal, func(i, j int) bool {
		ki := geom.KeyOf(removal[i].EffectiveBox(), removal[i].ID)
		kj := geom.KeyOf(removal[j].EffectiveBox(), removal[j].ID)
		return ki.Less(kj)
	})

	plan := &Plan{ItemID: item.ID}
	seq := 0
	for _, b := range removal {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Wrap(apperr.Cancelled, err)
		}
		box := b.EffectiveBox()
		seq++
		plan.Steps = append(plan.Steps, Step{Sequence: seq, Action: StepRemove, ItemID: b.ID, ContainerID: item.Placement.ContainerID, Origin: [3]int{box.X, box.Y, box.Z}, Orientation: b.Placement.Orientation})
		seq++
		plan.Steps = append(plan.Steps, Step{Sequence: seq, Action: StepSetAside, ItemID: b.ID})
	}

	seq++
	plan.Steps = append(plan.Steps, Step{
		Sequence: seq, Action: StepRetrieve, ItemID: item.ID, ContainerID: item.Placement.ContainerID,
		Origin: [3]int{targetBox.X, targetBox.Y, targetBox.Z}, Orientation: item.Placement.Orientation,
	})

	for i := len(removal) - 1; i >= 0; i-- {
		b := removal[i]
		box := b.EffectiveBox()
		seq++
		plan.Steps = append(plan.Steps, Step{Sequence: seq, Action: StepPlaceBack, ItemID: b.ID, ContainerID: item.Placement.ContainerID, Origin: [3]int{box.X, box.Y, box.Z}, Orientation: b.Placement.Orientation})
	}

	return plan, nil
}

// directBlockers returns the items that sit strictly in front of target and
// whose xz-projection overlaps it (geom.Blocks), i.e. those directly in the
// way before any support-closure expansion.
func directBlockers(target *domain.Item, siblings []*domain.Item) []*domain.Item {
	targetBox := target.EffectiveBox()
	var out []*domain.Item
	for _, s := range siblings {
		if s.ID == target.ID || !s.IsPlaced() {
			continue
		}
		if geom.Blocks(s.EffectiveBox(), targetBox) {
			out = append(out, s)
		}
	}
	return out
}

// supportClosure conservatively extends the removal set to include any item
// resting on something already in the set, via least-fixed-point iteration
// (spec §4.4): if a blocker is removed, whatever it was holding up must be
// removed too, without checking whether some other unremoved item could
// still support it.
func supportClosure(direct []*domain.Item, siblings []*domain.Item) []*domain.Item {
	inSet := make(map[string]*domain.Item, len(direct))
	for _, it := range direct {
		inSet[it.ID] = it
	}
	for {
		added := false
		for _, candidate := range siblings {
			if _, already := inSet[candidate.ID]; already || !candidate.IsPlaced() {
				continue
			}
			cBox := candidate.EffectiveBox()
			for _, sup := range inSet {
				if geom.Supports(sup.EffectiveBox(), cBox) {
					inSet[candidate.ID] = candidate
					added = true
					break
				}
			}
		}
		if !added {
			break
		}
	}
	out := make([]*domain.Item, 0, len(inSet))
	for _, it := range inSet {
		out = append(out, it)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
