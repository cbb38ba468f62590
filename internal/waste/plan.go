// Package waste implements the C6 waste-return planner (spec §4.6): a
// greedy mass-descending 0/1 knapsack over volume and mass caps, concatenated
// with retrieval steps for the selected items, and undocking completion.
package waste

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/retrieval"
	"github.com/stationcargo/cargostow/internal/store"
)

// ReturnPlan is the selected waste manifest plus the retrieval steps needed
// to bring every selected item to the return vehicle.
type ReturnPlan struct {
	SelectedItemIDs []string
	TotalMass       float64
	TotalVolume     int
	Steps           []retrieval.Step
}

// Planner builds waste return manifests and finalizes undocking.
type Planner struct {
	log       *zap.Logger
	retriever *retrieval.Planner
}

// New constructs a Planner backed by a retrieval.Planner for step generation.
func New(log *zap.Logger, retriever *retrieval.Planner) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{log: log.Named("waste"), retriever: retriever}
}

// Identify returns every item currently flagged waste (spec §4.6).
func Identify(ctx context.Context, tx store.Tx) ([]*domain.Item, error) {
	return tx.Items().ListWaste(ctx)
}

// PlanReturn greedily selects waste items by descending mass, subject to the
// given volume and mass caps (spec §4.6's knapsack), then emits the
// retrieval steps to bring each selected item out of its container,
// renumbered into one sequence across all selected items.
func (p *Planner) PlanReturn(ctx context.Context, tx store.Tx, maxVolume int, maxMass float64) (*ReturnPlan, error) {
	if maxVolume < 0 || maxMass < 0 {
		return nil, apperr.New(apperr.InvalidInput, "volume and mass caps must be non-negative")
	}

	candidates, err := tx.Items().ListWaste(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Mass != candidates[j].Mass {
			return candidates[i].Mass > candidates[j].Mass
		}
		return candidates[i].ID < candidates[j].ID
	})

	plan := &ReturnPlan{}
	remVolume, remMass := maxVolume, maxMass
	for _, it := range candidates {
		vol := it.Base.Volume()
		if it.IsPlaced() {
			vol = it.EffectiveBox().Dims.Volume()
		}
		if float64(vol) > float64(remVolume) || it.Mass > remMass {
			continue
		}
		remVolume -= vol
		remMass -= it.Mass
		plan.SelectedItemIDs = append(plan.SelectedItemIDs, it.ID)
		plan.TotalMass += it.Mass
		plan.TotalVolume += vol

		if it.IsPlaced() {
			itemPlan, err := p.retriever.Plan(ctx, tx, it)
			if err != nil {
				return nil, err
			}
			for _, step := range itemPlan.Steps {
				step.Sequence = len(plan.Steps) + 1
				plan.Steps = append(plan.Steps, step)
			}
		}
	}
	return plan, nil
}

// CompleteUndocking removes every waste item currently in containerID:
// retrieves each (applying retrieval's usual side effects), deletes it from
// the store, and logs the disposal (spec §4.6). Returns the number removed.
func (p *Planner) CompleteUndocking(ctx context.Context, tx store.Tx, actorID, containerID string, now time.Time) (int, error) {
	inContainer, err := tx.Items().ListByContainer(ctx, containerID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, it := range inContainer {
		if !it.Waste {
			continue
		}
		if it.IsPlaced() {
			if err := retrieval.Execute(ctx, tx, actorID, it, now); err != nil {
				return removed, err
			}
		}
		if err := tx.Items().Delete(ctx, it.ID); err != nil {
			return removed, err
		}
		if err := tx.Logs().Append(ctx, &domain.LogRecord{
			Timestamp: now, ActorID: actorID, Action: domain.ActionDisposal, ItemID: it.ID, FromCtnr: containerID, Reason: "undocking",
		}); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
