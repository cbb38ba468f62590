package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
	"github.com/stationcargo/cargostow/internal/store"
)

func placedItem(id string, origin [3]int, dims geom.Dims, containerID string, priority int) *domain.Item {
	return &domain.Item{
		ID: id, Name: id, Base: dims, Priority: priority, UsageLimit: 1, RemainingUses: 1,
		Placement: &domain.Placement{ContainerID: containerID, Origin: origin},
	}
}

func TestRetrievalPlanRemovesDirectBlocker(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_ = store.WithTx(ctx, s, func(tx store.Tx) error {
		if err := tx.Containers().Create(ctx, &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 100, D: 100, H: 100}}); err != nil {
			return err
		}
		// blocker sits in front (smaller Y) of the target, overlapping in x/z.
		if err := tx.Items().Create(ctx, placedItem("blocker", [3]int{0, 0, 0}, geom.Dims{W: 10, D: 10, H: 10}, "C1", 20)); err != nil {
			return err
		}
		return tx.Items().Create(ctx, placedItem("target", [3]int{0, 10, 0}, geom.Dims{W: 10, D: 10, H: 10}, "C1", 50))
	})

	p := New(nil, func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })

	var target *domain.Item
	_ = store.WithTx(ctx, s, func(tx store.Tx) error {
		var err error
		target, err = tx.Items().Get(ctx, "target")
		return err
	})

	var plan *Plan
	err := store.WithTx(ctx, s, func(tx store.Tx) error {
		var err error
		plan, err = p.Plan(ctx, tx, target)
		return err
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if len(plan.Steps) != 4 {
		t.Fatalf("expected remove+setaside+retrieve+placeback (4 steps for one blocker), got %d: %+v", len(plan.Steps), plan.Steps)
	}
	if plan.Steps[0].Action != StepRemove || plan.Steps[0].ItemID != "blocker" {
		t.Fatalf("expected first step to remove the blocker, got %+v", plan.Steps[0])
	}
	if plan.Steps[2].Action != StepRetrieve || plan.Steps[2].ItemID != "target" {
		t.Fatalf("expected third step to retrieve the target, got %+v", plan.Steps[2])
	}
	if plan.Steps[3].Action != StepPlaceBack || plan.Steps[3].ItemID != "blocker" {
		t.Fatalf("expected last step to place the blocker back, got %+v", plan.Steps[3])
	}
}

func TestDisambiguateByScore(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_ = store.WithTx(ctx, s, func(tx store.Tx) error {
		if err := tx.Containers().Create(ctx, &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 100, D: 100, H: 100}}); err != nil {
			return err
		}
		low := placedItem("dup", [3]int{0, 0, 0}, geom.Dims{W: 10, D: 10, H: 10}, "C1", 5)
		low.ID = "dup-low"
		high := placedItem("dup", [3]int{20, 0, 0}, geom.Dims{W: 10, D: 10, H: 10}, "C1", 95)
		high.ID = "dup-high"
		if err := tx.Items().Create(ctx, low); err != nil {
			return err
		}
		return tx.Items().Create(ctx, high)
	})

	p := New(nil, func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
	var chosen *domain.Item
	err := store.WithTx(ctx, s, func(tx store.Tx) error {
		var err error
		chosen, err = p.Disambiguate(ctx, tx, "dup")
		return err
	})
	if err != nil {
		t.Fatalf("disambiguate: %v", err)
	}
	if chosen.ID != "dup-high" {
		t.Fatalf("expected higher priority item to win disambiguation, got %q", chosen.ID)
	}
}
