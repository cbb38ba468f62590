package placement

import (
	"context"
	"testing"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
	"github.com/stationcargo/cargostow/internal/store"
)

func newItem(id string, dims geom.Dims, priority int, zone string) *domain.Item {
	return &domain.Item{ID: id, Name: id, Base: dims, Priority: priority, PreferredZone: zone, UsageLimit: 1, RemainingUses: 1}
}

func withTx(t *testing.T, s store.Store, fn func(tx store.Tx) error) {
	t.Helper()
	if err := store.WithTx(context.Background(), s, fn); err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}

func TestPlaceTrivialFit(t *testing.T) {
	s := store.NewMemoryStore()
	withTx(t, s, func(tx store.Tx) error {
		return tx.Containers().Create(context.Background(), &domain.Container{ID: "C1", Zone: "crew", Dims: geom.Dims{W: 100, D: 100, H: 100}})
	})

	planner := New(nil)
	var result *Result
	withTx(t, s, func(tx store.Tx) error {
		containers, _ := tx.Containers().List(context.Background())
		items := []*domain.Item{newItem("I1", geom.Dims{W: 10, D: 10, H: 10}, 50, "crew")}
		r, err := planner.Place(context.Background(), tx, items, containers)
		result = r
		return err
	})

	if len(result.Placements) != 1 || result.Placements[0].ContainerID != "C1" {
		t.Fatalf("expected item placed in C1, got %+v", result)
	}
	if len(result.Unplaced) != 0 || len(result.Rearrangements) != 0 {
		t.Fatalf("expected no unplaced/rearranged items, got %+v", result)
	}
}

func TestPlaceZoneFallback(t *testing.T) {
	s := store.NewMemoryStore()
	withTx(t, s, func(tx store.Tx) error {
		ctx := context.Background()
		if err := tx.Containers().Create(ctx, &domain.Container{ID: "C1", Zone: "lab", Dims: geom.Dims{W: 50, D: 50, H: 50}}); err != nil {
			return err
		}
		return tx.Containers().Create(ctx, &domain.Container{ID: "C2", Zone: "storage", Dims: geom.Dims{W: 50, D: 50, H: 50}})
	})

	planner := New(nil)
	var result *Result
	withTx(t, s, func(tx store.Tx) error {
		containers, _ := tx.Containers().List(context.Background())
		items := []*domain.Item{newItem("I1", geom.Dims{W: 10, D: 10, H: 10}, 50, "crew")}
		r, err := planner.Place(context.Background(), tx, items, containers)
		result = r
		return err
	})

	if len(result.Placements) != 1 {
		t.Fatalf("expected item placed via zone fallback, got %+v", result)
	}
}

func TestPlaceRearrangesLowerPriorityVictim(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	withTx(t, s, func(tx store.Tx) error {
		// container exactly fits one 10x10x10 item; nothing else can fit alongside it.
		if err := tx.Containers().Create(ctx, &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 10, D: 10, H: 10}}); err != nil {
			return err
		}
		// C2 is outside the incoming item's zone, so it is not a direct-fit
		// candidate, but it can still take the evicted victim.
		if err := tx.Containers().Create(ctx, &domain.Container{ID: "C2", Zone: "other", Dims: geom.Dims{W: 10, D: 10, H: 10}}); err != nil {
			return err
		}
		return tx.Items().Create(ctx, &domain.Item{
			ID: "low", Name: "low", Base: geom.Dims{W: 10, D: 10, H: 10}, Priority: 10,
			UsageLimit: 1, RemainingUses: 1,
			Placement: &domain.Placement{ContainerID: "C1", Origin: [3]int{0, 0, 0}},
		})
	})

	planner := New(nil)
	var result *Result
	withTx(t, s, func(tx store.Tx) error {
		containers, _ := tx.Containers().List(context.Background())
		items := []*domain.Item{newItem("high", geom.Dims{W: 10, D: 10, H: 10}, 90, "z")}
		r, err := planner.Place(context.Background(), tx, items, containers)
		result = r
		return err
	})

	if len(result.Rearrangements) != 3 {
		t.Fatalf("expected a 3-step rearrangement, got %+v", result.Rearrangements)
	}
	if result.Rearrangements[0].Action != StepRemove || result.Rearrangements[0].ItemID != "low" {
		t.Fatalf("expected step 1 to remove the low-priority victim, got %+v", result.Rearrangements[0])
	}
	foundHighInC1 := false
	for _, p := range result.Placements {
		if p.ItemID == "high" && p.ContainerID == "C1" {
			foundHighInC1 = true
		}
	}
	foundLowInC2 := false
	for _, step := range result.Rearrangements {
		if step.Action == StepPlace && step.ItemID == "low" && step.ToCtnr == "C2" {
			foundLowInC2 = true
		}
	}
	if !foundHighInC1 || !foundLowInC2 {
		t.Fatalf("expected swap of high into C1 and low into C2, got placements %+v, rearrangements %+v", result.Placements, result.Rearrangements)
	}
}

func TestPlaceUnplaceableIsNotAnError(t *testing.T) {
	s := store.NewMemoryStore()
	withTx(t, s, func(tx store.Tx) error {
		return tx.Containers().Create(context.Background(), &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 5, D: 5, H: 5}})
	})

	planner := New(nil)
	var result *Result
	withTx(t, s, func(tx store.Tx) error {
		containers, _ := tx.Containers().List(context.Background())
		items := []*domain.Item{newItem("toobig", geom.Dims{W: 10, D: 10, H: 10}, 50, "z")}
		r, err := planner.Place(context.Background(), tx, items, containers)
		result = r
		return err
	})

	if len(result.Unplaced) != 1 || result.Unplaced[0] != "toobig" {
		t.Fatalf("expected item reported unplaced, got %+v", result)
	}
}

func TestPlaceAtCommitsTheRequestedSlot(t *testing.T) {
	s := store.NewMemoryStore()
	withTx(t, s, func(tx store.Tx) error {
		return tx.Containers().Create(context.Background(), &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 100, D: 100, H: 100}})
	})

	planner := New(nil)
	item := newItem("I1", geom.Dims{W: 10, D: 10, H: 10}, 50, "z")
	withTx(t, s, func(tx store.Tx) error {
		ctn, _ := tx.Containers().Get(context.Background(), "C1")
		return planner.PlaceAt(context.Background(), tx, item, ctn, [3]int{20, 20, 0}, geom.OrientWDH)
	})

	var reread *domain.Item
	withTx(t, s, func(tx store.Tx) error {
		var err error
		reread, err = tx.Items().Get(context.Background(), "I1")
		return err
	})
	if !reread.IsPlaced() || reread.Placement.Origin != [3]int{20, 20, 0} || reread.Placement.ContainerID != "C1" {
		t.Fatalf("expected item placed at requested slot, got %+v", reread.Placement)
	}
}

func TestPlaceAtRejectsOverlapAsPreconditionFailed(t *testing.T) {
	s := store.NewMemoryStore()
	withTx(t, s, func(tx store.Tx) error {
		if err := tx.Containers().Create(context.Background(), &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 100, D: 100, H: 100}}); err != nil {
			return err
		}
		occupant := newItem("occupant", geom.Dims{W: 10, D: 10, H: 10}, 50, "z")
		occupant.Placement = &domain.Placement{ContainerID: "C1", Origin: [3]int{0, 0, 0}}
		return tx.Items().Create(context.Background(), occupant)
	})

	planner := New(nil)
	item := newItem("I1", geom.Dims{W: 10, D: 10, H: 10}, 50, "z")
	err := store.WithTx(context.Background(), s, func(tx store.Tx) error {
		ctn, _ := tx.Containers().Get(context.Background(), "C1")
		return planner.PlaceAt(context.Background(), tx, item, ctn, [3]int{0, 0, 0}, geom.OrientWDH)
	})
	if !apperr.Is(err, apperr.PreconditionFailed) {
		t.Fatalf("expected PreconditionFailed for overlapping placement, got %v", err)
	}
}

func TestPlaceAtRejectsOutOfBoundsAsPreconditionFailed(t *testing.T) {
	s := store.NewMemoryStore()
	withTx(t, s, func(tx store.Tx) error {
		return tx.Containers().Create(context.Background(), &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 10, D: 10, H: 10}})
	})

	planner := New(nil)
	item := newItem("I1", geom.Dims{W: 10, D: 10, H: 10}, 50, "z")
	err := store.WithTx(context.Background(), s, func(tx store.Tx) error {
		ctn, _ := tx.Containers().Get(context.Background(), "C1")
		return planner.PlaceAt(context.Background(), tx, item, ctn, [3]int{5, 0, 0}, geom.OrientWDH)
	})
	if !apperr.Is(err, apperr.PreconditionFailed) {
		t.Fatalf("expected PreconditionFailed for out-of-bounds placement, got %v", err)
	}
}
