package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
	"github.com/stationcargo/cargostow/internal/store"
)

func TestSimulateDaysSweepsExpiredItems(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expiresTomorrow := base.AddDate(0, 0, 1)

	_ = store.WithTx(ctx, s, func(tx store.Tx) error {
		if err := tx.Containers().Create(ctx, &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 100, D: 100, H: 100}}); err != nil {
			return err
		}
		return tx.Items().Create(ctx, &domain.Item{
			ID: "perishable", Name: "perishable", Base: geom.Dims{W: 10, D: 10, H: 10},
			UsageLimit: 1, RemainingUses: 1, ExpiryAt: &expiresTomorrow,
			Placement: &domain.Placement{ContainerID: "C1", Origin: [3]int{0, 0, 0}},
		})
	})

	engine := New(nil)
	var result *SimulateDayResult
	err := store.WithTx(ctx, s, func(tx store.Tx) error {
		var err error
		result, err = engine.SimulateDays(ctx, tx, "sim", base, 2, nil)
		return err
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if result.DaysSimulated != 2 || len(result.Days) != 2 {
		t.Fatalf("expected 2 day results, got %+v", result)
	}
	if !result.NewDate.Equal(base.AddDate(0, 0, 2)) {
		t.Fatalf("expected new date to advance 2 days, got %v", result.NewDate)
	}
	if len(result.Days[0].ItemsWasted) != 1 || result.Days[0].ItemsWasted[0] != "perishable" {
		t.Fatalf("expected item to be wasted on day 1, got %+v", result.Days)
	}

	var logs []*domain.LogRecord
	_ = store.WithTx(ctx, s, func(tx store.Tx) error {
		var err error
		logs, err = tx.Logs().Query(ctx, base, base.AddDate(0, 0, 3), store.LogFilter{Action: domain.ActionSimulation})
		return err
	})
	if len(logs) != 2 {
		t.Fatalf("expected exactly one simulation log record per simulated day, got %d", len(logs))
	}

	var reread *domain.Item
	_ = store.WithTx(ctx, s, func(tx store.Tx) error {
		var err error
		reread, err = tx.Items().Get(ctx, "perishable")
		return err
	})
	if !reread.Waste {
		t.Fatalf("expected item to be marked waste, got %+v", reread)
	}
}

func TestSimulateDaysAppliesUsagePlans(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.WithTx(ctx, s, func(tx store.Tx) error {
		if err := tx.Containers().Create(ctx, &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 100, D: 100, H: 100}}); err != nil {
			return err
		}
		return tx.Items().Create(ctx, &domain.Item{
			ID: "consumable", Name: "consumable", Base: geom.Dims{W: 10, D: 10, H: 10},
			UsageLimit: 1, RemainingUses: 1,
			Placement: &domain.Placement{ContainerID: "C1", Origin: [3]int{0, 0, 0}},
		})
	})

	engine := New(nil)
	var result *SimulateDayResult
	err := store.WithTx(ctx, s, func(tx store.Tx) error {
		var err error
		result, err = engine.SimulateDays(ctx, tx, "sim", base, 1, []UsagePlan{{ItemID: "consumable"}})
		return err
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(result.Days[0].ItemsUsed) != 1 || result.Days[0].ItemsUsed[0] != "consumable" {
		t.Fatalf("expected item to be used, got %+v", result.Days)
	}
	if len(result.Days[0].ItemsWasted) != 1 {
		t.Fatalf("expected single-use item to go to waste once exhausted, got %+v", result.Days)
	}
}
