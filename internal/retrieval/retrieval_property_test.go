package retrieval

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
	"github.com/stationcargo/cargostow/internal/store"
)

var _ = Describe("C4 retrieval invariants", func() {
	It("only removes direct blockers or their support-closure, and restores everything but the target", func() {
		rng := rand.New(rand.NewSource(7))
		fixedNow := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

		for trial := 0; trial < 15; trial++ {
			s := store.NewMemoryStore()
			ctx := context.Background()

			target := placedItem("target", [3]int{0, 10, 0}, geom.Dims{W: 10, D: 10, H: 10}, "C1", 50)
			blocker := placedItem("blocker", [3]int{0, 0, 0}, geom.Dims{W: 10, D: 10, H: 10}, "C1", 20)

			tower := rng.Intn(3) // 0..2 items stacked directly above the blocker
			items := []*domain.Item{target, blocker}
			for i := 0; i < tower; i++ {
				above := placedItem(fmt.Sprintf("stacked-%d", i), [3]int{0, 0, (i + 1) * 10}, geom.Dims{W: 10, D: 10, H: 10}, "C1", 5)
				items = append(items, above)
			}

			Expect(store.WithTx(ctx, s, func(tx store.Tx) error {
				if err := tx.Containers().Create(ctx, &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 100, D: 100, H: 100}}); err != nil {
					return err
				}
				for _, it := range items {
					if err := tx.Items().Create(ctx, it); err != nil {
						return err
					}
				}
				return nil
			})).To(Succeed())

			planner := New(nil, fixedNow)
			var plan *Plan
			Expect(store.WithTx(ctx, s, func(tx store.Tx) error {
				var err error
				plan, err = planner.Plan(ctx, tx, target)
				return err
			})).To(Succeed())

			direct := directBlockers(target, items)
			closure := supportClosure(direct, items)
			allowed := map[string]bool{}
			for _, it := range closure {
				allowed[it.ID] = true
			}

			originalByID := map[string]*domain.Item{}
			for _, it := range items {
				originalByID[it.ID] = it
			}

			removed := map[string]bool{}
			restored := map[string]bool{}
			for _, step := range plan.Steps {
				switch step.Action {
				case StepRemove:
					Expect(allowed).To(HaveKey(step.ItemID), "removed %s was neither a direct blocker nor in its support closure", step.ItemID)
					removed[step.ItemID] = true
				case StepPlaceBack:
					orig := originalByID[step.ItemID]
					Expect(step.Origin).To(Equal(orig.Placement.Origin), "placeBack for %s didn't restore its original origin", step.ItemID)
					restored[step.ItemID] = true
				case StepRetrieve:
					Expect(step.ItemID).To(Equal(target.ID))
				}
			}
			Expect(restored).To(Equal(removed), "every removed item must be placed back")
		}
	})
})
