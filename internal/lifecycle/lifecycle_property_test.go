package lifecycle

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

var _ = Describe("C5 simulation invariants", func() {
	It("never drives remaining_uses negative and never un-wastes an item", func() {
		rng := rand.New(rand.NewSource(99))
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		for trial := 0; trial < 10; trial++ {
			s := store.NewMemoryStore()
			ctx := context.Background()

			limit := 1 + rng.Intn(4)
			itemID := fmt.Sprintf("item-%d", trial)
			Expect(store.WithTx(ctx, s, func(tx store.Tx) error {
				if err := tx.Containers().Create(ctx, &domain.Container{ID: "C1", Zone: "z", Dims: geom.Dims{W: 100, D: 100, H: 100}}); err != nil {
					return err
				}
				return tx.Items().Create(ctx, &domain.Item{
					ID: itemID, Name: itemID, Base: geom.Dims{W: 10, D: 10, H: 10},
					UsageLimit: limit, RemainingUses: limit,
					Placement: &domain.Placement{ContainerID: "C1", Origin: [3]int{0, 0, 0}},
				})
			})).To(Succeed())

			engine := New(nil)
			days := 1 + rng.Intn(limit+3) // may exceed the item's remaining uses
			usagePlans := make([]UsagePlan, days)
			for i := range usagePlans {
				usagePlans[i] = UsagePlan{ItemID: itemID}
			}

			wasWaste := false
			for d := 0; d < days; d++ {
				Expect(store.WithTx(ctx, s, func(tx store.Tx) error {
					_, err := engine.SimulateDays(ctx, tx, "sim", base.AddDate(0, 0, d), 1, usagePlans[:1])
					return err
				})).To(Succeed())

				Expect(store.WithTx(ctx, s, func(tx store.Tx) error {
					it, err := tx.Items().Get(ctx, itemID)
					if err != nil {
						return err
					}
					Expect(it.RemainingUses).To(BeNumerically(">=", 0), "remaining_uses went negative on day %d", d)
					if wasWaste {
						Expect(it.Waste).To(BeTrue(), "waste flipped back to false on day %d", d)
					}
					wasWaste = it.Waste
					return nil
				})).To(Succeed())
			}
		}
	})
})
