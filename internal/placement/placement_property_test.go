package placement

import (
	"context"
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
	"github.com/stationcargo/cargostow/internal/store"
)

var _ = Describe("C3 placement invariants", func() {
	It("never produces a placement violating I1 (containment) or I2 (non-overlap)", func() {
		rng := rand.New(rand.NewSource(42))

		for trial := 0; trial < 20; trial++ {
			s := store.NewMemoryStore()
			ctx := context.Background()

			containers := make([]*domain.Container, 0, 3)
			Expect(store.WithTx(ctx, s, func(tx store.Tx) error {
				for i := 0; i < 3; i++ {
					c := &domain.Container{
						ID:   fmt.Sprintf("C%d", i),
						Zone: "z",
						Dims: geom.Dims{W: 20 + rng.Intn(30), D: 20 + rng.Intn(30), H: 20 + rng.Intn(30)},
					}
					containers = append(containers, c)
					if err := tx.Containers().Create(ctx, c); err != nil {
						return err
					}
				}
				return nil
			})).To(Succeed())

			items := make([]*domain.Item, 0, 10)
			for i := 0; i < 10; i++ {
				items = append(items, &domain.Item{
					ID: fmt.Sprintf("I%d", i), Name: fmt.Sprintf("I%d", i),
					Base:          geom.Dims{W: 1 + rng.Intn(15), D: 1 + rng.Intn(15), H: 1 + rng.Intn(15)},
					Priority:      rng.Intn(101),
					UsageLimit:    1,
					RemainingUses: 1,
				})
			}

			planner := New(nil)
			Expect(store.WithTx(ctx, s, func(tx store.Tx) error {
				_, err := planner.Place(ctx, tx, items, containers)
				return err
			})).To(Succeed())

			Expect(store.WithTx(ctx, s, func(tx store.Tx) error {
				placed, err := tx.Items().List(ctx)
				if err != nil {
					return err
				}
				byContainer := map[string][]*domain.Item{}
				for _, it := range placed {
					if !it.IsPlaced() {
						continue
					}
					c := containerByID(containers, it.Placement.ContainerID)
					box := it.EffectiveBox()
					Expect(geom.Contains(c.Dims, box)).To(BeTrue(), "I1 violated for %s in %s", it.ID, c.ID)
					byContainer[c.ID] = append(byContainer[c.ID], it)
				}
				for _, group := range byContainer {
					for i := range group {
						for j := range group {
							if i == j {
								continue
							}
							Expect(geom.Overlap(group[i].EffectiveBox(), group[j].EffectiveBox())).To(BeFalse(),
								"I2 violated between %s and %s", group[i].ID, group[j].ID)
						}
					}
				}
				return nil
			})).To(Succeed())
		}
	})
})

func containerByID(containers []*domain.Container, id string) *domain.Container {
	for _, c := range containers {
		if c.ID == id {
			return c
		}
	}
	return nil
}
