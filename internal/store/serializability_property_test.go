package store

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
)

var _ = Describe("C8 store serializability", func() {
	It("produces the same end state for concurrent disjoint-container transactions as some serial order", func() {
		const containers = 5
		const itemsPerContainer = 20

		s := NewMemoryStore()
		ctx := context.Background()

		Expect(WithTx(ctx, s, func(tx Tx) error {
			for c := 0; c < containers; c++ {
				if err := tx.Containers().Create(ctx, &domain.Container{
					ID: fmt.Sprintf("C%d", c), Zone: "z", Dims: geom.Dims{W: 1000, D: 1000, H: 1000},
				}); err != nil {
					return err
				}
			}
			return nil
		})).To(Succeed())

		var wg sync.WaitGroup
		errs := make(chan error, containers)
		for c := 0; c < containers; c++ {
			c := c
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < itemsPerContainer; i++ {
					err := WithTx(ctx, s, func(tx Tx) error {
						return tx.Items().Create(ctx, &domain.Item{
							ID: fmt.Sprintf("C%d-I%d", c, i), Name: "x", Base: geom.Dims{W: 1, D: 1, H: 1},
							UsageLimit: 1, RemainingUses: 1,
							Placement: &domain.Placement{ContainerID: fmt.Sprintf("C%d", c), Origin: [3]int{i, 0, 0}},
						})
					})
					if err != nil {
						errs <- err
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}

		var all []*domain.Item
		Expect(WithTx(ctx, s, func(tx Tx) error {
			var err error
			all, err = tx.Items().List(ctx)
			return err
		})).To(Succeed())

		Expect(all).To(HaveLen(containers * itemsPerContainer))
		seen := map[string]bool{}
		for _, it := range all {
			Expect(seen[it.ID]).To(BeFalse(), "duplicate item id %s: a lost/duplicated write broke serializability", it.ID)
			seen[it.ID] = true
		}
	})
})
