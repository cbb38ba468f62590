package store

import (
	"context"
	"testing"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
)

func TestMemoryStoreContainerLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := WithTx(ctx, s, func(tx Tx) error {
		return tx.Containers().Create(ctx, &domain.Container{ID: "A", Zone: "Z", Dims: geom.Dims{W: 100, D: 100, H: 100}})
	})
	if err != nil {
		t.Fatalf("create container: %v", err)
	}

	var got *domain.Container
	err = WithTx(ctx, s, func(tx Tx) error {
		var err error
		got, err = tx.Containers().Get(ctx, "A")
		return err
	})
	if err != nil || got.Zone != "Z" {
		t.Fatalf("expected container A with zone Z, got %+v err=%v", got, err)
	}
}

func TestMemoryStoreContainerDeleteWhileNonEmptyFails(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = WithTx(ctx, s, func(tx Tx) error {
		return tx.Containers().Create(ctx, &domain.Container{ID: "A", Zone: "Z", Dims: geom.Dims{W: 100, D: 100, H: 100}})
	})
	_ = WithTx(ctx, s, func(tx Tx) error {
		return tx.Items().Create(ctx, &domain.Item{
			ID: "I", Base: geom.Dims{W: 10, D: 10, H: 10},
			Placement: &domain.Placement{ContainerID: "A", Origin: [3]int{0, 0, 0}},
		})
	})

	err := WithTx(ctx, s, func(tx Tx) error {
		return tx.Containers().Delete(ctx, "A")
	})
	if !apperr.Is(err, apperr.PreconditionFailed) {
		t.Fatalf("expected PreconditionFailed deleting non-empty container, got %v", err)
	}
}

func TestMemoryStoreRollbackUndoesWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	boom := apperr.New(apperr.Internal, "boom")
	err := WithTx(ctx, s, func(tx Tx) error {
		if err := tx.Containers().Create(ctx, &domain.Container{ID: "A", Zone: "Z", Dims: geom.Dims{W: 10, D: 10, H: 10}}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	err = WithTx(ctx, s, func(tx Tx) error {
		_, err := tx.Containers().Get(ctx, "A")
		return err
	})
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected rollback to undo the container creation, got %v", err)
	}
}
