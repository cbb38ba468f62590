// Package store implements the C8 store adapter contract (spec §4.8):
// transactional CRUD over containers, items, and logs, with per-container
// write serialization (spec §5).
package store

import (
	"context"
	"time"

	"github.com/stationcargo/cargostow/internal/domain"
)

// LogFilter narrows a log query to a container, an item, or an action kind.
// Zero values mean "no filter on this field".
type LogFilter struct {
	ItemID      string
	ContainerID string
	Action      domain.ActionKind
}

// ContainerRepo is the container half of the store contract.
type ContainerRepo interface {
	Get(ctx context.Context, id string) (*domain.Container, error)
	List(ctx context.Context) ([]*domain.Container, error)
	Create(ctx context.Context, c *domain.Container) error
	// Delete removes the container. Returns apperr.PreconditionFailed if it
	// still holds items.
	Delete(ctx context.Context, id string) error
}

// ItemRepo is the item half of the store contract.
type ItemRepo interface {
	Get(ctx context.Context, id string) (*domain.Item, error)
	GetByName(ctx context.Context, name string) ([]*domain.Item, error)
	List(ctx context.Context) ([]*domain.Item, error)
	ListByContainer(ctx context.Context, containerID string) ([]*domain.Item, error)
	ListWaste(ctx context.Context) ([]*domain.Item, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*domain.Item, error)
	Create(ctx context.Context, it *domain.Item) error
	// Update persists it. If it.Placement's container id differs from the
	// previously persisted value, both containers are locked in ascending
	// id order for the duration of the write (spec §5).
	Update(ctx context.Context, it *domain.Item) error
	Delete(ctx context.Context, id string) error
}

// LogRepo is the append-only log half of the store contract.
type LogRepo interface {
	Append(ctx context.Context, rec *domain.LogRecord) error
	Query(ctx context.Context, start, end time.Time, filter LogFilter) ([]*domain.LogRecord, error)
	// Latest returns the greatest timestamp among all log records, used by
	// the lifecycle engine to derive its logical clock (spec §4.5).
	Latest(ctx context.Context) (time.Time, bool, error)
}

// Tx is a single logical transaction over the store. Each write is applied
// to the shared store as it is made, so it is visible at once to this
// transaction and to every other one; reads see the current shared state,
// not a snapshot taken at Begin. Commit discards the recorded undo actions;
// Rollback replays them in reverse order.
type Tx interface {
	Containers() ContainerRepo
	Items() ItemRepo
	Logs() LogRepo
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store begins transactions against the persisted entity set.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func WithTx(ctx context.Context, s Store, fn func(tx Tx) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return nil
}
