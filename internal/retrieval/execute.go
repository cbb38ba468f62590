package retrieval

import (
	"context"
	"time"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/store"
)

// Execute applies a planned retrieval's side effects: decrementing the
// item's remaining uses, flagging it waste once exhausted, clearing its
// placement, and appending a log record (spec §4.4 edge cases / §3 usage
// semantics). It does not move the blocking items described by plan.Steps;
// that is the caller's (or a simulated crew's) responsibility.
func Execute(ctx context.Context, tx store.Tx, actorID string, item *domain.Item, now time.Time) error {
	if item.RemainingUses > 0 {
		item.RemainingUses--
	}
	if item.RemainingUses == 0 {
		item.Waste = true
	}
	fromCtnr := ""
	if item.Placement != nil {
		fromCtnr = item.Placement.ContainerID
	}
	item.Placement = nil

	if err := tx.Items().Update(ctx, item); err != nil {
		return err
	}
	return tx.Logs().Append(ctx, &domain.LogRecord{
		Timestamp: now,
		ActorID:   actorID,
		Action:    domain.ActionRetrieval,
		ItemID:    item.ID,
		FromCtnr:  fromCtnr,
	})
}
