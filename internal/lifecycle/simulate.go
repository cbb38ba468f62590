// Package lifecycle implements the C5 day-step simulation engine (spec
// §4.5): advancing a logical clock one or more days, decrementing item
// usage for scheduled consumption, and sweeping expired items to waste.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/store"
)

// UsagePlan names an item scheduled to be used (and its usage decremented)
// on a simulated day.
type UsagePlan struct {
	ItemID string
}

// DayResult summarizes the effects of simulating one day.
type DayResult struct {
	Date        time.Time
	ItemsUsed   []string
	ItemsWasted []string
}

// SimulateDayResult aggregates a multi-day simulation run: the resulting
// logical date, how many days were actually simulated, and the per-day
// breakdown (spec §4.5/§6).
type SimulateDayResult struct {
	DaysSimulated int
	NewDate       time.Time
	Days          []DayResult
}

// Engine advances the station's logical clock day by day.
type Engine struct {
	log *zap.Logger
}

// New constructs an Engine. log may be nil.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log.Named("lifecycle")}
}

// CurrentDate derives the station's logical clock from the most recent log
// record timestamp, per spec §4.5: the clock only ever advances, it never
// rewinds, and a store with no logs yet starts at asOf.
func (e *Engine) CurrentDate(ctx context.Context, tx store.Tx, asOf time.Time) (time.Time, error) {
	latest, ok, err := tx.Logs().Latest(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !ok || latest.Before(asOf) {
		return asOf, nil
	}
	return latest, nil
}

// SimulateDays advances n days from the current logical clock, applying
// usagePlans on each simulated day and sweeping expired items afterward.
func (e *Engine) SimulateDays(ctx context.Context, tx store.Tx, actorID string, asOf time.Time, n int, usagePlans []UsagePlan) (*SimulateDayResult, error) {
	if n <= 0 {
		return nil, apperr.Newf(apperr.InvalidInput, "days to simulate must be positive, got %d", n)
	}
	current, err := e.CurrentDate(ctx, tx, asOf)
	if err != nil {
		return nil, err
	}

	days := make([]DayResult, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Wrap(apperr.Cancelled, err)
		}
		day := current.AddDate(0, 0, 1)
		res, err := e.simulateOneDay(ctx, tx, actorID, day, usagePlans)
		if err != nil {
			return nil, err
		}
		days = append(days, res)
		current = day
	}
	return &SimulateDayResult{DaysSimulated: n, NewDate: current, Days: days}, nil
}

func (e *Engine) simulateOneDay(ctx context.Context, tx store.Tx, actorID string, day time.Time, usagePlans []UsagePlan) (DayResult, error) {
	res := DayResult{Date: day}

	for _, plan := range usagePlans {
		it, err := tx.Items().Get(ctx, plan.ItemID)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				continue
			}
			return res, err
		}
		if it.Waste || it.RemainingUses <= 0 {
			continue
		}
		it.RemainingUses--
		wentToWaste := it.RemainingUses == 0
		if wentToWaste {
			it.Waste = true
		}
		if err := tx.Items().Update(ctx, it); err != nil {
			return res, err
		}
		res.ItemsUsed = append(res.ItemsUsed, it.ID)
		if wentToWaste {
			res.ItemsWasted = append(res.ItemsWasted, it.ID)
		}
	}

	expiring, err := tx.Items().ListExpiring(ctx, day)
	if err != nil {
		return res, err
	}
	for _, it := range expiring {
		if it.Waste {
			continue
		}
		it.Waste = true
		if err := tx.Items().Update(ctx, it); err != nil {
			return res, err
		}
		res.ItemsWasted = append(res.ItemsWasted, it.ID)
	}

	if err := tx.Logs().Append(ctx, &domain.LogRecord{
		Timestamp: day, ActorID: actorID, Action: domain.ActionSimulation,
		Reason:  "day simulated",
		Details: simulationDetails(res),
	}); err != nil {
		return res, err
	}

	return res, nil
}

// simulationDetails renders one day's used/wasted item ids into the log
// record's free-form details field.
func simulationDetails(res DayResult) string {
	var b strings.Builder
	if len(res.ItemsUsed) > 0 {
		b.WriteString("used=")
		b.WriteString(strings.Join(res.ItemsUsed, ","))
	}
	if len(res.ItemsWasted) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("wasted=")
		b.WriteString(strings.Join(res.ItemsWasted, ","))
	}
	return b.String()
}
