package placement

import (
	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
)

func validateRequest(items []*domain.Item, containers []*domain.Container) error {
	if len(containers) == 0 {
		return apperr.New(apperr.InvalidInput, "placement request has no containers")
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID != "" {
			if seen[it.ID] {
				return apperr.Newf(apperr.InvalidInput, "duplicate item id %q in placement request", it.ID)
			}
			seen[it.ID] = true
		}
		if err := it.Validate(); err != nil {
			return apperr.Wrapf(apperr.InvalidInput, err, "item %q", it.ID)
		}
	}
	cseen := make(map[string]bool, len(containers))
	for _, c := range containers {
		if cseen[c.ID] {
			return apperr.Newf(apperr.InvalidInput, "duplicate container id %q in placement request", c.ID)
		}
		cseen[c.ID] = true
	}
	return nil
}
