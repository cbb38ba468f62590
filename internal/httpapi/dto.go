package httpapi

import (
	"time"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
)

type containerReq struct {
	ID   string `json:"id" binding:"required"`
	Zone string `json:"zone"`
	W    int    `json:"width"`
	D    int    `json:"depth"`
	H    int    `json:"height"`
}

func (r containerReq) toDomain() *domain.Container {
	return &domain.Container{ID: r.ID, Zone: r.Zone, Dims: geom.Dims{W: r.W, D: r.D, H: r.H}}
}

type itemReq struct {
	ID            string     `json:"id"`
	Name          string     `json:"name" binding:"required"`
	W             int        `json:"width"`
	D             int        `json:"depth"`
	H             int        `json:"height"`
	Mass          float64    `json:"mass"`
	Priority      int        `json:"priority"`
	ExpiryAt      *time.Time `json:"expiry_at,omitempty"`
	UsageLimit    int        `json:"usage_limit"`
	PreferredZone string     `json:"preferred_zone"`
}

func (r itemReq) toDomain() *domain.Item {
	return &domain.Item{
		ID: r.ID, Name: r.Name, Base: geom.Dims{W: r.W, D: r.D, H: r.H}, Mass: r.Mass,
		Priority: r.Priority, ExpiryAt: r.ExpiryAt, UsageLimit: r.UsageLimit, RemainingUses: r.UsageLimit,
		PreferredZone: r.PreferredZone,
	}
}

type placementReq struct {
	Items        []itemReq `json:"items" binding:"required"`
	ContainerIDs []string  `json:"container_ids"` // empty means "every container"
}

type retrieveReq struct {
	Name   string `json:"name"`
	ItemID string `json:"item_id"`
}

type returnPlanReq struct {
	MaxVolume int     `json:"max_volume"`
	MaxMass   float64 `json:"max_mass"`
}

type completeUndockingReq struct {
	ContainerID string    `json:"undocking_container_id" binding:"required"`
	Timestamp   time.Time `json:"timestamp"`
}

type placeAtReq struct {
	ItemID      string           `json:"item_id" binding:"required"`
	UserID      string           `json:"user_id"`
	Timestamp   time.Time        `json:"timestamp"`
	ContainerID string           `json:"container_id" binding:"required"`
	Position    [3]int           `json:"position"`
	Orientation geom.Orientation `json:"orientation"`
}

type simulateDayReq struct {
	Days         int      `json:"days"`
	UsageItemIDs []string `json:"usage_item_ids"`
}
