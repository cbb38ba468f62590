// Package domain holds the entities of the cargo stowage data model:
// containers, items, placements, and log records (spec §3).
package domain

import "github.com/stationcargo/cargostow/internal/geom"

// Container is an axis-aligned stowage volume. Identity and dimensions are
// immutable once created; a container may only be destroyed while empty.
type Container struct {
	ID   string    `json:"id"`
	Zone string    `json:"zone"`
	Dims geom.Dims `json:"dims"` // interior W,D,H in centimeters
}

// Volume returns the container's interior volume in cubic centimeters.
func (c *Container) Volume() int { return c.Dims.Volume() }

// DeepClone returns a copy of the container. Containers are immutable, but
// callers that hold transaction-scoped snapshots still want value isolation.
func (c *Container) DeepClone() *Container {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
