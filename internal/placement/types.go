// Package placement implements the C3 placement planner (spec §4.3):
// assigning new items to containers by priority and zone affinity, with
// single-swap rearrangement when no direct fit exists.
package placement

import "github.com/stationcargo/cargostow/internal/geom"

// Placement is one (item, container, position, orientation) assignment.
type Placement struct {
	ItemID      string
	ContainerID string
	Origin      [3]int
	Orientation geom.Orientation
}

// StepAction classifies a rearrangement step.
type StepAction string

const (
	StepRemove StepAction = "remove"
	StepPlace  StepAction = "place"
)

// RearrangementStep is one move emitted while making room for a higher
// priority item (spec §4.3's three-step remove/place/place sequence).
type RearrangementStep struct {
	Step        int
	Action      StepAction
	ItemID      string
	FromCtnr    string
	ToCtnr      string
	Origin      [3]int
	Orientation geom.Orientation
}

// Result is the planner's output for one placement request.
type Result struct {
	Placements     []Placement
	Rearrangements []RearrangementStep
	Unplaced       []string // item ids that could not be placed; not an error
}
