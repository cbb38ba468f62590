// Package retrieval implements the C4 retrieval planner (spec §4.4):
// disambiguating items by name, computing blocking items, and emitting the
// remove/set-aside/retrieve/place-back step sequence needed to reach one.
package retrieval

import "github.com/stationcargo/cargostow/internal/geom"

// StepAction classifies one step of a retrieval plan.
type StepAction string

const (
	StepRemove    StepAction = "remove"
	StepSetAside  StepAction = "set_aside"
	StepRetrieve  StepAction = "retrieve"
	StepPlaceBack StepAction = "place_back"
)

// Step is one action in the ordered retrieval plan.
type Step struct {
	Sequence    int
	Action      StepAction
	ItemID      string
	ContainerID string
	Origin      [3]int
	Orientation geom.Orientation
}

// Plan is the full retrieval plan for one target item.
type Plan struct {
	ItemID string
	Steps  []Step
}

// Candidate is a name-disambiguation candidate with its computed score.
type Candidate struct {
	ItemID        string
	BlockerCount  int
	DaysToExpiry  int
	Priority      int
	Score         float64
}
