// Package tickdata holds the per-tick accumulator and its frozen snapshot.
//
// Next is the single mutable buffer of the tick being simulated. It is owned by the
// world orchestrator and handed to the tick collaborators; nothing outside the tick
// reads it. Freeze deep-copies it into a Frozen value whose fields can no longer be
// reached for writing, so a Frozen tick may be read from any goroutine.
package tickdata

import (
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
)

type Reason string

const (
	ReasonNotEnoughResources Reason = "not_enough_resources"
	ReasonNotEnoughWorkers   Reason = "not_enough_workers"
	ReasonStorageFull        Reason = "storage_full"
	ReasonUnderConstruction  Reason = "under_construction"
)

type Happiness struct {
	Value    int            `json:"value"`
	Positive map[string]int `json:"positive,omitempty"`
	Negative map[string]int `json:"negative,omitempty"`
}

type Workers struct {
	Total int `json:"total"`
	Busy  int `json:"busy"`
	Idle  int `json:"idle"`
}

type SourcedMultiplier struct {
	catalogs.Multiplier
	Source string `json:"source"`
}

type SourcedGlobal struct {
	catalogs.GlobalBonus
	Source string `json:"source"`
}

// TileDelta is the signed change of one resource on one tile during the tick.
type TileDelta struct {
	XY       state.TileXY `json:"xy"`
	Resource string       `json:"resource"`
	Amount   float64      `json:"amount"`
}

type Floater struct {
	XY     state.TileXY       `json:"xy"`
	Amount map[string]float64 `json:"amount"`
}

// Next accumulates the results of the tick in progress.
type Next struct {
	Tick uint64

	Happiness          Happiness
	Workers            Workers
	ScienceFromWorkers float64

	BuildingMultipliers map[string][]SourcedMultiplier
	GlobalBonuses       []SourcedGlobal

	Production     []TileDelta
	NotProducing   map[state.TileXY]Reason
	ResourceTotals map[string]float64
	Floaters       []Floater

	CompletedTransports []state.JobID
	StalledTransports   []state.JobID
	AbortedTransports   []state.JobID
	FuelUsed            float64
}

// NewNext returns an empty accumulator for the tick numbered tick.
func NewNext(tick uint64) *Next {
	return &Next{
		Tick:                tick,
		BuildingMultipliers: map[string][]SourcedMultiplier{},
		NotProducing:        map[state.TileXY]Reason{},
		ResourceTotals:      map[string]float64{},
	}
}

func (n *Next) AddBuildingMultiplier(building string, m catalogs.Multiplier, source string) {
	if m.IsZero() {
		return
	}
	n.BuildingMultipliers[building] = append(n.BuildingMultipliers[building], SourcedMultiplier{Multiplier: m, Source: source})
}

func (n *Next) AddGlobal(g catalogs.GlobalBonus, source string) {
	if g.IsZero() {
		return
	}
	n.GlobalBonuses = append(n.GlobalBonuses, SourcedGlobal{GlobalBonus: g, Source: source})
}

// BuildingMultiplier sums every bonus registered for building so far this tick.
func (n *Next) BuildingMultiplier(building string) catalogs.Multiplier {
	var out catalogs.Multiplier
	for _, m := range n.BuildingMultipliers[building] {
		out.Output += m.Output
		out.Worker += m.Worker
		out.Storage += m.Storage
	}
	return out
}

func (n *Next) Global() catalogs.GlobalBonus {
	var out catalogs.GlobalBonus
	for _, g := range n.GlobalBonuses {
		out.Happiness += g.Happiness
		out.SciencePerIdleWorker += g.SciencePerIdleWorker
		out.SciencePerBusyWorker += g.SciencePerBusyWorker
	}
	return out
}

func (n *Next) RecordDelta(xy state.TileXY, res string, amount float64) {
	if amount == 0 {
		return
	}
	n.Production = append(n.Production, TileDelta{XY: xy, Resource: res, Amount: amount})
}

func (n *Next) MarkNotProducing(xy state.TileXY, r Reason) { n.NotProducing[xy] = r }
