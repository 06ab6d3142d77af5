// Package production holds the per-tick collaborators the world orchestrator calls:
// the per-tile production rule, tech and great person bonuses, market prices,
// happiness and worker science.
package production

import (
	"math"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/events"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/terrain"
	"idlecity.ai/internal/sim/tickdata"
	"idlecity.ai/internal/sim/tuning"
)

// ScienceResource is credited to the headquarters instead of the producing building.
const ScienceResource = "Science"

// Env is what a rule may touch during one tick.
type Env struct {
	State    *state.GameState
	Catalogs *catalogs.Catalogs
	Tuning   tuning.Tuning
	Next     *tickdata.Next
	Bus      *events.Bus
	Offline  bool

	// Headquarter is the city warehouse: construction sites draw missing materials from
	// it and science is stored there.
	Headquarter state.TileXY
}

func (e *Env) freeWorkers() int { return e.Next.Workers.Total - e.Next.Workers.Busy }

func (e *Env) hq() *state.Building { return e.State.Tiles.BuildingAt(e.Headquarter) }

// Rule advances one building for one tick. It is called once per built tile, in arena
// order; index is the tile's arena position.
type Rule interface {
	Tick(env *Env, tile *state.Tile, index int) error
}

type DefaultRule struct{}

func (DefaultRule) Tick(env *Env, tile *state.Tile, index int) error {
	b := tile.Building
	def, err := env.Catalogs.Building(b.Type)
	if err != nil {
		return err
	}
	if !b.IsCompleted() {
		return construct(env, tile, def)
	}
	switch v := b.Variant.(type) {
	case *state.Market:
		trade(env, tile, def, v)
	case state.Production:
		produce(env, tile, def, index)
	}
	return nil
}

func construct(env *Env, tile *state.Tile, def catalogs.BuildingDef) error {
	b := tile.Building
	level := float64(b.TargetLevel())
	if !b.Resources.Has(def.Cost, level) {
		if hq := env.hq(); hq != nil && hq != b {
			for _, res := range state.SortedKeys(def.Cost) {
				missing := def.Cost[res]*level - b.Resources.Get(res)
				if missing <= 0 {
					continue
				}
				got := hq.Resources.Take(res, missing)
				b.Resources.Add(res, got)
				env.Next.RecordDelta(env.Headquarter, res, -got)
				env.Next.RecordDelta(tile.XY, res, got)
			}
		}
		if !b.Resources.Has(def.Cost, level) {
			env.Next.MarkNotProducing(tile.XY, tickdata.ReasonNotEnoughResources)
			return nil
		}
	}

	b.Progress++
	if b.Progress < def.BuildTicks {
		env.Next.MarkNotProducing(tile.XY, tickdata.ReasonUnderConstruction)
		return nil
	}
	for _, res := range state.SortedKeys(def.Cost) {
		used := b.Resources.Take(res, def.Cost[res]*level)
		env.Next.RecordDelta(tile.XY, res, -used)
	}
	if err := b.Complete(); err != nil {
		return err
	}
	if env.Bus != nil {
		env.Bus.BuildingComplete.Emit(events.BuildingComplete{XY: tile.XY, Type: b.Type, Level: b.Level})
	}
	for _, xy := range terrain.Explore(env.State, tile.XY, env.Tuning.ExploreRadius) {
		if env.Bus != nil {
			env.Bus.TileExplored.Emit(events.TileExplored{XY: xy})
		}
	}
	return nil
}

func produce(env *Env, tile *state.Tile, def catalogs.BuildingDef, index int) {
	b := tile.Building
	if len(def.Output) == 0 {
		return
	}
	level := float64(b.Level)
	mult := env.Next.BuildingMultiplier(def.ID)

	need := def.Workers * b.Level
	if need > env.freeWorkers() {
		env.Next.MarkNotProducing(tile.XY, tickdata.ReasonNotEnoughWorkers)
		return
	}
	if def.Deposit != "" && !tile.HasDeposit(def.Deposit) {
		env.Next.MarkNotProducing(tile.XY, tickdata.ReasonNotEnoughResources)
		return
	}
	if !b.Resources.Has(def.Input, level) {
		env.Next.MarkNotProducing(tile.XY, tickdata.ReasonNotEnoughResources)
		return
	}

	capacity := def.Storage * level * (1 + mult.Storage)
	hq := env.hq()
	outputs := state.SortedKeys(def.Output)
	produced := make(map[string]float64, len(outputs))
	for _, res := range outputs {
		amount := def.Output[res] * level * (1 + mult.Output)
		if res == ScienceResource && hq != nil {
			produced[res] = amount
			continue
		}
		if capacity > 0 {
			amount = math.Min(amount, capacity-b.Resources.Get(res))
		}
		if amount > 0 {
			produced[res] = amount
		}
	}
	if len(produced) == 0 {
		env.Next.MarkNotProducing(tile.XY, tickdata.ReasonStorageFull)
		return
	}

	for _, res := range state.SortedKeys(def.Input) {
		used := b.Resources.Take(res, def.Input[res]*level)
		env.Next.RecordDelta(tile.XY, res, -used)
	}
	for _, res := range state.SortedKeys(produced) {
		if res == ScienceResource && hq != nil {
			hq.Resources.Add(res, produced[res])
			env.Next.RecordDelta(env.Headquarter, res, produced[res])
			continue
		}
		b.Resources.Add(res, produced[res])
		env.Next.RecordDelta(tile.XY, res, produced[res])
	}
	env.Next.Workers.Busy += need

	env.Next.Floaters = append(env.Next.Floaters, tickdata.Floater{XY: tile.XY, Amount: produced})
	if env.Bus == nil {
		return
	}
	env.Bus.ProductionComplete.Emit(events.ProductionComplete{XY: tile.XY, Type: b.Type, Offset: index})
	if !env.Offline {
		env.Bus.Floater.Emit(events.Floater{XY: tile.XY, Amount: copyAmounts(produced)})
	}
}

func trade(env *Env, tile *state.Tile, def catalogs.BuildingDef, m *state.Market) {
	b := tile.Building
	need := def.Workers * b.Level
	if need > env.freeWorkers() {
		env.Next.MarkNotProducing(tile.XY, tickdata.ReasonNotEnoughWorkers)
		return
	}
	mult := env.Next.BuildingMultiplier(def.ID)
	volume := def.MarketVolume * float64(b.Level) * (1 + mult.Output)
	traded := false
	for _, o := range m.Offers {
		got := b.Resources.Take(o.Sell, volume)
		if got == 0 {
			continue
		}
		b.Resources.Add(o.Buy, got*o.Rate)
		env.Next.RecordDelta(tile.XY, o.Sell, -got)
		env.Next.RecordDelta(tile.XY, o.Buy, got*o.Rate)
		traded = true
	}
	if !traded {
		env.Next.MarkNotProducing(tile.XY, tickdata.ReasonNotEnoughResources)
		return
	}
	env.Next.Workers.Busy += need
}

func copyAmounts(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
