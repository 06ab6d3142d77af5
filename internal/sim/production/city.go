package production

import (
	"math"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/tickdata"
	"idlecity.ai/internal/sim/tuning"
)

// WorkerCapacity sums the workers provided by completed housing and headquarters,
// including the worker multipliers registered on next.
func WorkerCapacity(st *state.GameState, cats *catalogs.Catalogs, next *tickdata.Next) int {
	total := 0.0
	st.Tiles.Each(func(t *state.Tile) {
		b := t.Building
		if b == nil || !b.IsCompleted() {
			return
		}
		def := cats.Buildings.ByID[b.Type]
		if def.ProvidesWorkers == 0 {
			return
		}
		m := next.BuildingMultiplier(def.ID)
		total += float64(def.ProvidesWorkers*b.Level) * (1 + m.Worker)
	})
	return int(math.Floor(total))
}

// Happiness is base city happiness plus wonders and global bonuses, minus one point per
// buildingsPerUnhappiness ordinary buildings.
func Happiness(st *state.GameState, cats *catalogs.Catalogs, next *tickdata.Next, buildingsPerUnhappiness int) tickdata.Happiness {
	h := tickdata.Happiness{Positive: map[string]int{}, Negative: map[string]int{}}
	if city, ok := cats.Cities.ByID[st.City]; ok && city.BaseHappiness != 0 {
		h.Positive["Base"] = city.BaseHappiness
	}
	count := 0
	st.Tiles.Each(func(t *state.Tile) {
		b := t.Building
		if b == nil {
			return
		}
		def := cats.Buildings.ByID[b.Type]
		switch def.Kind {
		case catalogs.KindWonder, catalogs.KindNaturalWonder:
			if b.IsCompleted() && def.Happiness != 0 {
				h.Positive[def.ID] += def.Happiness * b.Level
			}
		case catalogs.KindHeadquarter:
		default:
			count++
		}
	})
	for _, g := range next.GlobalBonuses {
		if g.Happiness != 0 {
			h.Positive[g.Source] += g.Happiness
		}
	}
	if buildingsPerUnhappiness > 0 {
		if n := count / buildingsPerUnhappiness; n > 0 {
			h.Negative["Buildings"] = n
		}
	}
	for _, v := range h.Positive {
		h.Value += v
	}
	for _, v := range h.Negative {
		h.Value -= v
	}
	return h
}

func ScienceFromWorkers(w tickdata.Workers, tun tuning.Tuning, g catalogs.GlobalBonus) float64 {
	return float64(w.Idle)*(tun.SciencePerIdleWorker+g.SciencePerIdleWorker) +
		float64(w.Busy)*(tun.SciencePerBusyWorker+g.SciencePerBusyWorker)
}
