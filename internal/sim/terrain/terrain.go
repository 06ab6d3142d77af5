// Package terrain builds the initial city: tile grid, deposits, starting buildings and
// the explored area around them.
package terrain

import (
	"fmt"
	"math"
	"math/rand/v2"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/tuning"
)

// Initialize fills an empty GameState for st.City. The result depends only on st.Seed and
// the catalogs.
func Initialize(st *state.GameState, cats *catalogs.Catalogs, tun tuning.Tuning) error {
	if st.Tiles.Len() != 0 {
		return fmt.Errorf("terrain: state already has %d tiles", st.Tiles.Len())
	}
	city, err := cats.City(st.City)
	if err != nil {
		return err
	}
	hqDef, err := cats.Building(cats.Headquarter())
	if err != nil {
		return err
	}

	center := state.XY(city.Width/2, city.Height/2)
	deposits := state.SortedKeys(city.Deposits)
	for y := 0; y < city.Height; y++ {
		for x := 0; x < city.Width; x++ {
			xy := state.XY(x, y)
			tile := state.Tile{XY: xy, Deposit: map[string]bool{}}
			if xy != center {
				for i, res := range deposits {
					if unit(Hash3(st.Seed, x, y, i)) < city.Deposits[res] {
						tile.Deposit[res] = true
					}
				}
			}
			if err := st.Tiles.Add(tile); err != nil {
				return err
			}
		}
	}
	st.Tiles.Get(center).Building = state.NewCompleted(hqDef, 1)

	for _, id := range cats.Techs.IDs {
		if cats.Techs.ByID[id].Column == 0 {
			st.UnlockedTech[id] = true
		}
	}
	if len(city.Regions) > 0 {
		st.UnlockedRegions[city.Regions[0]] = true
	}

	// One starter extractor per deposit-based building the opening techs allow.
	for _, id := range startingExtractors(st, cats) {
		def := cats.Buildings.ByID[id]
		ensureDeposit(st, def.Deposit, center)
		if xy, ok := nearestFree(st, center, def.Deposit); ok {
			st.Tiles.Get(xy).Building = state.NewCompleted(def, 1)
		}
	}

	if len(city.NaturalWonders) > 0 {
		rng := rand.New(rand.NewPCG(uint64(st.Seed), 0x6e61747572616c))
		var free []state.TileXY
		st.Tiles.Each(func(t *state.Tile) {
			if t.Building == nil && len(t.Deposit) == 0 {
				free = append(free, t.XY)
			}
		})
		rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
		for i, id := range city.NaturalWonders {
			if i >= len(free) {
				break
			}
			def, err := cats.Building(id)
			if err != nil {
				return err
			}
			st.Tiles.Get(free[i]).Building = state.NewCompleted(def, 1)
		}
	}

	var built []state.TileXY
	st.Tiles.Each(func(t *state.Tile) {
		if t.Building != nil {
			built = append(built, t.XY)
		}
	})
	for _, xy := range built {
		Explore(st, xy, tun.ExploreRadius)
	}
	return nil
}

func startingExtractors(st *state.GameState, cats *catalogs.Catalogs) []string {
	seen := map[string]bool{}
	for _, tech := range st.UnlockedTechIDs() {
		for _, b := range cats.Techs.ByID[tech].UnlockBuildings {
			if def, ok := cats.Buildings.ByID[b]; ok && def.Deposit != "" {
				seen[b] = true
			}
		}
	}
	return state.SortedKeys(seen)
}

// ensureDeposit guarantees at least one empty tile carries res, so the starter extractor always
// has a home even on an unlucky seed.
func ensureDeposit(st *state.GameState, res string, center state.TileXY) {
	found := false
	st.Tiles.Each(func(t *state.Tile) {
		if t.Deposit[res] && t.Building == nil {
			found = true
		}
	})
	if found {
		return
	}
	n := st.Tiles.Len()
	for i := 0; i < n; i++ {
		t := st.Tiles.At(int(Hash2(st.Seed, i, len(res)) % uint64(n)))
		if t.XY != center && t.Building == nil {
			t.Deposit[res] = true
			return
		}
	}
}

// nearestFree returns the empty tile with deposit res closest to from. Ties go to the
// earlier tile in arena order.
func nearestFree(st *state.GameState, from state.TileXY, res string) (state.TileXY, bool) {
	best := math.Inf(1)
	var out state.TileXY
	found := false
	st.Tiles.Each(func(t *state.Tile) {
		if t.Building != nil || !t.Deposit[res] {
			return
		}
		if d := from.Distance(t.XY); d < best {
			best, out, found = d, t.XY, true
		}
	})
	return out, found
}

// Explore marks every tile within radius of center as explored and returns the tiles
// that were newly revealed, in row-major order.
func Explore(st *state.GameState, center state.TileXY, radius int) []state.TileXY {
	var out []state.TileXY
	r := float64(radius)
	for y := center.Y() - radius; y <= center.Y()+radius; y++ {
		for x := center.X() - radius; x <= center.X()+radius; x++ {
			if x < 0 || y < 0 {
				continue
			}
			xy := state.XY(x, y)
			t := st.Tiles.Get(xy)
			if t == nil || t.Explored || center.Distance(xy) > r {
				continue
			}
			t.Explored = true
			out = append(out, xy)
		}
	}
	return out
}
