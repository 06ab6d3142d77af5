package production

import (
	"math/rand/v2"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
)

// UpdatePrices regenerates market offers once every interval ticks. Markets without
// offers (newly completed ones) are filled immediately. It reports whether the periodic
// update ran.
func UpdatePrices(st *state.GameState, cats *catalogs.Catalogs, interval uint64) bool {
	due := st.Tick-st.LastPriceUpdated >= interval
	var tradable []string
	for _, id := range cats.Resources.IDs {
		if r := cats.Resources.ByID[id]; r.Tradable && r.BasePrice > 0 {
			tradable = append(tradable, id)
		}
	}
	st.Tiles.Each(func(t *state.Tile) {
		if t.Building == nil || !t.Building.IsCompleted() {
			return
		}
		m, ok := t.Building.Variant.(*state.Market)
		if !ok || (!due && len(m.Offers) > 0) {
			return
		}
		slots := cats.Buildings.ByID[t.Building.Type].MarketSlots
		m.Offers = Offers(st.Seed, st.Tick, t.XY, cats, tradable, slots)
	})
	if due {
		st.LastPriceUpdated = st.Tick
	}
	return due
}

// Offers draws slots offers from a generator keyed on (seed, tick, xy). Rates follow the
// base price ratio with up to 20% noise either way.
func Offers(seed int64, tick uint64, xy state.TileXY, cats *catalogs.Catalogs, tradable []string, slots int) []state.MarketOffer {
	if len(tradable) < 2 || slots <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(uint64(seed), tick<<32^uint64(xy)))
	out := make([]state.MarketOffer, 0, slots)
	for i := 0; i < slots; i++ {
		si := rng.IntN(len(tradable))
		bi := rng.IntN(len(tradable) - 1)
		if bi >= si {
			bi++
		}
		sell, buy := tradable[si], tradable[bi]
		rate := cats.Resources.ByID[sell].BasePrice / cats.Resources.ByID[buy].BasePrice
		rate *= 0.8 + 0.4*rng.Float64()
		out = append(out, state.MarketOffer{Sell: sell, Buy: buy, Rate: rate})
	}
	return out
}
