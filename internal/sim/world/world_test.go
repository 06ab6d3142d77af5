package world

import (
	"testing"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/terrain"
	"idlecity.ai/internal/sim/tuning"
)

func newTestWorld(t *testing.T, seed int64, cfg Config, hooks Hooks) *World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	st := state.New("Rome", seed)
	if err := terrain.Initialize(st, cats, tuning.Defaults()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	w, err := New(cfg, cats, st, state.NewGameOptions(), hooks)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func findBuilding(t *testing.T, st *state.GameState, typ string) state.TileXY {
	t.Helper()
	for i := 0; i < st.Tiles.Len(); i++ {
		if tile := st.Tiles.At(i); tile.Building != nil && tile.Building.Type == typ {
			return tile.XY
		}
	}
	t.Fatalf("no %s in city", typ)
	return 0
}

// freeTile returns an explored empty tile without deposits.
func freeTile(t *testing.T, st *state.GameState) state.TileXY {
	t.Helper()
	for i := 0; i < st.Tiles.Len(); i++ {
		tile := st.Tiles.At(i)
		if tile.Explored && tile.Building == nil && len(tile.Deposit) == 0 {
			return tile.XY
		}
	}
	t.Fatalf("no free explored tile")
	return 0
}

func hiddenTile(t *testing.T, st *state.GameState) state.TileXY {
	t.Helper()
	for i := 0; i < st.Tiles.Len(); i++ {
		if tile := st.Tiles.At(i); !tile.Explored && tile.Building == nil {
			return tile.XY
		}
	}
	t.Fatalf("no unexplored tile")
	return 0
}
