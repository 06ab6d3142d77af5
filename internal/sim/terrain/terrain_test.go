package terrain

import (
	"testing"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/tuning"
)

func initRome(t *testing.T, seed int64) (*state.GameState, *catalogs.Catalogs) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	st := state.New("Rome", seed)
	if err := Initialize(st, cats, tuning.Defaults()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return st, cats
}

func TestInitialize_StartingCity(t *testing.T) {
	st, _ := initRome(t, 42)
	if st.Tiles.Len() != 24*16 {
		t.Fatalf("tiles=%d", st.Tiles.Len())
	}
	hq := st.Tiles.Get(state.XY(12, 8))
	if hq.Building == nil || hq.Building.Type != "Headquarter" || !hq.Building.IsCompleted() || !hq.Explored {
		t.Fatalf("headquarter tile=%+v", hq)
	}
	if !st.UnlockedTech["Fire"] || !st.UnlockedTech["StoneTools"] || st.UnlockedTech["Writing"] {
		t.Fatalf("techs=%v", st.UnlockedTechIDs())
	}
	if !st.UnlockedRegions["Latium"] {
		t.Fatalf("regions=%v", st.UnlockedRegionIDs())
	}

	deposit := map[string]string{"LoggingCamp": "Wood", "StoneQuarry": "Stone", "Aqueduct": "Water"}
	counts := map[string]int{}
	st.Tiles.Each(func(tile *state.Tile) {
		b := tile.Building
		if b == nil {
			return
		}
		counts[b.Type]++
		if !tile.Explored {
			t.Fatalf("building %s on unexplored tile %s", b.Type, tile.XY)
		}
		if res, ok := deposit[b.Type]; ok && !tile.HasDeposit(res) {
			t.Fatalf("%s at %s without %s deposit", b.Type, tile.XY, res)
		}
	})
	for _, id := range []string{"Headquarter", "LoggingCamp", "StoneQuarry", "Aqueduct", "Vesuvius", "GrottaAzzurra"} {
		if counts[id] != 1 {
			t.Fatalf("want one %s, got %d (%v)", id, counts[id], counts)
		}
	}
}

func TestInitialize_Deterministic(t *testing.T) {
	a, _ := initRome(t, 7)
	b, _ := initRome(t, 7)
	for i := 0; i < a.Tiles.Len(); i++ {
		ta, tb := a.Tiles.At(i), b.Tiles.At(i)
		if ta.XY != tb.XY || ta.Explored != tb.Explored || len(ta.Deposit) != len(tb.Deposit) {
			t.Fatalf("tile %d differs: %+v vs %+v", i, ta, tb)
		}
		for res := range ta.Deposit {
			if !tb.Deposit[res] {
				t.Fatalf("tile %s deposit %s differs", ta.XY, res)
			}
		}
		if (ta.Building == nil) != (tb.Building == nil) {
			t.Fatalf("tile %s building presence differs", ta.XY)
		}
		if ta.Building != nil && ta.Building.Type != tb.Building.Type {
			t.Fatalf("tile %s building %s vs %s", ta.XY, ta.Building.Type, tb.Building.Type)
		}
	}
}

func TestExplore_ReturnsOnlyNewTiles(t *testing.T) {
	st := state.New("x", 1)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if err := st.Tiles.Add(state.Tile{XY: state.XY(x, y)}); err != nil {
				t.Fatal(err)
			}
		}
	}
	got := Explore(st, state.XY(0, 0), 1)
	if len(got) != 3 {
		t.Fatalf("corner radius 1: %v", got)
	}
	got = Explore(st, state.XY(1, 0), 1)
	// (1,0) and (0,0),(0,1) are already explored; (2,0) and (1,1) are new.
	if len(got) != 2 || got[0] != state.XY(2, 0) || got[1] != state.XY(1, 1) {
		t.Fatalf("second explore: %v", got)
	}
}
