package tickdata

import (
	"encoding/json"
	"strings"
	"testing"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
)

func TestFreeze_IsolatedFromLaterWrites(t *testing.T) {
	n := NewNext(7)
	n.Happiness = Happiness{Value: 3, Positive: map[string]int{"Base": 3}}
	n.ResourceTotals["Wood"] = 10
	n.RecordDelta(state.XY(1, 1), "Wood", 2)
	n.Floaters = append(n.Floaters, Floater{XY: state.XY(1, 1), Amount: map[string]float64{"Wood": 2}})
	n.CompletedTransports = append(n.CompletedTransports, 4)

	f := n.Freeze()

	n.Happiness.Positive["Base"] = 99
	n.ResourceTotals["Wood"] = 0
	n.Production[0].Amount = -1
	n.Floaters[0].Amount["Wood"] = 0
	n.CompletedTransports[0] = 9

	if f.Tick() != 7 {
		t.Fatalf("tick=%d", f.Tick())
	}
	if got := f.Happiness().Positive["Base"]; got != 3 {
		t.Fatalf("happiness leaked write: %d", got)
	}
	if f.ResourceTotal("Wood") != 10 {
		t.Fatalf("totals leaked write")
	}
	if f.Production()[0].Amount != 2 || f.Floaters()[0].Amount["Wood"] != 2 {
		t.Fatalf("slices leaked write")
	}
	if f.CompletedTransports()[0] != 4 {
		t.Fatalf("completed leaked write")
	}

	// Accessors hand out copies too.
	h := f.Happiness()
	h.Positive["Base"] = 100
	if f.Happiness().Positive["Base"] != 3 {
		t.Fatalf("accessor returned shared map")
	}
}

func TestMultipliersSumInRegistrationOrder(t *testing.T) {
	n := NewNext(1)
	n.AddBuildingMultiplier("WheatFarm", catalogs.Multiplier{Output: 1}, "tech Agriculture")
	n.AddBuildingMultiplier("WheatFarm", catalogs.Multiplier{Output: 2, Storage: 1}, "great person Hammurabi")
	n.AddBuildingMultiplier("WheatFarm", catalogs.Multiplier{}, "ignored")
	m := n.BuildingMultiplier("WheatFarm")
	if m.Output != 3 || m.Storage != 1 {
		t.Fatalf("multiplier=%+v", m)
	}
	if got := n.Freeze().BuildingMultipliers("WheatFarm"); len(got) != 2 || got[0].Source != "tech Agriculture" {
		t.Fatalf("frozen multipliers=%+v", got)
	}
	n.AddGlobal(catalogs.GlobalBonus{Happiness: 2}, "a")
	n.AddGlobal(catalogs.GlobalBonus{Happiness: 1, SciencePerIdleWorker: 0.5}, "b")
	if g := n.Global(); g.Happiness != 3 || g.SciencePerIdleWorker != 0.5 {
		t.Fatalf("global=%+v", g)
	}
}

func TestEmptySentinel(t *testing.T) {
	e := Empty()
	if !e.IsEmpty() || e.Tick() != 0 {
		t.Fatalf("empty sentinel: %+v", e)
	}
	b, err := json.Marshal(e)
	if err != nil || string(b) != `{"empty":true}` {
		t.Fatalf("marshal empty: %s %v", b, err)
	}
	b, err = json.Marshal(NewNext(3).Freeze())
	if err != nil || !strings.Contains(string(b), `"tick":3`) {
		t.Fatalf("marshal: %s %v", b, err)
	}
}

func TestNotProducingSortedByTile(t *testing.T) {
	n := NewNext(1)
	n.MarkNotProducing(state.XY(5, 0), ReasonNotEnoughWorkers)
	n.MarkNotProducing(state.XY(1, 0), ReasonNotEnoughResources)
	f := n.Freeze()
	np := f.NotProducing()
	if len(np) != 2 || np[0].XY != state.XY(1, 0) {
		t.Fatalf("not producing=%+v", np)
	}
	if r, ok := f.NotProducingAt(state.XY(5, 0)); !ok || r != ReasonNotEnoughWorkers {
		t.Fatalf("reason=%q ok=%v", r, ok)
	}
}
