package tickdata

import (
	"encoding/json"
	"sort"

	"idlecity.ai/internal/sim/state"
)

// Frozen is an immutable tick result. All accessors return copies.
type Frozen struct {
	empty bool
	v     view
}

type view struct {
	Tick               uint64                         `json:"tick"`
	Happiness          Happiness                      `json:"happiness"`
	Workers            Workers                        `json:"workers"`
	ScienceFromWorkers float64                        `json:"science_from_workers"`
	Multipliers        map[string][]SourcedMultiplier `json:"building_multipliers,omitempty"`
	Globals            []SourcedGlobal                `json:"global_bonuses,omitempty"`
	Production         []TileDelta                    `json:"production,omitempty"`
	NotProducing       []NotProducing                 `json:"not_producing,omitempty"`
	ResourceTotals     map[string]float64             `json:"resource_totals,omitempty"`
	Floaters           []Floater                      `json:"floaters,omitempty"`
	Completed          []state.JobID                  `json:"completed_transports,omitempty"`
	Stalled            []state.JobID                  `json:"stalled_transports,omitempty"`
	Aborted            []state.JobID                  `json:"aborted_transports,omitempty"`
	FuelUsed           float64                        `json:"fuel_used"`
}

type NotProducing struct {
	XY     state.TileXY `json:"xy"`
	Reason Reason       `json:"reason"`
}

// Empty is the sentinel published before the first tick runs.
func Empty() *Frozen { return &Frozen{empty: true} }

// Freeze copies n into an immutable snapshot. n may be discarded or reused afterwards
// without affecting the result.
func (n *Next) Freeze() *Frozen {
	v := view{
		Tick:               n.Tick,
		Happiness:          copyHappiness(n.Happiness),
		Workers:            n.Workers,
		ScienceFromWorkers: n.ScienceFromWorkers,
		Multipliers:        make(map[string][]SourcedMultiplier, len(n.BuildingMultipliers)),
		Globals:            append([]SourcedGlobal(nil), n.GlobalBonuses...),
		Production:         append([]TileDelta(nil), n.Production...),
		ResourceTotals:     copyFloats(n.ResourceTotals),
		Completed:          append([]state.JobID(nil), n.CompletedTransports...),
		Stalled:            append([]state.JobID(nil), n.StalledTransports...),
		Aborted:            append([]state.JobID(nil), n.AbortedTransports...),
		FuelUsed:           n.FuelUsed,
	}
	for k, ms := range n.BuildingMultipliers {
		v.Multipliers[k] = append([]SourcedMultiplier(nil), ms...)
	}
	for xy, r := range n.NotProducing {
		v.NotProducing = append(v.NotProducing, NotProducing{XY: xy, Reason: r})
	}
	sort.Slice(v.NotProducing, func(i, j int) bool { return v.NotProducing[i].XY < v.NotProducing[j].XY })
	for _, f := range n.Floaters {
		v.Floaters = append(v.Floaters, Floater{XY: f.XY, Amount: copyFloats(f.Amount)})
	}
	return &Frozen{v: v}
}

func (f *Frozen) IsEmpty() bool { return f.empty }

func (f *Frozen) Tick() uint64 { return f.v.Tick }

func (f *Frozen) Happiness() Happiness { return copyHappiness(f.v.Happiness) }

func (f *Frozen) Workers() Workers { return f.v.Workers }

func (f *Frozen) ScienceFromWorkers() float64 { return f.v.ScienceFromWorkers }

func (f *Frozen) FuelUsed() float64 { return f.v.FuelUsed }

func (f *Frozen) BuildingMultipliers(building string) []SourcedMultiplier {
	return append([]SourcedMultiplier(nil), f.v.Multipliers[building]...)
}

func (f *Frozen) GlobalBonuses() []SourcedGlobal {
	return append([]SourcedGlobal(nil), f.v.Globals...)
}

func (f *Frozen) Production() []TileDelta { return append([]TileDelta(nil), f.v.Production...) }

func (f *Frozen) NotProducing() []NotProducing {
	return append([]NotProducing(nil), f.v.NotProducing...)
}

func (f *Frozen) NotProducingAt(xy state.TileXY) (Reason, bool) {
	for _, np := range f.v.NotProducing {
		if np.XY == xy {
			return np.Reason, true
		}
	}
	return "", false
}

func (f *Frozen) ResourceTotal(res string) float64 { return f.v.ResourceTotals[res] }

func (f *Frozen) ResourceTotals() map[string]float64 { return copyFloats(f.v.ResourceTotals) }

func (f *Frozen) Floaters() []Floater {
	out := make([]Floater, 0, len(f.v.Floaters))
	for _, fl := range f.v.Floaters {
		out = append(out, Floater{XY: fl.XY, Amount: copyFloats(fl.Amount)})
	}
	return out
}

func (f *Frozen) CompletedTransports() []state.JobID {
	return append([]state.JobID(nil), f.v.Completed...)
}

func (f *Frozen) StalledTransports() []state.JobID {
	return append([]state.JobID(nil), f.v.Stalled...)
}

func (f *Frozen) AbortedTransports() []state.JobID {
	return append([]state.JobID(nil), f.v.Aborted...)
}

func (f *Frozen) MarshalJSON() ([]byte, error) {
	if f.empty {
		return []byte(`{"empty":true}`), nil
	}
	return json.Marshal(f.v)
}

func copyHappiness(h Happiness) Happiness {
	out := Happiness{Value: h.Value}
	if h.Positive != nil {
		out.Positive = make(map[string]int, len(h.Positive))
		for k, v := range h.Positive {
			out.Positive[k] = v
		}
	}
	if h.Negative != nil {
		out.Negative = make(map[string]int, len(h.Negative))
		for k, v := range h.Negative {
			out.Negative[k] = v
		}
	}
	return out
}

func copyFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
