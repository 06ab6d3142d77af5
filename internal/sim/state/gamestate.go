package state

import "sort"

// GameState is the mutable world. The tick orchestrator is its only writer while a tick
// runs; commands mutate it between ticks.
type GameState struct {
	City            string
	UnlockedTech    map[string]bool
	UnlockedRegions map[string]bool
	Tiles           Tiles
	Transportation  Transportation

	Tick               uint64
	GreatPeople        map[string]int
	GreatPeopleChoices [][3]string

	NextTransportID  JobID
	LastPriceUpdated uint64
	IsOffline        bool
	Seed             int64
}

func New(city string, seed int64) *GameState {
	return &GameState{
		City:            city,
		UnlockedTech:    map[string]bool{},
		UnlockedRegions: map[string]bool{},
		GreatPeople:     map[string]int{},
		Seed:            seed,
	}
}

func (gs *GameState) UnlockedTechIDs() []string { return sortedSet(gs.UnlockedTech) }

func (gs *GameState) UnlockedRegionIDs() []string { return sortedSet(gs.UnlockedRegions) }

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, ok := range m {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
