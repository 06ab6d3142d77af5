package production

import (
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/tickdata"
)

// TickTech registers an unlocked tech's bonuses on next.
func TickTech(next *tickdata.Next, def catalogs.TechDef) {
	src := "Tech: " + def.ID
	for _, b := range state.SortedKeys(def.BuildingMultipliers) {
		next.AddBuildingMultiplier(b, def.BuildingMultipliers[b], src)
	}
	next.AddGlobal(def.Global, src)
}

// TickGreatPerson registers a great person's bonuses at level. Save-level and
// account-wide entries are registered separately, so one person held in both ledgers
// contributes twice under different sources. Neither ledger is written.
func TickGreatPerson(next *tickdata.Next, def catalogs.GreatPersonDef, level int, accountWide bool) {
	if level <= 0 {
		return
	}
	src := "Great Person: " + def.ID
	if accountWide {
		src = "Permanent Great Person: " + def.ID
	}
	lv := float64(level)
	for _, b := range def.Buildings {
		next.AddBuildingMultiplier(b, catalogs.Multiplier{Output: def.OutputPerLevel * lv}, src)
	}
	next.AddGlobal(catalogs.GlobalBonus{
		Happiness:            def.Global.Happiness * level,
		SciencePerIdleWorker: def.Global.SciencePerIdleWorker * lv,
		SciencePerBusyWorker: def.Global.SciencePerBusyWorker * lv,
	}, src)
}
