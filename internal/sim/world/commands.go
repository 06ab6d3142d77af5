package world

import (
	"fmt"
	"slices"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/events"
	"idlecity.ai/internal/sim/logistics"
	"idlecity.ai/internal/sim/production"
	"idlecity.ai/internal/sim/state"
)

type CommandType string

const (
	CmdPlaceBuilding     CommandType = "place_building"
	CmdUpgradeBuilding   CommandType = "upgrade_building"
	CmdDowngradeBuilding CommandType = "downgrade_building"
	CmdScheduleTransport CommandType = "schedule_transport"
	CmdCancelTransport   CommandType = "cancel_transport"
	CmdRefuel            CommandType = "refuel"
	CmdUnlockTech        CommandType = "unlock_tech"
)

// Command is a player action applied between ticks. Which fields matter depends on Type.
type Command struct {
	Type     CommandType  `json:"type"`
	XY       state.TileXY `json:"xy,omitempty"`
	To       state.TileXY `json:"to,omitempty"`
	Building string       `json:"building,omitempty"`
	Resource string       `json:"resource,omitempty"`
	Amount   float64      `json:"amount,omitempty"`
	Job      state.JobID  `json:"job,omitempty"`
	Tech     string       `json:"tech,omitempty"`
}

// Apply runs cmd immediately. It must not be called while Run is active; use Submit.
// Applied commands are recorded in the next tick log entry.
func (w *World) Apply(cmd Command) error {
	if w.fatal != nil {
		return w.fatal
	}
	var err error
	switch cmd.Type {
	case CmdPlaceBuilding:
		err = w.placeBuilding(cmd.XY, cmd.Building)
	case CmdUpgradeBuilding:
		err = w.upgradeBuilding(cmd.XY)
	case CmdDowngradeBuilding:
		err = w.downgradeBuilding(cmd.XY)
	case CmdScheduleTransport:
		_, err = logistics.Schedule(w.st, logistics.ConfigFrom(w.cfg.Tuning), logistics.Request{
			From: cmd.XY, To: cmd.To, Resource: cmd.Resource, Amount: cmd.Amount,
		})
	case CmdCancelTransport:
		_, err = logistics.Cancel(w.st, cmd.Job)
	case CmdRefuel:
		_, err = logistics.Refuel(w.st, cmd.Job, cmd.Amount)
	case CmdUnlockTech:
		err = w.unlockTech(cmd.Tech)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	if err != nil {
		return err
	}
	w.applied = append(w.applied, cmd)
	return nil
}

func (w *World) placeBuilding(xy state.TileXY, id string) error {
	tile := w.st.Tiles.Get(xy)
	if tile == nil {
		return fmt.Errorf("%w: %s", ErrNoTile, xy)
	}
	if !tile.Explored {
		return fmt.Errorf("%w: %s", ErrNotExplored, xy)
	}
	if tile.Building != nil {
		return fmt.Errorf("%w: %s has %s", ErrTileOccupied, xy, tile.Building.Type)
	}
	def, err := w.cats.Building(id)
	if err != nil {
		return err
	}
	switch def.Kind {
	case catalogs.KindHeadquarter, catalogs.KindNaturalWonder:
		return fmt.Errorf("%w: %s", ErrNotPlaceable, id)
	}
	if !w.buildingUnlocked(id) {
		return fmt.Errorf("%w: %s", ErrBuildingLocked, id)
	}
	if def.Deposit != "" && !tile.HasDeposit(def.Deposit) {
		return fmt.Errorf("%w: %s needs %s", ErrMissingDeposit, id, def.Deposit)
	}
	tile.Building = state.NewConstruction(def)
	return nil
}

func (w *World) buildingUnlocked(id string) bool {
	for _, tech := range w.st.UnlockedTechIDs() {
		if slices.Contains(w.cats.Techs.ByID[tech].UnlockBuildings, id) {
			return true
		}
	}
	return false
}

func (w *World) buildingAt(xy state.TileXY) (*state.Building, error) {
	b := w.st.Tiles.BuildingAt(xy)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBuilding, xy)
	}
	return b, nil
}

func (w *World) upgradeBuilding(xy state.TileXY) error {
	b, err := w.buildingAt(xy)
	if err != nil {
		return err
	}
	if _, ok := b.Variant.(state.NaturalWonder); ok {
		return fmt.Errorf("%w: %s", ErrNotPlaceable, b.Type)
	}
	return b.StartUpgrade()
}

func (w *World) downgradeBuilding(xy state.TileXY) error {
	b, err := w.buildingAt(xy)
	if err != nil {
		return err
	}
	if err := b.Downgrade(); err != nil {
		return err
	}
	w.bus.TileReset.Emit(events.TileReset{XY: xy})
	return nil
}

// unlockTech pays the tech's cost in science from the headquarters.
func (w *World) unlockTech(id string) error {
	def, err := w.cats.Tech(id)
	if err != nil {
		return err
	}
	if w.st.UnlockedTech[id] {
		return fmt.Errorf("%w: %s", ErrAlreadyUnlocked, id)
	}
	for _, req := range def.Requires {
		if !w.st.UnlockedTech[req] {
			return fmt.Errorf("%w: %s needs %s", ErrTechLocked, id, req)
		}
	}
	w.cache.reset()
	hq := w.st.Tiles.BuildingAt(w.cache.headquarter(w.st, w.cats))
	if def.Cost > 0 {
		if hq == nil || hq.Resources.Get(production.ScienceResource) < def.Cost {
			return fmt.Errorf("%w: %s costs %g", ErrNotEnoughScience, id, def.Cost)
		}
		hq.Resources.Take(production.ScienceResource, def.Cost)
	}
	w.st.UnlockedTech[id] = true
	return nil
}

// Typed wrappers for headless callers.

func (w *World) PlaceBuilding(xy state.TileXY, id string) error {
	return w.Apply(Command{Type: CmdPlaceBuilding, XY: xy, Building: id})
}

func (w *World) UpgradeBuilding(xy state.TileXY) error {
	return w.Apply(Command{Type: CmdUpgradeBuilding, XY: xy})
}

func (w *World) DowngradeBuilding(xy state.TileXY) error {
	return w.Apply(Command{Type: CmdDowngradeBuilding, XY: xy})
}

// ScheduleTransport returns the id the new job received.
func (w *World) ScheduleTransport(from, to state.TileXY, res string, amount float64) (state.JobID, error) {
	if err := w.Apply(Command{Type: CmdScheduleTransport, XY: from, To: to, Resource: res, Amount: amount}); err != nil {
		return 0, err
	}
	return w.st.NextTransportID, nil
}

func (w *World) CancelTransport(id state.JobID) error {
	return w.Apply(Command{Type: CmdCancelTransport, Job: id})
}

func (w *World) Refuel(id state.JobID, amount float64) error {
	return w.Apply(Command{Type: CmdRefuel, Job: id, Amount: amount})
}

func (w *World) UnlockTech(id string) error {
	return w.Apply(Command{Type: CmdUnlockTech, Tech: id})
}
