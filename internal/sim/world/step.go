package world

import (
	"context"
	"time"

	"idlecity.ai/internal/persistence/savefile"
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/logistics"
	"idlecity.ai/internal/sim/production"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/tickdata"
)

// intraTickCache memoizes lookups that stay valid for the duration of one tick.
type intraTickCache struct {
	hq      state.TileXY
	hqKnown bool
}

func (c *intraTickCache) reset() { *c = intraTickCache{} }

func (c *intraTickCache) headquarter(st *state.GameState, cats *catalogs.Catalogs) state.TileXY {
	if c.hqKnown {
		return c.hq
	}
	for i := 0; i < st.Tiles.Len(); i++ {
		t := st.Tiles.At(i)
		if t.Building != nil && cats.Buildings.ByID[t.Building.Type].Kind == catalogs.KindHeadquarter {
			c.hq, c.hqKnown = t.XY, true
			break
		}
	}
	return c.hq
}

// AdvanceTick runs one simulation tick. offline ticks skip every side effect that only
// matters to a live player (tick notifications, floaters, saves, heartbeats); the
// resulting state is the same either way.
func (w *World) AdvanceTick(offline bool) error {
	if w.fatal != nil {
		return w.fatal
	}
	if err := w.validate(); err != nil {
		w.fatal = &FatalError{Tick: w.st.Tick, Err: err}
		w.logger.Printf("halt: %v", w.fatal)
		w.storeMetrics(w.current.Load(), 0)
		return w.fatal
	}

	start := time.Now()
	st, cats, tun := w.st, w.cats, w.cfg.Tuning

	next := tickdata.NewNext(st.Tick)
	w.cache.reset()

	for _, id := range st.UnlockedTechIDs() {
		production.TickTech(next, cats.Techs.ByID[id])
	}
	for _, id := range state.SortedKeys(st.GreatPeople) {
		production.TickGreatPerson(next, cats.GreatPeople.ByID[id], st.GreatPeople[id], false)
	}
	for _, id := range state.SortedKeys(w.opts.GreatPeople) {
		production.TickGreatPerson(next, cats.GreatPeople.ByID[id], w.opts.GreatPeople[id].Level, true)
	}

	production.UpdatePrices(st, cats, tun.PriceUpdateEveryTicks)

	moved := logistics.Advance(st, logistics.Env{Fuel: w.fuel, MaxStallTicks: tun.Transport.MaxStallTicks})
	next.CompletedTransports = moved.Completed
	next.StalledTransports = moved.Stalled
	next.AbortedTransports = moved.Aborted
	next.FuelUsed = moved.FuelUsed

	hq := w.cache.headquarter(st, cats)
	next.Workers.Total = production.WorkerCapacity(st, cats, next)
	env := &production.Env{
		State:       st,
		Catalogs:    cats,
		Tuning:      tun,
		Next:        next,
		Bus:         w.bus,
		Offline:     offline,
		Headquarter: hq,
	}
	for i := 0; i < st.Tiles.Len(); i++ {
		tile := st.Tiles.At(i)
		if tile.Building == nil {
			continue
		}
		if err := w.rule.Tick(env, tile, i); err != nil {
			w.fatal = &FatalError{Tick: st.Tick, Err: err}
			w.logger.Printf("halt: %v", w.fatal)
			return w.fatal
		}
	}
	next.Workers.Idle = max(0, next.Workers.Total-next.Workers.Busy)

	next.Happiness = production.Happiness(st, cats, next, tun.BuildingsPerUnhappiness)

	science := production.ScienceFromWorkers(next.Workers, tun, next.Global())
	next.ScienceFromWorkers = science
	if b := st.Tiles.BuildingAt(hq); b != nil {
		b.Resources.Add(production.ScienceResource, science)
	}

	st.Tiles.Each(func(t *state.Tile) {
		if t.Building == nil {
			return
		}
		for _, res := range t.Building.Resources.Keys() {
			next.ResourceTotals[res] += t.Building.Resources[res]
		}
	})

	st.Tick++
	next.Tick = st.Tick
	frozen := next.Freeze()
	w.current.Store(frozen)

	w.writeTickLog(frozen, offline)
	w.storeMetrics(frozen, time.Since(start))

	if !offline {
		w.notify(frozen)
	}
	return nil
}

func (w *World) notify(f *tickdata.Frozen) {
	speed := uint64(w.cfg.Tuning.SpeedUp)
	tick := w.st.Tick
	if tick%speed == 0 {
		w.bus.TickChanged.Emit(f)
	}
	if w.saver != nil && tick%(uint64(w.cfg.Tuning.SaveEveryTicks)*speed) == 0 {
		w.startSave(savefile.Export(w.st, w.opts, w.now()))
	}
	if w.heartbeat != nil && tick%(uint64(w.cfg.Tuning.HeartbeatEveryTicks)*speed) == 1 {
		w.startHeartbeat(savefile.ExportLite(w.st, w.opts, w.now()))
	}
}

func (w *World) startSave(s savefile.Save) {
	if !w.saving.CompareAndSwap(false, true) {
		w.logger.Printf("save tick=%d skipped: previous save still running", s.Header.Tick)
		return
	}
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		defer w.saving.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.saver.Save(ctx, s); err != nil {
			w.saveErrors.Add(1)
			w.logger.Printf("save tick=%d: %v", s.Header.Tick, err)
		}
	}()
}

func (w *World) startHeartbeat(l savefile.Lite) {
	if !w.beating.CompareAndSwap(false, true) {
		return
	}
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		defer w.beating.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.heartbeat.Heartbeat(ctx, l); err != nil {
			w.heartbeatErrors.Add(1)
			w.logger.Printf("heartbeat tick=%d: %v", l.Header.Tick, err)
		}
	}()
}

func (w *World) writeTickLog(f *tickdata.Frozen, offline bool) {
	cmds := w.applied
	w.applied = nil
	if w.tickLogger == nil {
		return
	}
	entry := TickLogEntry{
		Tick:      f.Tick(),
		Commands:  cmds,
		Happiness: f.Happiness().Value,
		Science:   f.ScienceFromWorkers(),
		Busy:      f.Workers().Busy,
		Idle:      f.Workers().Idle,
		Completed: len(f.CompletedTransports()),
		Stalled:   len(f.StalledTransports()),
		Aborted:   len(f.AbortedTransports()),
		Offline:   offline,
	}
	if w.cfg.Digest {
		entry.Digest = w.StateDigest()
	}
	if err := w.tickLogger.WriteTick(entry); err != nil {
		w.logErrors.Add(1)
		w.logger.Printf("tick log tick=%d: %v", entry.Tick, err)
	}
}

// validate checks every catalog reference reachable from the state. It runs before any
// mutation so a bad reference leaves the state untouched.
func (w *World) validate() error {
	st, c := w.st, w.cats
	if _, err := c.City(st.City); err != nil {
		return err
	}
	for _, id := range st.UnlockedTechIDs() {
		if _, err := c.Tech(id); err != nil {
			return err
		}
	}
	for _, id := range state.SortedKeys(st.GreatPeople) {
		if _, err := c.GreatPerson(id); err != nil {
			return err
		}
	}
	for _, id := range state.SortedKeys(w.opts.GreatPeople) {
		if _, err := c.GreatPerson(id); err != nil {
			return err
		}
	}
	hq := false
	for i := 0; i < st.Tiles.Len(); i++ {
		t := st.Tiles.At(i)
		for _, res := range state.SortedKeys(t.Deposit) {
			if _, err := c.Resource(res); err != nil {
				return err
			}
		}
		b := t.Building
		if b == nil {
			continue
		}
		def, err := c.Building(b.Type)
		if err != nil {
			return err
		}
		if def.Kind == catalogs.KindHeadquarter {
			hq = true
		}
		for _, res := range b.Resources.Keys() {
			if _, err := c.Resource(res); err != nil {
				return err
			}
		}
		if m, ok := b.Variant.(*state.Market); ok {
			for _, o := range m.Offers {
				if _, err := c.Resource(o.Sell); err != nil {
					return err
				}
				if _, err := c.Resource(o.Buy); err != nil {
					return err
				}
			}
		}
	}
	for _, j := range st.Transportation.All() {
		if _, err := c.Resource(j.Resource); err != nil {
			return err
		}
		if j.Fuel != "" {
			if _, err := c.Resource(j.Fuel); err != nil {
				return err
			}
		}
	}
	if !hq {
		return ErrNoHeadquarter
	}
	return nil
}
