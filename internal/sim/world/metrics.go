package world

import (
	"time"

	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/tickdata"
)

// WorldMetrics is a point-in-time summary for monitoring. It is replaced after every
// tick and can be read from any goroutine.
type WorldMetrics struct {
	Tick      uint64
	StepMS    float64
	Tiles     int
	Buildings int
	Jobs      int
	Inbox     int

	Happiness int
	Workers   tickdata.Workers
	Science   float64
	FuelUsed  float64

	TransportsCompleted int
	TransportsStalled   int
	TransportsAborted   int

	SaveErrors      uint64
	HeartbeatErrors uint64
	TickLogErrors   uint64
	Halted          bool
}

func (w *World) Metrics() WorldMetrics {
	if v, ok := w.metrics.Load().(WorldMetrics); ok {
		return v
	}
	return WorldMetrics{}
}

func (w *World) storeMetrics(f *tickdata.Frozen, step time.Duration) {
	buildings := 0
	w.st.Tiles.Each(func(t *state.Tile) {
		if t.Building != nil {
			buildings++
		}
	})
	w.metrics.Store(WorldMetrics{
		Tick:                w.st.Tick,
		StepMS:              float64(step.Microseconds()) / 1000.0,
		Tiles:               w.st.Tiles.Len(),
		Buildings:           buildings,
		Jobs:                w.st.Transportation.Len(),
		Inbox:               len(w.inbox),
		Happiness:           f.Happiness().Value,
		Workers:             f.Workers(),
		Science:             f.ScienceFromWorkers(),
		FuelUsed:            f.FuelUsed(),
		TransportsCompleted: len(f.CompletedTransports()),
		TransportsStalled:   len(f.StalledTransports()),
		TransportsAborted:   len(f.AbortedTransports()),
		SaveErrors:          w.saveErrors.Load(),
		HeartbeatErrors:     w.heartbeatErrors.Load(),
		TickLogErrors:       w.logErrors.Load(),
		Halted:              w.fatal != nil,
	})
}
