// Package events carries typed notifications out of the simulation.
//
// Listeners run synchronously on the emitting goroutine, in registration order. A listener
// that needs to do slow work must hand it off to its own goroutine.
package events

import (
	"sync"

	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/tickdata"
)

type Channel[T any] struct {
	mu        sync.RWMutex
	listeners []func(T)
}

// On registers fn and returns a function that removes it.
func (c *Channel[T]) On(fn func(T)) (off func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	idx := len(c.listeners) - 1
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < len(c.listeners) {
			c.listeners[idx] = nil
		}
	}
}

func (c *Channel[T]) Emit(v T) {
	c.mu.RLock()
	ls := c.listeners
	c.mu.RUnlock()
	for _, fn := range ls {
		if fn != nil {
			fn(v)
		}
	}
}

type TileExplored struct {
	XY state.TileXY
}

type TileReset struct {
	XY state.TileXY
}

type BuildingComplete struct {
	XY    state.TileXY
	Type  string
	Level int
}

type ProductionComplete struct {
	XY     state.TileXY
	Type   string
	Offset int
}

type Floater struct {
	XY     state.TileXY
	Amount map[string]float64
}

// Bus groups one channel per event kind. Each world owns its own bus.
type Bus struct {
	TileExplored       Channel[TileExplored]
	TileReset          Channel[TileReset]
	BuildingComplete   Channel[BuildingComplete]
	ProductionComplete Channel[ProductionComplete]
	Floater            Channel[Floater]
	// TickChanged fires with the frozen tick that was just published.
	TickChanged Channel[*tickdata.Frozen]
}

func NewBus() *Bus { return &Bus{} }
