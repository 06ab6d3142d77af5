package world

import (
	"sync"
	"time"
)

// Accumulator tracks real time spent since the last tick, as a fraction of one tick in
// [0,1]. Renderers use it to interpolate transport positions between ticks.
type Accumulator struct {
	mu    sync.Mutex
	since float64
}

// Frame adds a frame's duration and returns the updated fraction.
func (a *Accumulator) Frame(dt time.Duration) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if dt > 0 {
		a.since = min(a.since+dt.Seconds(), 1)
	}
	return a.since
}

func (a *Accumulator) Fraction() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.since
}

func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.since = 0
	a.mu.Unlock()
}
