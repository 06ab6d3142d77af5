package world

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"idlecity.ai/internal/persistence/savefile"
	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/events"
	"idlecity.ai/internal/sim/logistics"
	"idlecity.ai/internal/sim/production"
	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/tickdata"
	"idlecity.ai/internal/sim/tuning"
)

// Saver persists a full save. It runs on its own goroutine with a private copy.
type Saver interface {
	Save(ctx context.Context, s savefile.Save) error
}

// Heartbeat reports liveness with a small payload. It runs on its own goroutine.
type Heartbeat interface {
	Heartbeat(ctx context.Context, lite savefile.Lite) error
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick      uint64    `json:"tick"`
	Commands  []Command `json:"commands,omitempty"`
	Digest    string    `json:"digest,omitempty"`
	Happiness int       `json:"happiness"`
	Science   float64   `json:"science"`
	Busy      int       `json:"busy"`
	Idle      int       `json:"idle"`
	Completed int       `json:"completed,omitempty"`
	Stalled   int       `json:"stalled,omitempty"`
	Aborted   int       `json:"aborted,omitempty"`
	Offline   bool      `json:"offline,omitempty"`
}

// TickLoggers fans one entry out to several loggers and returns the first error.
type TickLoggers []TickLogger

func (ls TickLoggers) WriteTick(e TickLogEntry) error {
	var first error
	for _, l := range ls {
		if err := l.WriteTick(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Hooks are optional collaborators. Zero values select defaults.
type Hooks struct {
	Bus        *events.Bus
	Rule       production.Rule
	Fuel       logistics.FuelSource
	Saver      Saver
	Heartbeat  Heartbeat
	TickLogger TickLogger
	Logger     *log.Logger
	// ShouldTick gates online ticks in Run, e.g. while the game window is hidden.
	ShouldTick func() bool
	Now        func() time.Time
}

// World owns one city's simulation. GameState is touched only by the goroutine calling
// AdvanceTick, Apply or Run; Current and Metrics are safe from any goroutine.
type World struct {
	cfg  Config
	cats *catalogs.Catalogs
	st   *state.GameState
	opts *state.GameOptions

	bus        *events.Bus
	rule       production.Rule
	fuel       logistics.FuelSource
	saver      Saver
	heartbeat  Heartbeat
	tickLogger TickLogger
	logger     *log.Logger
	shouldTick func() bool
	now        func() time.Time

	current atomic.Pointer[tickdata.Frozen]
	metrics atomic.Value // WorldMetrics

	cache   intraTickCache
	fatal   *FatalError
	applied []Command

	inbox    chan commandReq
	stop     chan struct{}
	stopOnce sync.Once
	acc      Accumulator

	bg              sync.WaitGroup
	saving          atomic.Bool
	beating         atomic.Bool
	saveErrors      atomic.Uint64
	heartbeatErrors atomic.Uint64
	logErrors       atomic.Uint64
}

func New(cfg Config, cats *catalogs.Catalogs, st *state.GameState, opts *state.GameOptions, hooks Hooks) (*World, error) {
	if cats == nil || st == nil {
		return nil, fmt.Errorf("world: catalogs and state are required")
	}
	cfg.applyDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if opts == nil {
		opts = state.NewGameOptions()
	}
	w := &World{
		cfg:        cfg,
		cats:       cats,
		st:         st,
		opts:       opts,
		bus:        hooks.Bus,
		rule:       hooks.Rule,
		fuel:       hooks.Fuel,
		saver:      hooks.Saver,
		heartbeat:  hooks.Heartbeat,
		tickLogger: hooks.TickLogger,
		logger:     hooks.Logger,
		shouldTick: hooks.ShouldTick,
		now:        hooks.Now,
		inbox:      make(chan commandReq, cfg.InboxSize),
		stop:       make(chan struct{}),
	}
	if w.bus == nil {
		w.bus = events.NewBus()
	}
	if w.rule == nil {
		w.rule = production.DefaultRule{}
	}
	if w.fuel == nil {
		w.fuel = logistics.OriginLedger{}
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard, "", 0)
	}
	if w.now == nil {
		w.now = time.Now
	}
	w.current.Store(tickdata.Empty())
	w.metrics.Store(WorldMetrics{Tick: st.Tick})
	return w, nil
}

func (w *World) ID() string { return w.cfg.ID }

func (w *World) Tuning() tuning.Tuning { return w.cfg.Tuning }

func (w *World) Bus() *events.Bus { return w.bus }

func (w *World) Catalogs() *catalogs.Catalogs { return w.cats }

// Current returns the last published tick. Before the first tick it is tickdata.Empty().
func (w *World) Current() *tickdata.Frozen { return w.current.Load() }

// State exposes the live state. Only the simulation goroutine may use it.
func (w *World) State() *state.GameState { return w.st }

func (w *World) Options() *state.GameOptions { return w.opts }

func (w *World) Accumulator() *Accumulator { return &w.acc }

// Halted returns the error that stopped the world, or nil.
func (w *World) Halted() error {
	if w.fatal == nil {
		return nil
	}
	return w.fatal
}

// Wait blocks until in-flight save and heartbeat goroutines finish.
func (w *World) Wait() { w.bg.Wait() }

// Export copies the current state into a save. Call it from the simulation goroutine.
func (w *World) Export() savefile.Save { return savefile.Export(w.st, w.opts, w.now()) }
