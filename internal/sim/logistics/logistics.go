// Package logistics moves resources between tiles with fuel-bounded transportation jobs.
package logistics

import (
	"errors"
	"fmt"
	"math"

	"idlecity.ai/internal/sim/state"
	"idlecity.ai/internal/sim/tuning"
)

var (
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrNoBuilding           = errors.New("no building on tile")
	ErrSameTile             = errors.New("origin and destination are the same tile")
	ErrBadAmount            = errors.New("amount must be positive")
	ErrJobNotFound          = errors.New("transportation job not found")
)

// fuelEpsilon absorbs float drift from splitting FuelAmount into equal per-tick parts.
const fuelEpsilon = 1e-9

type Config struct {
	FuelResource        string
	FuelPerUnitDistance float64
	TilesPerTick        int
	MaxStallTicks       int
	TileSize            float64
}

func ConfigFrom(t tuning.Tuning) Config {
	return Config{
		FuelResource:        t.Transport.FuelResource,
		FuelPerUnitDistance: t.Transport.FuelPerUnitDistance,
		TilesPerTick:        t.Transport.TilesPerTick,
		MaxStallTicks:       t.Transport.MaxStallTicks,
		TileSize:            t.Grid.TileSize,
	}
}

// FuelSource supplies fuel to a job that ran low. It returns the amount actually given,
// at most want.
type FuelSource interface {
	Withdraw(st *state.GameState, j *state.Job, want float64) float64
}

// OriginLedger draws fuel from the building on the job's origin tile.
type OriginLedger struct{}

func (OriginLedger) Withdraw(st *state.GameState, j *state.Job, want float64) float64 {
	b := st.Tiles.BuildingAt(j.From)
	if b == nil {
		return 0
	}
	return b.Resources.Take(j.Fuel, want)
}

type Env struct {
	Fuel          FuelSource
	MaxStallTicks int
}

type Result struct {
	Completed []state.JobID
	Stalled   []state.JobID
	Aborted   []state.JobID
	FuelUsed  float64
}

// Advance moves every job forward by one tick. Origins are served in first-insertion
// order and jobs within an origin in creation order; the first job that cannot move
// blocks the rest of its origin for this tick.
func Advance(st *state.GameState, env Env) Result {
	var res Result
	for _, origin := range st.Transportation.Origins() {
		jobs := st.Transportation.Jobs(origin)
		kept := make([]*state.Job, 0, len(jobs))
		blocked := false
		for _, j := range jobs {
			if blocked {
				kept = append(kept, j)
				continue
			}
			if j.TicksElapsed < j.TicksRequired {
				perTick := j.FuelAmount / float64(j.TicksRequired)
				if j.CurrentFuel+fuelEpsilon < perTick && env.Fuel != nil {
					got := env.Fuel.Withdraw(st, j, j.FuelAmount-j.CurrentFuel)
					j.CurrentFuel = math.Min(j.FuelAmount, j.CurrentFuel+got)
				}
				if j.CurrentFuel+fuelEpsilon < perTick {
					j.HasEnoughFuel = false
					j.StalledTicks++
					blocked = true
					if env.MaxStallTicks > 0 && j.StalledTicks > env.MaxStallTicks {
						res.Aborted = append(res.Aborted, j.ID)
						continue
					}
					res.Stalled = append(res.Stalled, j.ID)
					kept = append(kept, j)
					continue
				}
				j.CurrentFuel = math.Max(0, j.CurrentFuel-perTick)
				j.TicksElapsed++
				j.HasEnoughFuel = true
				j.StalledTicks = 0
				res.FuelUsed += perTick
			}
			if j.TicksElapsed >= j.TicksRequired {
				dest := st.Tiles.BuildingAt(j.To)
				if dest == nil {
					res.Aborted = append(res.Aborted, j.ID)
					continue
				}
				dest.Resources.Add(j.Resource, j.Amount)
				res.Completed = append(res.Completed, j.ID)
				continue
			}
			kept = append(kept, j)
		}
		st.Transportation.SetJobs(origin, kept)
	}
	return res
}

type Request struct {
	From     state.TileXY
	To       state.TileXY
	Resource string
	Amount   float64
}

// Schedule takes the cargo from the origin building and queues a new job behind any
// existing jobs from the same origin.
func Schedule(st *state.GameState, cfg Config, req Request) (*state.Job, error) {
	if !(req.Amount > 0) || math.IsInf(req.Amount, 0) {
		return nil, ErrBadAmount
	}
	if req.From == req.To {
		return nil, ErrSameTile
	}
	src := st.Tiles.BuildingAt(req.From)
	if src == nil {
		return nil, fmt.Errorf("%w: origin %s", ErrNoBuilding, req.From)
	}
	if st.Tiles.BuildingAt(req.To) == nil {
		return nil, fmt.Errorf("%w: destination %s", ErrNoBuilding, req.To)
	}
	if src.Resources.Get(req.Resource) < req.Amount {
		return nil, fmt.Errorf("%w: %s has %g %s, need %g", ErrInsufficientResource, req.From, src.Resources.Get(req.Resource), req.Resource, req.Amount)
	}

	dist := req.From.Distance(req.To)
	perTick := cfg.TilesPerTick
	if perTick < 1 {
		perTick = 1
	}
	ticks := int(math.Ceil(dist / float64(perTick)))
	if ticks < 1 {
		ticks = 1
	}
	src.Resources.Take(req.Resource, req.Amount)

	st.NextTransportID++
	j := &state.Job{
		ID:            st.NextTransportID,
		From:          req.From,
		To:            req.To,
		FromPosition:  req.From.Center(cfg.TileSize),
		ToPosition:    req.To.Center(cfg.TileSize),
		Resource:      req.Resource,
		Amount:        req.Amount,
		Fuel:          cfg.FuelResource,
		FuelAmount:    dist * req.Amount * cfg.FuelPerUnitDistance,
		TicksRequired: ticks,
		HasEnoughFuel: true,
	}
	st.Transportation.Add(j)
	return j, nil
}

// Cancel removes a job and returns its cargo and unspent fuel to the origin building.
func Cancel(st *state.GameState, id state.JobID) (*state.Job, error) {
	j, ok := st.Transportation.Remove(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	if b := st.Tiles.BuildingAt(j.From); b != nil {
		b.Resources.Add(j.Resource, j.Amount)
		b.Resources.Add(j.Fuel, j.CurrentFuel)
	}
	return j, nil
}

// Refuel moves up to amount of fuel from the origin building into the job, never past
// FuelAmount. It returns the fuel added.
func Refuel(st *state.GameState, id state.JobID, amount float64) (float64, error) {
	if !(amount > 0) {
		return 0, ErrBadAmount
	}
	j := st.Transportation.Find(id)
	if j == nil {
		return 0, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	room := j.FuelAmount - j.CurrentFuel
	if room <= 0 {
		return 0, nil
	}
	b := st.Tiles.BuildingAt(j.From)
	if b == nil {
		return 0, fmt.Errorf("%w: origin %s", ErrNoBuilding, j.From)
	}
	got := b.Resources.Take(j.Fuel, math.Min(room, amount))
	if got == 0 {
		return 0, fmt.Errorf("%w: no %s at %s", ErrInsufficientResource, j.Fuel, j.From)
	}
	j.CurrentFuel += got
	return got, nil
}
