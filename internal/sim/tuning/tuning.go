package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// SpeedUp is the number of simulated ticks per real second in online mode.
	SpeedUp             int `yaml:"speed_up"`
	SaveEveryTicks      int `yaml:"save_every_ticks"`
	HeartbeatEveryTicks int `yaml:"heartbeat_every_ticks"`

	PriceUpdateEveryTicks uint64 `yaml:"price_update_every_ticks"`
	OfflineMaxTicks       int    `yaml:"offline_max_ticks"`

	ExploreRadius           int     `yaml:"explore_radius"`
	SciencePerIdleWorker    float64 `yaml:"science_per_idle_worker"`
	SciencePerBusyWorker    float64 `yaml:"science_per_busy_worker"`
	BuildingsPerUnhappiness int     `yaml:"buildings_per_unhappiness"`

	Transport Transport `yaml:"transport"`
	Grid      Grid      `yaml:"grid"`
}

type Transport struct {
	FuelResource        string  `yaml:"fuel_resource"`
	FuelPerUnitDistance float64 `yaml:"fuel_per_unit_distance"`
	TilesPerTick        int     `yaml:"tiles_per_tick"`
	// MaxStallTicks aborts a job after that many consecutive stalled ticks. 0 disables.
	MaxStallTicks int `yaml:"max_stall_ticks"`
}

type Grid struct {
	TileSize float64 `yaml:"tile_size"`
}

func Defaults() Tuning {
	return Tuning{
		SpeedUp:                 1,
		SaveEveryTicks:          5,
		HeartbeatEveryTicks:     60,
		PriceUpdateEveryTicks:   3600,
		OfflineMaxTicks:         86400,
		ExploreRadius:           2,
		SciencePerIdleWorker:    0.5,
		SciencePerBusyWorker:    0.1,
		BuildingsPerUnhappiness: 10,
		Transport: Transport{
			FuelResource:        "Wood",
			FuelPerUnitDistance: 0.01,
			TilesPerTick:        1,
		},
		Grid: Grid{TileSize: 64},
	}
}

// Load reads a tuning file on top of Defaults, so partial files are fine.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.SpeedUp < 1 {
		return fmt.Errorf("speed_up must be >= 1, got %d", t.SpeedUp)
	}
	if t.SaveEveryTicks < 1 {
		return fmt.Errorf("save_every_ticks must be >= 1, got %d", t.SaveEveryTicks)
	}
	if t.HeartbeatEveryTicks < 1 {
		return fmt.Errorf("heartbeat_every_ticks must be >= 1, got %d", t.HeartbeatEveryTicks)
	}
	if t.PriceUpdateEveryTicks < 1 {
		return fmt.Errorf("price_update_every_ticks must be >= 1")
	}
	if t.Transport.TilesPerTick < 1 {
		return fmt.Errorf("transport.tiles_per_tick must be >= 1, got %d", t.Transport.TilesPerTick)
	}
	if t.Transport.FuelPerUnitDistance < 0 || t.Transport.MaxStallTicks < 0 {
		return fmt.Errorf("transport: negative fuel or stall limit")
	}
	if t.Grid.TileSize <= 0 {
		return fmt.Errorf("grid.tile_size must be > 0")
	}
	return nil
}
