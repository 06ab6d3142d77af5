package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Catalogs is the static configuration the simulation reads but never mutates.
type Catalogs struct {
	Resources   ResourceCatalog
	Buildings   BuildingCatalog
	Techs       TechCatalog
	GreatPeople GreatPersonCatalog
	Cities      CityCatalog
}

type ResourceCatalog struct {
	ByID   map[string]ResourceDef
	IDs    []string
	Digest string
}

type ResourceDef struct {
	ID        string  `json:"id"`
	Tier      int     `json:"tier"`
	BasePrice float64 `json:"base_price"`
	// Tradable resources can appear in market offers.
	Tradable bool `json:"tradable,omitempty"`
}

type BuildingKind string

const (
	KindProduction    BuildingKind = "production"
	KindHousing       BuildingKind = "housing"
	KindHeadquarter   BuildingKind = "headquarter"
	KindMarket        BuildingKind = "market"
	KindWonder        BuildingKind = "wonder"
	KindNaturalWonder BuildingKind = "natural_wonder"
)

func (k BuildingKind) valid() bool {
	switch k {
	case KindProduction, KindHousing, KindHeadquarter, KindMarket, KindWonder, KindNaturalWonder:
		return true
	}
	return false
}

type BuildingCatalog struct {
	ByID   map[string]BuildingDef
	IDs    []string
	Digest string
}

type BuildingDef struct {
	ID   string       `json:"id"`
	Kind BuildingKind `json:"kind"`

	Input  map[string]float64 `json:"input,omitempty"`
	Output map[string]float64 `json:"output,omitempty"`

	// Workers needed per level to operate.
	Workers int `json:"workers,omitempty"`
	// Workers provided per level (housing and headquarter).
	ProvidesWorkers int `json:"provides_workers,omitempty"`

	// Storage capacity per resource per level.
	Storage float64 `json:"storage,omitempty"`

	BuildTicks int                `json:"build_ticks"`
	Cost       map[string]float64 `json:"cost,omitempty"`

	Happiness int    `json:"happiness,omitempty"`
	Deposit   string `json:"deposit,omitempty"`

	// Market only: number of offers and units traded per level per tick.
	MarketSlots  int     `json:"market_slots,omitempty"`
	MarketVolume float64 `json:"market_volume,omitempty"`
}

type TechCatalog struct {
	ByID   map[string]TechDef
	IDs    []string
	Digest string
}

type TechDef struct {
	ID       string   `json:"id"`
	Column   int      `json:"column"`
	Requires []string `json:"requires,omitempty"`
	Cost     float64  `json:"cost"`

	UnlockBuildings     []string              `json:"unlock_buildings,omitempty"`
	BuildingMultipliers map[string]Multiplier `json:"building_multipliers,omitempty"`
	Global              GlobalBonus           `json:"global,omitempty"`
}

// Multiplier is an additive bonus on top of the x1 baseline.
type Multiplier struct {
	Output  float64 `json:"output,omitempty"`
	Worker  float64 `json:"worker,omitempty"`
	Storage float64 `json:"storage,omitempty"`
}

func (m Multiplier) IsZero() bool { return m.Output == 0 && m.Worker == 0 && m.Storage == 0 }

type GlobalBonus struct {
	Happiness            int     `json:"happiness,omitempty"`
	SciencePerIdleWorker float64 `json:"science_per_idle_worker,omitempty"`
	SciencePerBusyWorker float64 `json:"science_per_busy_worker,omitempty"`
}

func (g GlobalBonus) IsZero() bool {
	return g.Happiness == 0 && g.SciencePerIdleWorker == 0 && g.SciencePerBusyWorker == 0
}

type GreatPersonCatalog struct {
	ByID   map[string]GreatPersonDef
	IDs    []string
	Digest string
}

type GreatPersonDef struct {
	ID        string   `json:"id"`
	Age       string   `json:"age"`
	Buildings []string `json:"buildings,omitempty"`
	// Per-level bonuses. Buildings listed above receive Output; Global applies city-wide.
	OutputPerLevel float64     `json:"output_per_level,omitempty"`
	Global         GlobalBonus `json:"global,omitempty"`
}

type CityCatalog struct {
	ByID   map[string]CityDef
	IDs    []string
	Digest string
}

type CityDef struct {
	ID            string             `json:"id"`
	Width         int                `json:"width"`
	Height        int                `json:"height"`
	BaseHappiness int                `json:"base_happiness"`
	Deposits      map[string]float64 `json:"deposits"`
	// Natural wonders placed once on empty tiles at world generation.
	NaturalWonders []string `json:"natural_wonders,omitempty"`
	Regions        []string `json:"regions,omitempty"`
}

// Load reads every catalog file from configDir and validates cross references.
func Load(configDir string) (*Catalogs, error) {
	var (
		resources []ResourceDef
		buildings []BuildingDef
		techs     []TechDef
		people    []GreatPersonDef
		cities    []CityDef
		digests   [5]string
		err       error
	)
	if digests[0], err = readJSON(filepath.Join(configDir, "resources.json"), &resources); err != nil {
		return nil, err
	}
	if digests[1], err = readJSON(filepath.Join(configDir, "buildings.json"), &buildings); err != nil {
		return nil, err
	}
	if digests[2], err = readJSON(filepath.Join(configDir, "techs.json"), &techs); err != nil {
		return nil, err
	}
	if digests[3], err = readJSON(filepath.Join(configDir, "great_people.json"), &people); err != nil {
		return nil, err
	}
	if digests[4], err = readJSON(filepath.Join(configDir, "cities.json"), &cities); err != nil {
		return nil, err
	}
	c, err := New(resources, buildings, techs, people, cities)
	if err != nil {
		return nil, err
	}
	c.Resources.Digest = digests[0]
	c.Buildings.Digest = digests[1]
	c.Techs.Digest = digests[2]
	c.GreatPeople.Digest = digests[3]
	c.Cities.Digest = digests[4]
	return c, nil
}

// New indexes in-memory definitions. Digests are computed over the canonical JSON of the defs.
func New(resources []ResourceDef, buildings []BuildingDef, techs []TechDef, people []GreatPersonDef, cities []CityDef) (*Catalogs, error) {
	c := &Catalogs{}

	c.Resources.ByID = map[string]ResourceDef{}
	for _, r := range resources {
		if r.ID == "" {
			return nil, fmt.Errorf("resources.json: empty id")
		}
		c.Resources.ByID[r.ID] = r
	}
	c.Resources.IDs = sortedKeys(c.Resources.ByID)
	c.Resources.Digest = digestJSON(resources)

	c.Buildings.ByID = map[string]BuildingDef{}
	for _, b := range buildings {
		if b.ID == "" {
			return nil, fmt.Errorf("buildings.json: empty id")
		}
		if !b.Kind.valid() {
			return nil, fmt.Errorf("buildings.json: %s: invalid kind %q", b.ID, b.Kind)
		}
		c.Buildings.ByID[b.ID] = b
	}
	c.Buildings.IDs = sortedKeys(c.Buildings.ByID)
	c.Buildings.Digest = digestJSON(buildings)

	c.Techs.ByID = map[string]TechDef{}
	for _, t := range techs {
		if t.ID == "" {
			return nil, fmt.Errorf("techs.json: empty id")
		}
		c.Techs.ByID[t.ID] = t
	}
	c.Techs.IDs = sortedKeys(c.Techs.ByID)
	c.Techs.Digest = digestJSON(techs)

	c.GreatPeople.ByID = map[string]GreatPersonDef{}
	for _, p := range people {
		if p.ID == "" {
			return nil, fmt.Errorf("great_people.json: empty id")
		}
		c.GreatPeople.ByID[p.ID] = p
	}
	c.GreatPeople.IDs = sortedKeys(c.GreatPeople.ByID)
	c.GreatPeople.Digest = digestJSON(people)

	c.Cities.ByID = map[string]CityDef{}
	for _, city := range cities {
		if city.ID == "" {
			return nil, fmt.Errorf("cities.json: empty id")
		}
		if city.Width <= 0 || city.Height <= 0 || city.Width > 0xffff || city.Height > 0xffff {
			return nil, fmt.Errorf("cities.json: %s: bad size %dx%d", city.ID, city.Width, city.Height)
		}
		c.Cities.ByID[city.ID] = city
	}
	c.Cities.IDs = sortedKeys(c.Cities.ByID)
	c.Cities.Digest = digestJSON(cities)

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalogs) validate() error {
	hq := 0
	for _, id := range c.Buildings.IDs {
		b := c.Buildings.ByID[id]
		if b.Kind == KindHeadquarter {
			hq++
		}
		for _, m := range []map[string]float64{b.Input, b.Output, b.Cost} {
			for res := range m {
				if _, err := c.Resource(res); err != nil {
					return fmt.Errorf("buildings.json: %s: %w", id, err)
				}
			}
		}
		if b.Deposit != "" {
			if _, err := c.Resource(b.Deposit); err != nil {
				return fmt.Errorf("buildings.json: %s: %w", id, err)
			}
		}
	}
	if hq != 1 {
		return fmt.Errorf("buildings.json: want exactly one headquarter, got %d", hq)
	}
	for _, id := range c.Techs.IDs {
		t := c.Techs.ByID[id]
		for _, req := range t.Requires {
			if _, err := c.Tech(req); err != nil {
				return fmt.Errorf("techs.json: %s: %w", id, err)
			}
		}
		for _, b := range t.UnlockBuildings {
			if _, err := c.Building(b); err != nil {
				return fmt.Errorf("techs.json: %s: %w", id, err)
			}
		}
		for b := range t.BuildingMultipliers {
			if _, err := c.Building(b); err != nil {
				return fmt.Errorf("techs.json: %s: %w", id, err)
			}
		}
	}
	for _, id := range c.GreatPeople.IDs {
		for _, b := range c.GreatPeople.ByID[id].Buildings {
			if _, err := c.Building(b); err != nil {
				return fmt.Errorf("great_people.json: %s: %w", id, err)
			}
		}
	}
	for _, id := range c.Cities.IDs {
		city := c.Cities.ByID[id]
		for res := range city.Deposits {
			if _, err := c.Resource(res); err != nil {
				return fmt.Errorf("cities.json: %s: %w", id, err)
			}
		}
		for _, w := range city.NaturalWonders {
			def, err := c.Building(w)
			if err != nil {
				return fmt.Errorf("cities.json: %s: %w", id, err)
			}
			if def.Kind != KindNaturalWonder {
				return fmt.Errorf("cities.json: %s: %s is not a natural wonder", id, w)
			}
		}
	}
	return nil
}

func (c *Catalogs) Resource(id string) (ResourceDef, error) {
	r, ok := c.Resources.ByID[id]
	if !ok {
		return r, &UnknownIDError{Kind: "resource", ID: id}
	}
	return r, nil
}

func (c *Catalogs) Building(id string) (BuildingDef, error) {
	b, ok := c.Buildings.ByID[id]
	if !ok {
		return b, &UnknownIDError{Kind: "building", ID: id}
	}
	return b, nil
}

func (c *Catalogs) Tech(id string) (TechDef, error) {
	t, ok := c.Techs.ByID[id]
	if !ok {
		return t, &UnknownIDError{Kind: "tech", ID: id}
	}
	return t, nil
}

func (c *Catalogs) GreatPerson(id string) (GreatPersonDef, error) {
	p, ok := c.GreatPeople.ByID[id]
	if !ok {
		return p, &UnknownIDError{Kind: "great person", ID: id}
	}
	return p, nil
}

func (c *Catalogs) City(id string) (CityDef, error) {
	city, ok := c.Cities.ByID[id]
	if !ok {
		return city, &UnknownIDError{Kind: "city", ID: id}
	}
	return city, nil
}

// Headquarter returns the id of the single headquarter building.
func (c *Catalogs) Headquarter() string {
	for _, id := range c.Buildings.IDs {
		if c.Buildings.ByID[id].Kind == KindHeadquarter {
			return id
		}
	}
	return ""
}

func readJSON(path string, out any) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return sha256Hex(raw), nil
}

func digestJSON(v any) string {
	b, _ := json.Marshal(v)
	return sha256Hex(b)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
