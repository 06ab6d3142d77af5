// Package savefile converts game state to and from the versioned on-disk save format.
package savefile

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"idlecity.ai/internal/sim/catalogs"
	"idlecity.ai/internal/sim/state"
)

const SchemaVersion = state.SaveFileVersion

var ErrVersion = errors.New("unsupported save schema version")

type Header struct {
	SchemaVersion int    `json:"schema_version"`
	GameID        string `json:"game_id"`
	City          string `json:"city"`
	Tick          uint64 `json:"tick"`
	SavedAt       int64  `json:"saved_at"`
}

type Save struct {
	Header  Header    `json:"header"`
	State   StateV1   `json:"state"`
	Options OptionsV1 `json:"options"`
}

type StateV1 struct {
	City               string         `json:"city"`
	Seed               int64          `json:"seed"`
	Tick               uint64         `json:"tick"`
	UnlockedTech       []string       `json:"unlocked_tech"`
	UnlockedRegions    []string       `json:"unlocked_regions"`
	Tiles              []TileV1       `json:"tiles"`
	Jobs               []JobV1        `json:"jobs,omitempty"`
	GreatPeople        map[string]int `json:"great_people,omitempty"`
	GreatPeopleChoices [][3]string    `json:"great_people_choices,omitempty"`
	NextTransportID    uint64         `json:"next_transport_id"`
	LastPriceUpdated   uint64         `json:"last_price_updated"`
	IsOffline          bool           `json:"is_offline"`
}

type TileV1 struct {
	XY       uint32      `json:"xy"`
	Deposit  []string    `json:"deposit,omitempty"`
	Explored bool        `json:"explored"`
	Building *BuildingV1 `json:"building,omitempty"`
}

type BuildingV1 struct {
	Type      string             `json:"type"`
	Kind      string             `json:"kind"`
	Level     int                `json:"level"`
	Status    string             `json:"status"`
	Progress  int                `json:"progress,omitempty"`
	Resources map[string]float64 `json:"resources,omitempty"`
	Offers    []OfferV1          `json:"offers,omitempty"`
}

type OfferV1 struct {
	Sell string  `json:"sell"`
	Buy  string  `json:"buy"`
	Rate float64 `json:"rate"`
}

type JobV1 struct {
	ID            uint64      `json:"id"`
	From          uint32      `json:"from"`
	To            uint32      `json:"to"`
	FromPosition  state.Point `json:"from_position"`
	ToPosition    state.Point `json:"to_position"`
	Resource      string      `json:"resource"`
	Amount        float64     `json:"amount"`
	Fuel          string      `json:"fuel"`
	FuelAmount    float64     `json:"fuel_amount"`
	CurrentFuel   float64     `json:"current_fuel"`
	HasEnoughFuel bool        `json:"has_enough_fuel"`
	TicksRequired int         `json:"ticks_required"`
	TicksElapsed  int         `json:"ticks_elapsed"`
	StalledTicks  int         `json:"stalled_ticks,omitempty"`
}

type OptionsV1 struct {
	ID                  string                                `json:"id"`
	Token               string                                `json:"token,omitempty"`
	Version             int                                   `json:"version"`
	UseModernUI         bool                                  `json:"use_modern_ui"`
	SoundEffect         bool                                  `json:"sound_effect"`
	BuildingColors      map[string]string                     `json:"building_colors,omitempty"`
	ResourceColors      map[string]string                     `json:"resource_colors,omitempty"`
	ThemeColors         state.ThemeColors                     `json:"theme_colors"`
	DefaultPriority     int                                   `json:"default_priority"`
	ChatSendChannel     string                                `json:"chat_send_channel"`
	ChatReceiveChannels []string                              `json:"chat_receive_channels,omitempty"`
	IsOffline           bool                                  `json:"is_offline"`
	GreatPeople         map[string]state.PermanentGreatPerson `json:"great_people,omitempty"`
	GreatPeopleChoices  [][3]string                           `json:"great_people_choices,omitempty"`
}

// Export deep-copies the state and options into a save. The result shares no memory with
// its inputs, so it can be handed to another goroutine.
func Export(st *state.GameState, opts *state.GameOptions, now time.Time) Save {
	s := Save{
		Header: Header{
			SchemaVersion: SchemaVersion,
			City:          st.City,
			Tick:          st.Tick,
			SavedAt:       now.UnixMilli(),
		},
		State: StateV1{
			City:               st.City,
			Seed:               st.Seed,
			Tick:               st.Tick,
			UnlockedTech:       st.UnlockedTechIDs(),
			UnlockedRegions:    st.UnlockedRegionIDs(),
			Tiles:              make([]TileV1, 0, st.Tiles.Len()),
			GreatPeople:        copyMap(st.GreatPeople),
			GreatPeopleChoices: append([][3]string(nil), st.GreatPeopleChoices...),
			NextTransportID:    uint64(st.NextTransportID),
			LastPriceUpdated:   st.LastPriceUpdated,
			IsOffline:          st.IsOffline,
		},
	}
	st.Tiles.Each(func(t *state.Tile) {
		tv := TileV1{XY: uint32(t.XY), Explored: t.Explored}
		for res, ok := range t.Deposit {
			if ok {
				tv.Deposit = append(tv.Deposit, res)
			}
		}
		sort.Strings(tv.Deposit)
		if b := t.Building; b != nil {
			bv := &BuildingV1{
				Type:      b.Type,
				Kind:      string(b.Variant.Kind()),
				Level:     b.Level,
				Status:    string(b.Status),
				Progress:  b.Progress,
				Resources: copyMap(b.Resources),
			}
			if m, ok := b.Variant.(*state.Market); ok {
				for _, o := range m.Offers {
					bv.Offers = append(bv.Offers, OfferV1{Sell: o.Sell, Buy: o.Buy, Rate: o.Rate})
				}
			}
			tv.Building = bv
		}
		s.State.Tiles = append(s.State.Tiles, tv)
	})
	for _, j := range st.Transportation.All() {
		s.State.Jobs = append(s.State.Jobs, JobV1{
			ID:            uint64(j.ID),
			From:          uint32(j.From),
			To:            uint32(j.To),
			FromPosition:  j.FromPosition,
			ToPosition:    j.ToPosition,
			Resource:      j.Resource,
			Amount:        j.Amount,
			Fuel:          j.Fuel,
			FuelAmount:    j.FuelAmount,
			CurrentFuel:   j.CurrentFuel,
			HasEnoughFuel: j.HasEnoughFuel,
			TicksRequired: j.TicksRequired,
			TicksElapsed:  j.TicksElapsed,
			StalledTicks:  j.StalledTicks,
		})
	}
	if opts != nil {
		s.Header.GameID = opts.ID
		s.Options = exportOptions(opts)
	}
	return s
}

func exportOptions(o *state.GameOptions) OptionsV1 {
	out := OptionsV1{
		ID:                 o.ID,
		Token:              o.Token,
		Version:            o.Version,
		UseModernUI:        o.UseModernUI,
		SoundEffect:        o.SoundEffect,
		BuildingColors:     copyMap(o.BuildingColors),
		ResourceColors:     copyMap(o.ResourceColors),
		ThemeColors:        o.ThemeColors,
		DefaultPriority:    o.DefaultPriority,
		ChatSendChannel:    o.ChatSendChannel,
		IsOffline:          o.IsOffline,
		GreatPeople:        copyMap(o.GreatPeople),
		GreatPeopleChoices: append([][3]string(nil), o.GreatPeopleChoices...),
	}
	for ch, ok := range o.ChatReceiveChannels {
		if ok {
			out.ChatReceiveChannels = append(out.ChatReceiveChannels, ch)
		}
	}
	sort.Strings(out.ChatReceiveChannels)
	return out
}

// Import rebuilds live state from a save. Catalog references are not checked here; the
// world validates them before every tick.
func Import(s Save) (*state.GameState, *state.GameOptions, error) {
	if s.Header.SchemaVersion != SchemaVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrVersion, s.Header.SchemaVersion)
	}
	sv := s.State
	st := state.New(sv.City, sv.Seed)
	st.Tick = sv.Tick
	for _, id := range sv.UnlockedTech {
		st.UnlockedTech[id] = true
	}
	for _, id := range sv.UnlockedRegions {
		st.UnlockedRegions[id] = true
	}
	for id, lv := range sv.GreatPeople {
		st.GreatPeople[id] = lv
	}
	st.GreatPeopleChoices = append([][3]string(nil), sv.GreatPeopleChoices...)
	st.NextTransportID = state.JobID(sv.NextTransportID)
	st.LastPriceUpdated = sv.LastPriceUpdated
	st.IsOffline = sv.IsOffline

	for _, tv := range sv.Tiles {
		tile := state.Tile{XY: state.TileXY(tv.XY), Explored: tv.Explored, Deposit: map[string]bool{}}
		for _, res := range tv.Deposit {
			tile.Deposit[res] = true
		}
		if bv := tv.Building; bv != nil {
			b := &state.Building{
				Type:      bv.Type,
				Level:     bv.Level,
				Status:    state.Status(bv.Status),
				Progress:  bv.Progress,
				Resources: state.Ledger(copyMap(bv.Resources)),
				Variant:   state.NewVariant(catalogs.BuildingKind(bv.Kind)),
			}
			if b.Resources == nil {
				b.Resources = state.Ledger{}
			}
			switch b.Status {
			case state.StatusBuilding, state.StatusUpgrading, state.StatusCompleted:
			default:
				return nil, nil, fmt.Errorf("tile %s: bad building status %q", tile.XY, bv.Status)
			}
			if m, ok := b.Variant.(*state.Market); ok {
				for _, o := range bv.Offers {
					m.Offers = append(m.Offers, state.MarketOffer{Sell: o.Sell, Buy: o.Buy, Rate: o.Rate})
				}
			}
			tile.Building = b
		}
		if err := st.Tiles.Add(tile); err != nil {
			return nil, nil, err
		}
	}
	for _, jv := range sv.Jobs {
		if jv.TicksRequired < 1 {
			return nil, nil, fmt.Errorf("job %d: ticks_required %d", jv.ID, jv.TicksRequired)
		}
		st.Transportation.Add(&state.Job{
			ID:            state.JobID(jv.ID),
			From:          state.TileXY(jv.From),
			To:            state.TileXY(jv.To),
			FromPosition:  jv.FromPosition,
			ToPosition:    jv.ToPosition,
			Resource:      jv.Resource,
			Amount:        jv.Amount,
			Fuel:          jv.Fuel,
			FuelAmount:    jv.FuelAmount,
			CurrentFuel:   jv.CurrentFuel,
			HasEnoughFuel: jv.HasEnoughFuel,
			TicksRequired: jv.TicksRequired,
			TicksElapsed:  jv.TicksElapsed,
			StalledTicks:  jv.StalledTicks,
		})
	}

	ov := s.Options
	opts := state.NewGameOptions()
	if ov.ID != "" {
		opts.ID = ov.ID
	}
	opts.Token = ov.Token
	if ov.Version != 0 {
		opts.Version = ov.Version
	}
	opts.UseModernUI = ov.UseModernUI
	opts.SoundEffect = ov.SoundEffect
	if ov.BuildingColors != nil {
		opts.BuildingColors = copyMap(ov.BuildingColors)
	}
	if ov.ResourceColors != nil {
		opts.ResourceColors = copyMap(ov.ResourceColors)
	}
	if ov.ThemeColors != (state.ThemeColors{}) {
		opts.ThemeColors = ov.ThemeColors
	}
	if ov.DefaultPriority != 0 {
		opts.DefaultPriority = ov.DefaultPriority
	}
	if ov.ChatSendChannel != "" {
		opts.ChatSendChannel = ov.ChatSendChannel
	}
	for _, ch := range ov.ChatReceiveChannels {
		opts.ChatReceiveChannels[ch] = true
	}
	opts.IsOffline = ov.IsOffline
	for id, p := range ov.GreatPeople {
		opts.GreatPeople[id] = p
	}
	opts.GreatPeopleChoices = append([][3]string(nil), ov.GreatPeopleChoices...)
	return st, opts, nil
}

// Lite is the small payload sent with heartbeats.
type Lite struct {
	Header       Header         `json:"header"`
	Token        string         `json:"token,omitempty"`
	UnlockedTech []string       `json:"unlocked_tech"`
	GreatPeople  map[string]int `json:"great_people,omitempty"`
	Buildings    map[string]int `json:"buildings"`
	IsOffline    bool           `json:"is_offline"`
}

func ExportLite(st *state.GameState, opts *state.GameOptions, now time.Time) Lite {
	l := Lite{
		Header: Header{
			SchemaVersion: SchemaVersion,
			City:          st.City,
			Tick:          st.Tick,
			SavedAt:       now.UnixMilli(),
		},
		UnlockedTech: st.UnlockedTechIDs(),
		GreatPeople:  copyMap(st.GreatPeople),
		Buildings:    map[string]int{},
		IsOffline:    st.IsOffline,
	}
	st.Tiles.Each(func(t *state.Tile) {
		if t.Building != nil {
			l.Buildings[t.Building.Type]++
		}
	})
	if opts != nil {
		l.Header.GameID = opts.ID
		l.Token = opts.Token
	}
	return l
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
