package state

import "github.com/google/uuid"

const SaveFileVersion = 1

type ThemeColors struct {
	WorldBackground         string  `json:"world_background"`
	GridColor               string  `json:"grid_color"`
	GridAlpha               float64 `json:"grid_alpha"`
	SelectedGridColor       string  `json:"selected_grid_color"`
	InactiveBuildingAlpha   float64 `json:"inactive_building_alpha"`
	TransportIndicatorAlpha float64 `json:"transport_indicator_alpha"`
	ResearchBackground      string  `json:"research_background"`
	ResearchLockedColor     string  `json:"research_locked_color"`
	ResearchUnlockedColor   string  `json:"research_unlocked_color"`
	ResearchHighlightColor  string  `json:"research_highlight_color"`
}

func DefaultThemeColors() ThemeColors {
	return ThemeColors{
		WorldBackground:         "#1e2328",
		GridColor:               "#ffffff",
		GridAlpha:               0.1,
		SelectedGridColor:       "#ffff99",
		InactiveBuildingAlpha:   0.5,
		TransportIndicatorAlpha: 0.5,
		ResearchBackground:      "#1e2328",
		ResearchLockedColor:     "#666666",
		ResearchUnlockedColor:   "#ffffff",
		ResearchHighlightColor:  "#ffff99",
	}
}

// PermanentGreatPerson is an entry of the account-wide great people ledger.
type PermanentGreatPerson struct {
	Level  int     `json:"level"`
	Amount float64 `json:"amount"`
}

// GameOptions is per-install configuration. GreatPeople here is the account-wide ledger
// and is never merged with GameState.GreatPeople.
type GameOptions struct {
	ID          string
	Token       string
	Version     int
	UseModernUI bool
	SoundEffect bool

	BuildingColors map[string]string
	ResourceColors map[string]string
	ThemeColors    ThemeColors

	DefaultPriority     int
	ChatSendChannel     string
	ChatReceiveChannels map[string]bool
	IsOffline           bool

	GreatPeople        map[string]PermanentGreatPerson
	GreatPeopleChoices [][3]string
}

func NewGameOptions() *GameOptions {
	return &GameOptions{
		ID:                  uuid.NewString(),
		Version:             SaveFileVersion,
		UseModernUI:         true,
		SoundEffect:         true,
		BuildingColors:      map[string]string{},
		ResourceColors:      map[string]string{},
		ThemeColors:         DefaultThemeColors(),
		DefaultPriority:     0x010101,
		ChatSendChannel:     "en",
		ChatReceiveChannels: map[string]bool{},
		GreatPeople:         map[string]PermanentGreatPerson{},
	}
}

func (o *GameOptions) ResetThemeColors() { o.ThemeColors = DefaultThemeColors() }
