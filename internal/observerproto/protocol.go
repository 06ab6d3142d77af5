// Package observerproto defines the read-only observer stream: one bootstrap document
// over HTTP, then a TICK message per published tick over a websocket.
package observerproto

import "idlecity.ai/internal/sim/tickdata"

// Version is the observer protocol version (separate from the command protocol).
const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to
// change the cadence. EveryTicks 2 receives every second published tick.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EveryTicks      int    `json:"every_ticks,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	GameID          string     `json:"game_id"`
	City            string     `json:"city"`
	Tick            uint64     `json:"tick"`
	Params          CityParams `json:"params"`
	Buildings       []string   `json:"buildings"`
	Resources       []string   `json:"resources"`
}

type CityParams struct {
	SpeedUp        int     `json:"speed_up"`
	TileSize       float64 `json:"tile_size"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	SaveEveryTicks int     `json:"save_every_ticks"`
}

// Server -> Client.
type TickMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Tick            uint64           `json:"tick"`
	Data            *tickdata.Frozen `json:"data"`
}
