package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	SessionID       string        `json:"session_id"`
	GameID          string        `json:"game_id"`
	City            string        `json:"city"`
	Tick            uint64        `json:"tick"`
	Catalogs        CatalogDigest `json:"catalogs"`
}

type CatalogDigest struct {
	Resources   string `json:"resources"`
	Buildings   string `json:"buildings"`
	Techs       string `json:"techs"`
	GreatPeople string `json:"great_people"`
	Cities      string `json:"cities"`
}

// COMMAND (client -> server). X/Y address the acting tile, ToX/ToY the transport target.
type CommandMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ID              string  `json:"id"`
	Command         string  `json:"command"`
	X               int     `json:"x,omitempty"`
	Y               int     `json:"y,omitempty"`
	ToX             int     `json:"to_x,omitempty"`
	ToY             int     `json:"to_y,omitempty"`
	Building        string  `json:"building,omitempty"`
	Resource        string  `json:"resource,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
	Job             uint64  `json:"job,omitempty"`
	Tech            string  `json:"tech,omitempty"`
}

// RESULT (server -> client), one per COMMAND.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Job             uint64 `json:"job,omitempty"`
}
