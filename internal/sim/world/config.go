package world

import "idlecity.ai/internal/sim/tuning"

type Config struct {
	ID     string
	Tuning tuning.Tuning

	// InboxSize bounds the commands queued for Run between two ticks.
	InboxSize int
	// Digest computes the state digest for every tick log entry. It costs a full state walk.
	Digest bool
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "default"
	}
	if c.Tuning == (tuning.Tuning{}) {
		c.Tuning = tuning.Defaults()
	}
	if c.Tuning.SpeedUp < 1 {
		c.Tuning.SpeedUp = 1
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 256
	}
}
