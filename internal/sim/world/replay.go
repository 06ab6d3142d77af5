package world

import "fmt"

// ReplayTick re-applies the commands recorded in e and advances one offline tick. It
// returns the resulting state digest, and an error when e does not belong to the next
// tick, a recorded command is rejected, or e carries a digest that differs.
func (w *World) ReplayTick(e TickLogEntry) (string, error) {
	if e.Tick != w.st.Tick+1 {
		return "", fmt.Errorf("replay: entry for tick %d, world at %d", e.Tick, w.st.Tick)
	}
	for i, cmd := range e.Commands {
		if err := w.Apply(cmd); err != nil {
			return "", fmt.Errorf("replay tick %d command %d (%s): %w", e.Tick, i, cmd.Type, err)
		}
	}
	if err := w.AdvanceTick(true); err != nil {
		return "", err
	}
	got := w.StateDigest()
	if e.Digest != "" && got != e.Digest {
		return got, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", e.Tick, got, e.Digest)
	}
	return got, nil
}
