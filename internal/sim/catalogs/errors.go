package catalogs

import "fmt"

// UnknownIDError reports a reference to an id that is not in the static configuration.
// Inside a tick it is fatal: the world refuses to advance.
type UnknownIDError struct {
	Kind string
	ID   string
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("unknown %s id %q", e.Kind, e.ID)
}
