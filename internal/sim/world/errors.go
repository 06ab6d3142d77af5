package world

import (
	"errors"
	"fmt"
)

var (
	ErrNoHeadquarter = errors.New("city has no headquarter")

	ErrNoTile           = errors.New("no such tile")
	ErrTileOccupied     = errors.New("tile already has a building")
	ErrNotExplored      = errors.New("tile is not explored")
	ErrNoBuilding       = errors.New("tile has no building")
	ErrBuildingLocked   = errors.New("building is not unlocked")
	ErrNotPlaceable     = errors.New("building cannot be placed")
	ErrMissingDeposit   = errors.New("tile lacks the required deposit")
	ErrTechLocked       = errors.New("tech prerequisites not unlocked")
	ErrAlreadyUnlocked  = errors.New("tech already unlocked")
	ErrNotEnoughScience = errors.New("not enough science")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrStopped          = errors.New("world stopped")
)

// FatalError halts the world. It wraps the configuration error that caused it, typically
// a *catalogs.UnknownIDError or ErrNoHeadquarter.
type FatalError struct {
	Tick uint64
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("world halted at tick %d: %v", e.Tick, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
