package state

import (
	"errors"
	"fmt"

	"idlecity.ai/internal/sim/catalogs"
)

type Status string

const (
	StatusBuilding  Status = "building"
	StatusUpgrading Status = "upgrading"
	StatusCompleted Status = "completed"
)

var ErrBadTransition = errors.New("invalid building transition")

// Building is owned by exactly one tile. Level and Status change only through
// Complete, StartUpgrade and Downgrade.
type Building struct {
	Type      string
	Level     int
	Status    Status
	Progress  int
	Resources Ledger
	Variant   Variant
}

// Variant carries the kind-specific part of a building.
type Variant interface {
	Kind() catalogs.BuildingKind
}

type Production struct{}
type Housing struct{}
type Headquarter struct{}
type Wonder struct{}
type NaturalWonder struct{}

type Market struct {
	Offers []MarketOffer
}

// MarketOffer converts Sell into Buy at Rate units of Buy per unit of Sell.
type MarketOffer struct {
	Sell string
	Buy  string
	Rate float64
}

func (Production) Kind() catalogs.BuildingKind    { return catalogs.KindProduction }
func (Housing) Kind() catalogs.BuildingKind       { return catalogs.KindHousing }
func (Headquarter) Kind() catalogs.BuildingKind   { return catalogs.KindHeadquarter }
func (Wonder) Kind() catalogs.BuildingKind        { return catalogs.KindWonder }
func (NaturalWonder) Kind() catalogs.BuildingKind { return catalogs.KindNaturalWonder }
func (*Market) Kind() catalogs.BuildingKind       { return catalogs.KindMarket }

func NewVariant(kind catalogs.BuildingKind) Variant {
	switch kind {
	case catalogs.KindHousing:
		return Housing{}
	case catalogs.KindHeadquarter:
		return Headquarter{}
	case catalogs.KindMarket:
		return &Market{}
	case catalogs.KindWonder:
		return Wonder{}
	case catalogs.KindNaturalWonder:
		return NaturalWonder{}
	default:
		return Production{}
	}
}

// NewConstruction returns a level 0 building waiting to be built.
func NewConstruction(def catalogs.BuildingDef) *Building {
	return &Building{
		Type:      def.ID,
		Status:    StatusBuilding,
		Resources: Ledger{},
		Variant:   NewVariant(def.Kind),
	}
}

// NewCompleted returns a finished building, as placed by world generation.
func NewCompleted(def catalogs.BuildingDef, level int) *Building {
	if level < 1 {
		level = 1
	}
	return &Building{
		Type:      def.ID,
		Level:     level,
		Status:    StatusCompleted,
		Resources: Ledger{},
		Variant:   NewVariant(def.Kind),
	}
}

func (b *Building) IsCompleted() bool { return b.Status == StatusCompleted }

func (b *Building) Complete() error {
	switch b.Status {
	case StatusBuilding:
		if b.Level < 1 {
			b.Level = 1
		}
	case StatusUpgrading:
		b.Level++
	default:
		return fmt.Errorf("%w: complete %s from %s", ErrBadTransition, b.Type, b.Status)
	}
	b.Status = StatusCompleted
	b.Progress = 0
	return nil
}

func (b *Building) StartUpgrade() error {
	if b.Status != StatusCompleted {
		return fmt.Errorf("%w: upgrade %s while %s", ErrBadTransition, b.Type, b.Status)
	}
	b.Status = StatusUpgrading
	b.Progress = 0
	return nil
}

// Downgrade lowers the level by one. Level 1 buildings cannot be downgraded.
func (b *Building) Downgrade() error {
	if b.Status != StatusCompleted || b.Level <= 1 {
		return fmt.Errorf("%w: downgrade %s at level %d (%s)", ErrBadTransition, b.Type, b.Level, b.Status)
	}
	b.Level--
	return nil
}

// TargetLevel is the level the current construction step produces.
func (b *Building) TargetLevel() int {
	switch b.Status {
	case StatusBuilding:
		return 1
	case StatusUpgrading:
		return b.Level + 1
	}
	return b.Level
}

func (b *Building) Clone() *Building {
	if b == nil {
		return nil
	}
	out := *b
	out.Resources = b.Resources.Clone()
	if m, ok := b.Variant.(*Market); ok {
		out.Variant = &Market{Offers: append([]MarketOffer(nil), m.Offers...)}
	}
	return &out
}
