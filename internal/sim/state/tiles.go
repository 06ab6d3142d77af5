package state

import "fmt"

type Tile struct {
	XY       TileXY
	Deposit  map[string]bool
	Explored bool
	Building *Building
}

func (t *Tile) HasDeposit(res string) bool { return t.Deposit[res] }

// Tiles is an arena of tile records indexed by packed coordinate. Iteration follows
// insertion order. Pointers returned by Get are invalidated by Add.
type Tiles struct {
	recs  []Tile
	index map[TileXY]int
}

func (t *Tiles) Add(tile Tile) error {
	if t.index == nil {
		t.index = map[TileXY]int{}
	}
	if _, ok := t.index[tile.XY]; ok {
		return fmt.Errorf("duplicate tile %s", tile.XY)
	}
	if tile.Deposit == nil {
		tile.Deposit = map[string]bool{}
	}
	t.index[tile.XY] = len(t.recs)
	t.recs = append(t.recs, tile)
	return nil
}

func (t *Tiles) Get(xy TileXY) *Tile {
	i, ok := t.index[xy]
	if !ok {
		return nil
	}
	return &t.recs[i]
}

func (t *Tiles) Len() int { return len(t.recs) }

func (t *Tiles) At(i int) *Tile { return &t.recs[i] }

func (t *Tiles) Each(fn func(*Tile)) {
	for i := range t.recs {
		fn(&t.recs[i])
	}
}

// BuildingAt returns the building on xy or nil.
func (t *Tiles) BuildingAt(xy TileXY) *Building {
	tile := t.Get(xy)
	if tile == nil {
		return nil
	}
	return tile.Building
}
