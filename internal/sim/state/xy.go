package state

import (
	"fmt"
	"math"
)

// TileXY is a packed grid coordinate: x in the high 16 bits, y in the low 16 bits.
type TileXY uint32

func XY(x, y int) TileXY {
	return TileXY(uint32(x&0xffff)<<16 | uint32(y&0xffff))
}

func (t TileXY) X() int { return int(uint32(t) >> 16) }
func (t TileXY) Y() int { return int(uint32(t) & 0xffff) }

func (t TileXY) String() string { return fmt.Sprintf("%d,%d", t.X(), t.Y()) }

// Distance is the euclidean distance in tiles.
func (t TileXY) Distance(o TileXY) float64 {
	dx := float64(t.X() - o.X())
	dy := float64(t.Y() - o.Y())
	return math.Sqrt(dx*dx + dy*dy)
}

// Point is a world-space position used by renderers.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center returns the world position of the tile center for a square grid of the given tile size.
func (t TileXY) Center(tileSize float64) Point {
	return Point{
		X: float64(t.X())*tileSize + tileSize/2,
		Y: float64(t.Y())*tileSize + tileSize/2,
	}
}

func Lerp(a, b Point, f float64) Point {
	return Point{X: a.X + (b.X-a.X)*f, Y: a.Y + (b.Y-a.Y)*f}
}
