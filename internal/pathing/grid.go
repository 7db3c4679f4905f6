package pathing

import (
	"errors"
	"fmt"
)

// ErrBadGrid reports a tier whose block size does not tile the map.
var ErrBadGrid = errors.New("invalid grid")

// Square is a fine square or, depending on context, a block coordinate.
type Square struct {
	X, Z int
}

// Add returns s shifted by d.
func (s Square) Add(d Square) Square {
	return Square{X: s.X + d.X, Z: s.Z + d.Z}
}

// DistSq returns the squared euclidean distance between two squares.
func (s Square) DistSq(o Square) float32 {
	dx := float32(s.X - o.X)
	dz := float32(s.Z - o.Z)
	return float32(dx*dx) + float32(dz*dz)
}

// Vec3 is a world-space position. Y is elevation and never affects cost.
type Vec3 struct {
	X, Y, Z float32
}

// DistSq2D returns the squared distance on the XZ plane.
func (v Vec3) DistSq2D(o Vec3) float32 {
	dx := v.X - o.X
	dz := v.Z - o.Z
	return float32(dx*dx) + float32(dz*dz)
}

// Rect is an inclusive rectangle of squares.
type Rect struct {
	X1, Z1, X2, Z2 int
}

// Contains reports whether s lies inside r.
func (r Rect) Contains(s Square) bool {
	return s.X >= r.X1 && s.X <= r.X2 && s.Z >= r.Z1 && s.Z <= r.Z2
}

// Overlaps reports whether r and o share at least one square.
func (r Rect) Overlaps(o Rect) bool {
	return r.X1 <= o.X2 && o.X1 <= r.X2 && r.Z1 <= o.Z2 && o.Z1 <= r.Z2
}

// Union returns the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X1: min(r.X1, o.X1), Z1: min(r.Z1, o.Z1),
		X2: max(r.X2, o.X2), Z2: max(r.Z2, o.Z2),
	}
}

// Inflate grows r by n on every side.
func (r Rect) Inflate(n int) Rect {
	return Rect{X1: r.X1 - n, Z1: r.Z1 - n, X2: r.X2 + n, Z2: r.Z2 + n}
}

// Clamp limits r to [0, w) x [0, h).
func (r Rect) Clamp(w, h int) Rect {
	return Rect{
		X1: clampInt(r.X1, 0, w-1), Z1: clampInt(r.Z1, 0, h-1),
		X2: clampInt(r.X2, 0, w-1), Z2: clampInt(r.Z2, 0, h-1),
	}
}

// Grid maps fine squares to blocks for one resolution tier.
// BlockSize 1 describes the fine tier itself.
type Grid struct {
	MapX, MapZ int
	BlockSize  int
	BlocksX    int
	BlocksZ    int
}

// NewGrid validates the tier geometry. A block size that is not positive
// or does not divide both map dimensions is a fatal misconfiguration.
func NewGrid(mapX, mapZ, blockSize int) (Grid, error) {
	if blockSize <= 0 {
		return Grid{}, fmt.Errorf("%w: block size %d", ErrBadGrid, blockSize)
	}
	if mapX < blockSize || mapZ < blockSize {
		return Grid{}, fmt.Errorf("%w: map %dx%d smaller than block size %d", ErrBadGrid, mapX, mapZ, blockSize)
	}
	if mapX%blockSize != 0 || mapZ%blockSize != 0 {
		return Grid{}, fmt.Errorf("%w: map %dx%d not divisible by block size %d", ErrBadGrid, mapX, mapZ, blockSize)
	}
	return Grid{
		MapX:      mapX,
		MapZ:      mapZ,
		BlockSize: blockSize,
		BlocksX:   mapX / blockSize,
		BlocksZ:   mapZ / blockSize,
	}, nil
}

// NumBlocks returns the number of blocks in the tier.
func (g Grid) NumBlocks() int { return g.BlocksX * g.BlocksZ }

// BlockOf returns the block containing fine square s.
func (g Grid) BlockOf(s Square) Square {
	return Square{
		X: clampInt(s.X/g.BlockSize, 0, g.BlocksX-1),
		Z: clampInt(s.Z/g.BlockSize, 0, g.BlocksZ-1),
	}
}

// BlockIndex returns the linear index of block b.
func (g Grid) BlockIndex(b Square) int { return b.Z*g.BlocksX + b.X }

// BlockAt is the inverse of BlockIndex.
func (g Grid) BlockAt(idx int) Square {
	return Square{X: idx % g.BlocksX, Z: idx / g.BlocksX}
}

// HasBlock reports whether b is a valid block coordinate.
func (g Grid) HasBlock(b Square) bool {
	return b.X >= 0 && b.X < g.BlocksX && b.Z >= 0 && b.Z < g.BlocksZ
}

// BlockRect returns the fine squares covered by block b.
func (g Grid) BlockRect(b Square) Rect {
	x := b.X * g.BlockSize
	z := b.Z * g.BlockSize
	return Rect{X1: x, Z1: z, X2: x + g.BlockSize - 1, Z2: z + g.BlockSize - 1}
}

// BlocksOverlapping returns the block rectangle covering fine rect r,
// clamped to the tier. It reports false when r lies entirely off the map.
func (g Grid) BlocksOverlapping(r Rect) (Rect, bool) {
	if !r.Overlaps(Rect{X2: g.MapX - 1, Z2: g.MapZ - 1}) {
		return Rect{}, false
	}
	lo := g.BlockOf(Square{X: max(r.X1, 0), Z: max(r.Z1, 0)})
	hi := g.BlockOf(Square{X: max(r.X2, 0), Z: max(r.Z2, 0)})
	return Rect{X1: lo.X, Z1: lo.Z, X2: hi.X, Z2: hi.Z}, true
}

// SquareOf converts a world position to the fine square under it,
// clamped to the map.
func SquareOf(pos Vec3, mapX, mapZ int) Square {
	return Square{
		X: clampInt(int(pos.X/SquareSize), 0, mapX-1),
		Z: clampInt(int(pos.Z/SquareSize), 0, mapZ-1),
	}
}

// SquareCenter returns the world position of the middle of s at height y.
func SquareCenter(s Square, y float32) Vec3 {
	return Vec3{
		X: float32(s.X)*SquareSize + SquareSize/2,
		Y: y,
		Z: float32(s.Z)*SquareSize + SquareSize/2,
	}
}

// Octile returns the octile distance between two squares in square units.
func Octile(a, b Square) float32 {
	dx := float32(absInt(a.X - b.X))
	dz := float32(absInt(a.Z - b.Z))
	return float32(dx+dz) + float32(octileCorrection*min(dx, dz))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
