// Package terrain is an in-memory square map: heights, terrain types and
// structural blockage.
package terrain

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"
)

// Terrain types used by the text map format. Movement classes map each
// type to a speed modifier.
const (
	TypeGround uint8 = iota
	TypeRough
	TypeWater
)

// Map holds per-square terrain data. Reads may run concurrently; writes
// must not overlap with reads.
type Map struct {
	name    string
	width   int
	height  int
	heights []float32
	types   []uint8
	blocked []bool
}

// New creates a flat, open map.
func New(name string, width, height int) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid map size %dx%d", width, height)
	}
	n := width * height
	return &Map{
		name:    name,
		width:   width,
		height:  height,
		heights: make([]float32, n),
		types:   make([]uint8, n),
		blocked: make([]bool, n),
	}, nil
}

// Name returns the map name.
func (m *Map) Name() string { return m.name }

// Size returns the map dimensions in squares.
func (m *Map) Size() (int, int) { return m.width, m.height }

// Inside reports whether (x, z) is on the map.
func (m *Map) Inside(x, z int) bool {
	return x >= 0 && x < m.width && z >= 0 && z < m.height
}

func (m *Map) index(x, z int) int { return z*m.width + x }

// HeightAt returns the height of a square; off-map squares are 0.
func (m *Map) HeightAt(x, z int) float32 {
	if !m.Inside(x, z) {
		return 0
	}
	return m.heights[m.index(x, z)]
}

// SetHeight sets the height of a square.
func (m *Map) SetHeight(x, z int, h float32) {
	if m.Inside(x, z) {
		m.heights[m.index(x, z)] = h
	}
}

// TypeAt returns the terrain type of a square.
func (m *Map) TypeAt(x, z int) uint8 {
	if !m.Inside(x, z) {
		return TypeGround
	}
	return m.types[m.index(x, z)]
}

// SetType sets the terrain type of a square.
func (m *Map) SetType(x, z int, t uint8) {
	if m.Inside(x, z) {
		m.types[m.index(x, z)] = t
	}
}

// IsStructureBlocked reports whether a structure occupies the square.
// Off-map squares count as blocked.
func (m *Map) IsStructureBlocked(x, z int) bool {
	if !m.Inside(x, z) {
		return true
	}
	return m.blocked[m.index(x, z)]
}

// SetBlocked marks or clears structures on the inclusive rectangle
// [x1,x2] x [z1,z2], clipped to the map.
func (m *Map) SetBlocked(x1, z1, x2, z2 int, blocked bool) {
	for z := max(min(z1, z2), 0); z <= min(max(z1, z2), m.height-1); z++ {
		for x := max(min(x1, x2), 0); x <= min(max(x1, x2), m.width-1); x++ {
			m.blocked[m.index(x, z)] = blocked
		}
	}
}

// Slope returns the steepest height difference to the right and lower
// neighbours, per world unit.
func (m *Map) Slope(x, z int, squareSize float32) float32 {
	h := m.HeightAt(x, z)
	var s float32
	if m.Inside(x+1, z) {
		s = max(s, float32(math.Abs(float64(m.HeightAt(x+1, z)-h))))
	}
	if m.Inside(x, z+1) {
		s = max(s, float32(math.Abs(float64(m.HeightAt(x, z+1)-h))))
	}
	return s / squareSize
}

// HeightmapChecksum hashes the heights.
func (m *Map) HeightmapChecksum() uint32 {
	h, _ := blake2b.New256(nil)
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(m.width))
	binary.LittleEndian.PutUint32(buf[4:], uint32(m.height))
	h.Write(buf[:])
	for _, v := range m.heights {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
		h.Write(buf[:4])
	}
	return binary.LittleEndian.Uint32(h.Sum(nil))
}

// TypemapChecksum hashes terrain types and structures.
func (m *Map) TypemapChecksum() uint32 {
	h, _ := blake2b.New256(nil)
	h.Write(m.types)
	flags := make([]byte, len(m.blocked))
	for i, b := range m.blocked {
		if b {
			flags[i] = 1
		}
	}
	h.Write(flags)
	return binary.LittleEndian.Uint32(h.Sum(nil))
}
