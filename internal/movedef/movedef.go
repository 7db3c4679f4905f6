// Package movedef defines movement classes: how a kind of agent moves over
// the terrain, which squares it fits on and how much heat it leaves.
package movedef

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/pathgrid/internal/terrain"
)

// squareSize is the world size of one square, used to turn height deltas
// into slopes.
const squareSize = 8

// Def is the static description of a movement class.
type Def struct {
	Name string
	// Footprint is the side of the square area the agent occupies.
	Footprint int
	// MaxSlope is the steepest slope the class climbs; 0 disables the check.
	MaxSlope float32
	// SpeedByType is the speed multiplier per terrain type. Types past the
	// end of the slice move at full speed.
	SpeedByType  []float32
	HeatMod      float32
	HeatProduced int
}

// Validate checks a single definition.
func (d Def) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("name is empty"))
	}
	if d.Footprint < 1 {
		errs = append(errs, fmt.Errorf("footprint %d must be positive", d.Footprint))
	}
	if d.MaxSlope < 0 {
		errs = append(errs, fmt.Errorf("max slope %v must not be negative", d.MaxSlope))
	}
	for i, s := range d.SpeedByType {
		if s < 0 || math.IsNaN(float64(s)) {
			errs = append(errs, fmt.Errorf("speed for type %d is %v", i, s))
		}
	}
	if d.HeatMod < 0 {
		errs = append(errs, fmt.Errorf("heat mod %v must not be negative", d.HeatMod))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("move def %q: %w", d.Name, err)
	}
	return nil
}

// Class is a Def bound to a map. Its methods are safe for concurrent reads
// while the map is not being modified.
type Class struct {
	def      Def
	pathType int
	terrain  *terrain.Map
}

// Def returns the definition the class was built from.
func (c *Class) Def() Def { return c.def }

// Name returns the class name.
func (c *Class) Name() string { return c.def.Name }

// PathType returns the class index within its Set.
func (c *Class) PathType() int { return c.pathType }

// IsBlocked reports whether the footprint centered on (x, z) touches a
// structure or leaves the map.
func (c *Class) IsBlocked(x, z int) bool {
	lo := -(c.def.Footprint / 2)
	hi := lo + c.def.Footprint
	for dz := lo; dz < hi; dz++ {
		for dx := lo; dx < hi; dx++ {
			if c.terrain.IsStructureBlocked(x+dx, z+dz) {
				return true
			}
		}
	}
	return false
}

// SpeedMod returns the speed multiplier on (x, z); 0 means impassable.
func (c *Class) SpeedMod(x, z int) float32 {
	if !c.terrain.Inside(x, z) {
		return 0
	}
	if c.def.MaxSlope > 0 && c.terrain.Slope(x, z, squareSize) > c.def.MaxSlope {
		return 0
	}
	t := int(c.terrain.TypeAt(x, z))
	if t < len(c.def.SpeedByType) {
		return c.def.SpeedByType[t]
	}
	return 1
}

func (c *Class) HeatMod() float32 { return c.def.HeatMod }

func (c *Class) HeatProduced() int { return c.def.HeatProduced }

// Set is the ordered list of classes for one map.
type Set struct {
	classes  []*Class
	byName   map[string]*Class
	checksum uint32
}

// NewSet binds defs to m. Class i gets path type i.
func NewSet(m *terrain.Map, defs []Def) (*Set, error) {
	if len(defs) == 0 {
		return nil, errors.New("no move defs")
	}
	s := &Set{byName: make(map[string]*Class, len(defs))}
	for i, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate move def %q", d.Name)
		}
		c := &Class{def: d, pathType: i, terrain: m}
		s.classes = append(s.classes, c)
		s.byName[d.Name] = c
	}
	s.checksum = checksum(defs)
	return s, nil
}

// Len returns the number of classes.
func (s *Set) Len() int { return len(s.classes) }

// Classes returns the classes in path type order.
func (s *Set) Classes() []*Class { return s.classes }

// ByName looks a class up by name.
func (s *Set) ByName(name string) (*Class, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Checksum identifies the movement rules. Any change to a def changes it.
func (s *Set) Checksum() uint32 { return s.checksum }

func checksum(defs []Def) uint32 {
	h, _ := blake2b.New256(nil)
	var buf [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	for _, d := range defs {
		put(uint32(len(d.Name)))
		h.Write([]byte(d.Name))
		put(uint32(d.Footprint))
		put(math.Float32bits(d.MaxSlope))
		put(uint32(len(d.SpeedByType)))
		for _, v := range d.SpeedByType {
			put(math.Float32bits(v))
		}
		put(math.Float32bits(d.HeatMod))
		put(uint32(d.HeatProduced))
	}
	return binary.LittleEndian.Uint32(h.Sum(nil))
}
