// Package scenario loads headless pathing scenarios from TOML and plays
// them against a pathing.Manager.
package scenario

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/udisondev/pathgrid/internal/movedef"
	"github.com/udisondev/pathgrid/internal/terrain"
)

// Scenario is one simulator run: a map, movement classes, agents and
// terrain edits scheduled by tick.
type Scenario struct {
	Name     string `toml:"name"`
	MoveDefs string `toml:"movedefs"` // Lua file, relative to the scenario
	Ticks    int    `toml:"ticks"`

	Map     MapSpec  `toml:"map"`
	Walls   []Area   `toml:"walls"`
	Rough   []Area   `toml:"rough"`
	Water   []Area   `toml:"water"`
	Changes []Change `toml:"changes"`
	Agents  []Agent  `toml:"agents"`

	dir string
}

// MapSpec sizes the map or spells it out row by row in terrain.Parse
// notation. Rows win over Width/Height.
type MapSpec struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Rows   string `toml:"rows"`
}

// Area is an inclusive square rectangle.
type Area struct {
	X1 int `toml:"x1"`
	Z1 int `toml:"z1"`
	X2 int `toml:"x2"`
	Z2 int `toml:"z2"`
}

// Change blocks or clears an area at a given tick.
type Change struct {
	Tick    int  `toml:"tick"`
	Area    Area `toml:"area"`
	Blocked bool `toml:"blocked"`
}

// Agent requests one path. Start and Goal are squares; Radius and Speed are
// world units (Speed per tick).
type Agent struct {
	Class  string  `toml:"class"`
	Start  [2]int  `toml:"start"`
	Goal   [2]int  `toml:"goal"`
	Radius float32 `toml:"radius"`
	Speed  float32 `toml:"speed"`
	Synced bool    `toml:"synced"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	var sc Scenario
	md, err := toml.DecodeFile(path, &sc)
	if err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("scenario %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	sc.dir = filepath.Dir(path)
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("validating scenario %s: %w", path, err)
	}
	return &sc, nil
}

// Validate checks the parts that do not need the map.
func (sc *Scenario) Validate() error {
	var errs []error
	if sc.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if sc.Ticks <= 0 {
		errs = append(errs, fmt.Errorf("ticks must be positive, got %d", sc.Ticks))
	}
	if sc.Map.Rows == "" && (sc.Map.Width <= 0 || sc.Map.Height <= 0) {
		errs = append(errs, errors.New("map needs rows or a positive width and height"))
	}
	if len(sc.Agents) == 0 {
		errs = append(errs, errors.New("at least one agent is required"))
	}
	for i, a := range sc.Agents {
		if a.Class == "" {
			errs = append(errs, fmt.Errorf("agent %d: class is required", i))
		}
		if a.Speed < 0 || a.Radius < 0 {
			errs = append(errs, fmt.Errorf("agent %d: speed and radius must not be negative", i))
		}
	}
	for i, c := range sc.Changes {
		if c.Tick < 0 || c.Tick >= sc.Ticks {
			errs = append(errs, fmt.Errorf("change %d: tick %d outside [0,%d)", i, c.Tick, sc.Ticks))
		}
	}
	return errors.Join(errs...)
}

// MoveDefsPath resolves the movedefs file against the scenario directory.
func (sc *Scenario) MoveDefsPath() string {
	if sc.MoveDefs == "" || filepath.IsAbs(sc.MoveDefs) {
		return sc.MoveDefs
	}
	return filepath.Join(sc.dir, sc.MoveDefs)
}

// BuildMap creates the terrain with walls and terrain types applied.
func (sc *Scenario) BuildMap() (*terrain.Map, error) {
	var (
		m   *terrain.Map
		err error
	)
	if sc.Map.Rows != "" {
		m, err = terrain.Parse(sc.Name, sc.Map.Rows)
	} else {
		m, err = terrain.New(sc.Name, sc.Map.Width, sc.Map.Height)
	}
	if err != nil {
		return nil, fmt.Errorf("building map: %w", err)
	}

	for _, a := range sc.Walls {
		m.SetBlocked(a.X1, a.Z1, a.X2, a.Z2, true)
	}
	paint := func(areas []Area, t uint8) {
		for _, a := range areas {
			for z := min(a.Z1, a.Z2); z <= max(a.Z1, a.Z2); z++ {
				for x := min(a.X1, a.X2); x <= max(a.X1, a.X2); x++ {
					m.SetType(x, z, t)
				}
			}
		}
	}
	paint(sc.Rough, terrain.TypeRough)
	paint(sc.Water, terrain.TypeWater)
	return m, nil
}

// ChangesAt returns the terrain changes scheduled for tick, in file order.
func (sc *Scenario) ChangesAt(tick int) []Change {
	var out []Change
	for _, c := range sc.Changes {
		if c.Tick == tick {
			out = append(out, c)
		}
	}
	return out
}

// CheckClasses verifies every agent names a class in set.
func (sc *Scenario) CheckClasses(set *movedef.Set) error {
	var missing []string
	for _, a := range sc.Agents {
		if _, ok := set.ByName(a.Class); !ok && !slices.Contains(missing, a.Class) {
			missing = append(missing, a.Class)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("unknown movement classes: %s", strings.Join(missing, ", "))
	}
	return nil
}
