package pathing

// Terrain is the map the engine plans over. Heights are cosmetic.
type Terrain interface {
	Size() (x, z int)
	HeightAt(x, z int) float32
	HeightmapChecksum() uint32
	TypemapChecksum() uint32
}

// MoveClass describes how one category of agent moves over the terrain.
// PathType is the class index; the engine expects classes[i].PathType() == i.
type MoveClass interface {
	PathType() int
	// SpeedMod returns the speed multiplier on a square; 0 is impassable.
	SpeedMod(x, z int) float32
	// IsBlocked reports structural blockage independent of speed.
	IsBlocked(x, z int) bool
	HeatMod() float32
	HeatProduced() int
}

// SearchResult is the outcome of a search. Lower values are better.
type SearchResult int

const (
	Ok SearchResult = iota
	GoalOutOfRange
	CantGetCloser
	Error
)

func (r SearchResult) String() string {
	switch r {
	case Ok:
		return "ok"
	case GoalOutOfRange:
		return "goal_out_of_range"
	case CantGetCloser:
		return "cant_get_closer"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// SearchDef describes one search. All coordinates are fine squares.
type SearchDef struct {
	Start  Square
	Goal   Square
	Radius float32

	// Bounds limits fine searches when Constrained is set.
	Bounds      Rect
	Constrained bool

	// ExactPath disables best-approach tracking: only reaching the goal counts.
	ExactPath bool
	// NeedPath requests waypoints; otherwise only the cost is returned.
	NeedPath bool
	// Synced selects the synced extra-cost overlay and path cache.
	Synced bool
	// OwnerID is the heat owner; an agent ignores its own trail.
	OwnerID int
	// SkipSubSearches disables the fine confirmation searches of block searches.
	SkipSubSearches bool
}

// Path is a search result ordered from start to end. Squares are the raw
// squares visited; Points are the world waypoints after corner cutting.
type Path struct {
	Squares []Square
	Points  []Vec3
	Cost    float32
}

// Len returns the number of remaining waypoints.
func (p *Path) Len() int { return len(p.Points) }

func (p *Path) popFront() {
	p.Squares = p.Squares[1:]
	p.Points = p.Points[1:]
}

func (p Path) clone() Path {
	return Path{
		Squares: append([]Square(nil), p.Squares...),
		Points:  append([]Vec3(nil), p.Points...),
		Cost:    p.Cost,
	}
}
