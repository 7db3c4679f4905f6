package pathing

import "math"

// World geometry
const (
	// SquareSize is the edge length of one fine square in world units.
	SquareSize = 8

	// FormatVersion is mixed into the cache key. Bump it whenever the
	// blob layout or the precomputation rules change.
	FormatVersion = 3

	// maxCacheMapSize is the widest map, in squares, whose coordinates fit
	// the cache blob's uint16 offsets.
	maxCacheMapSize = math.MaxUint16 + 1
)

// Costs
const (
	// PathCostInfinity marks an unreachable edge. It is never a legal cost.
	PathCostInfinity float32 = 1e9

	// diagonalCost is √2 rounded to float32.
	diagonalCost float32 = 1.4142135

	// octileCorrection is √2 − 2, applied to min(dx, dz) by the heuristic.
	octileCorrection float32 = diagonalCost - 2

	// cornerCutCostRatio bounds how much more expensive the square under
	// a smoothed midpoint may be compared to the square it replaces.
	cornerCutCostRatio float32 = 1.39
)

// Search limits
const (
	// MinGoalRadius is the smallest goal radius accepted by RequestPath, in squares.
	MinGoalRadius float32 = 1

	// refineExtRatio scales a tier's search distance into the distance at
	// which the next coarser waypoint triggers refinement.
	refineExtRatio float32 = 0.4
)

// NoPathPoint is returned by NextWaypoint when a path is finished or failed.
var NoPathPoint = Vec3{X: -1, Y: 0, Z: -1}
