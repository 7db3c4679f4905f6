package pathing

// Direction is one of the eight grid neighbours, clockwise from +X.
type Direction uint8

const (
	DirRight Direction = iota
	DirRightDown
	DirDown
	DirLeftDown
	DirLeft
	DirLeftUp
	DirUp
	DirRightUp

	numDirections = 8

	// numStoredDirections is how many edges each block stores. Directions
	// 4..7 are read from the neighbour's slot for the opposite direction.
	numStoredDirections = 4
)

var dirVectors = [numDirections]Square{
	{X: 1, Z: 0},
	{X: 1, Z: 1},
	{X: 0, Z: 1},
	{X: -1, Z: 1},
	{X: -1, Z: 0},
	{X: -1, Z: -1},
	{X: 0, Z: -1},
	{X: 1, Z: -1},
}

var (
	cardinalDirs = [4]Direction{DirRight, DirDown, DirLeft, DirUp}
	diagonalDirs = [4]Direction{DirRightDown, DirLeftDown, DirLeftUp, DirRightUp}
)

// Vector returns the unit step of d.
func (d Direction) Vector() Square { return dirVectors[d] }

// Opposite returns the direction pointing back.
func (d Direction) Opposite() Direction { return (d + 4) % numDirections }

// IsDiagonal reports whether d moves on both axes.
func (d Direction) IsDiagonal() bool { return d&1 == 1 }

// Cost returns the base step cost: 1 for cardinals, √2 for diagonals.
func (d Direction) Cost() float32 {
	if d.IsDiagonal() {
		return diagonalCost
	}
	return 1
}

// adjacentCardinals returns the two cardinals flanking a diagonal.
func (d Direction) adjacentCardinals() (Direction, Direction) {
	return (d + numDirections - 1) % numDirections, (d + 1) % numDirections
}

// directionBetween returns the direction of the unit step from a to b.
// ok is false when b is not an 8-neighbour of a.
func directionBetween(a, b Square) (Direction, bool) {
	step := Square{X: b.X - a.X, Z: b.Z - a.Z}
	for d, v := range dirVectors {
		if v == step {
			return Direction(d), true
		}
	}
	return 0, false
}
