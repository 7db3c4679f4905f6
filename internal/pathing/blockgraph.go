package pathing

// blockGraph searches one node per block, with step costs read from a
// State. It may fall back to fine sub-searches near the start and goal.
type blockGraph struct {
	state          *State
	fine           *Searcher
	subSearchNodes int
}

// NewBlockSearcher returns a searcher over the blocks of st. fine is used
// for confirmation sub-searches and may be nil to disable them.
func NewBlockSearcher(st *State, fine *Searcher, subSearchNodes int) *Searcher {
	return newSearcher(&blockGraph{state: st, fine: fine, subSearchNodes: subSearchNodes}, st.terrain)
}

func (g *blockGraph) size() (int, int) { return g.state.grid.BlocksX, g.state.grid.BlocksZ }

func (g *blockGraph) nodeOf(s Square) Square { return g.state.grid.BlockOf(s) }

func (g *blockGraph) square(c MoveClass, n Square) Square {
	return g.state.Offset(c.PathType(), n)
}

// admit rejects blocks without a walkable offset and blocks outside the
// constraint. The goal block must also be able to reach the goal from its
// offset.
func (g *blockGraph) admit(c MoveClass, def *SearchDef, n Square) nodeFlag {
	if def.Constrained && !def.Bounds.Overlaps(g.state.grid.BlockRect(n)) {
		return nodeBlocked
	}
	off := g.square(c, n)
	if !walkable(c, off) {
		return nodeBlocked
	}
	if g.fine == nil || def.SkipSubSearches || n != g.nodeOf(def.Goal) {
		return 0
	}
	if off.DistSq(def.Goal) <= def.Radius*def.Radius {
		return 0
	}
	grid := g.state.grid
	sub := SearchDef{
		Start:       off,
		Goal:        def.Goal,
		Radius:      def.Radius,
		Bounds:      grid.BlockRect(n).Inflate(grid.BlockSize).Clamp(grid.MapX, grid.MapZ),
		Constrained: true,
		ExactPath:   true,
		Synced:      def.Synced,
		OwnerID:     def.OwnerID,
	}
	if _, res := g.fine.Search(c, sub, g.subSearchNodes); res != Ok {
		return nodeBlocked
	}
	return 0
}

// stepCost reads the precomputed edge. An unreachable edge leaving the
// start block is retried with a fine search from the exact start square,
// since the start may sit in a pocket the block offset cannot reach.
func (g *blockGraph) stepCost(c MoveClass, def *SearchDef, from Square, d Direction, fromStart bool) float32 {
	cost := g.state.EdgeCost(c.PathType(), from, d)
	if cost < PathCostInfinity || !fromStart || g.fine == nil || def.SkipSubSearches {
		return cost
	}
	grid := g.state.grid
	to := from.Add(d.Vector())
	sub := SearchDef{
		Start:       def.Start,
		Goal:        g.square(c, to),
		Bounds:      grid.BlockRect(from).Union(grid.BlockRect(to)),
		Constrained: true,
		ExactPath:   true,
		Synced:      def.Synced,
		OwnerID:     def.OwnerID,
	}
	p, res := g.fine.Search(c, sub, g.subSearchNodes)
	if res != Ok {
		return PathCostInfinity
	}
	return p.Cost
}

func (g *blockGraph) heuristic(c MoveClass, n, goal Square) float32 {
	d := float32(Octile(n, goal) * float32(g.state.grid.BlockSize))
	return float32(d * g.state.invMaxSpeed[c.PathType()])
}

func (g *blockGraph) isGoal(c MoveClass, def *SearchDef, n Square) bool {
	if n == g.nodeOf(def.Goal) {
		return true
	}
	return g.square(c, n).DistSq(def.Goal) <= def.Radius*def.Radius
}

func (g *blockGraph) goalBlocked(MoveClass, *SearchDef) bool { return false }
