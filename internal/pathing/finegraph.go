package pathing

// fineGraph is the 1-square resolution: every node is one fine square.
type fineGraph struct {
	width, height int
	// invMaxSpeed holds 1/max speed modifier per class, scaling the heuristic.
	invMaxSpeed []float32
	heat        *HeatMap
}

// NewFineSearcher returns a searcher over individual squares. heat may be
// nil, in which case congestion is ignored.
func NewFineSearcher(terrain Terrain, classes []MoveClass, heat *HeatMap) *Searcher {
	w, h := terrain.Size()
	return newFineSearcher(terrain, inverseMaxSpeeds(w, h, classes), heat)
}

func newFineSearcher(terrain Terrain, invMaxSpeed []float32, heat *HeatMap) *Searcher {
	w, h := terrain.Size()
	return newSearcher(&fineGraph{
		width:       w,
		height:      h,
		invMaxSpeed: invMaxSpeed,
		heat:        heat,
	}, terrain)
}

func (g *fineGraph) size() (int, int) { return g.width, g.height }

func (g *fineGraph) nodeOf(s Square) Square { return s }

func (g *fineGraph) square(_ MoveClass, n Square) Square { return n }

func (g *fineGraph) admit(c MoveClass, def *SearchDef, n Square) nodeFlag {
	if def.Constrained && !def.Bounds.Contains(n) {
		return nodeBlocked
	}
	if c.IsBlocked(n.X, n.Z) {
		return nodeBlocked
	}
	if c.SpeedMod(n.X, n.Z) <= 0 {
		return nodeForbidden
	}
	return 0
}

func (g *fineGraph) stepCost(c MoveClass, def *SearchDef, from Square, d Direction, _ bool) float32 {
	to := from.Add(d.Vector())
	speed := c.SpeedMod(to.X, to.Z)
	heatMod := float32(1)
	if g.heat != nil {
		if hc := g.heat.Cost(to, def.OwnerID); hc > 0 {
			heatMod = float32(1 + float32(c.HeatMod()*hc))
		}
	}
	return float32(float32(d.Cost()*heatMod) / speed)
}

func (g *fineGraph) heuristic(c MoveClass, n, goal Square) float32 {
	return float32(Octile(n, goal) * g.invMaxSpeed[c.PathType()])
}

func (g *fineGraph) isGoal(_ MoveClass, def *SearchDef, n Square) bool {
	return n.DistSq(def.Goal) <= def.Radius*def.Radius
}

func (g *fineGraph) goalBlocked(c MoveClass, def *SearchDef) bool {
	return g.admit(c, def, def.Goal) != 0
}

// inverseMaxSpeeds scans the whole map once per class for its fastest square.
func inverseMaxSpeeds(w, h int, classes []MoveClass) []float32 {
	inv := make([]float32, len(classes))
	for i, c := range classes {
		var best float32
		for z := range h {
			for x := range w {
				best = max(best, c.SpeedMod(x, z))
			}
		}
		if best <= 0 {
			best = 1
		}
		inv[i] = 1 / best
	}
	return inv
}
