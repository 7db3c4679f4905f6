package pathing

import "log/slog"

// graph is the resolution-specific part of a search: how nodes map to
// squares, which nodes may be entered, and what each step costs.
type graph interface {
	size() (int, int)
	// nodeOf returns the node containing fine square s.
	nodeOf(s Square) Square
	// square returns the fine square representing node n for class c.
	square(c MoveClass, n Square) Square
	// admit returns nodeBlocked or nodeForbidden when a fresh node must not
	// be entered, zero otherwise.
	admit(c MoveClass, def *SearchDef, n Square) nodeFlag
	// stepCost returns the cost of moving from `from` in direction d,
	// excluding extra costs. PathCostInfinity rejects the edge.
	stepCost(c MoveClass, def *SearchDef, from Square, d Direction, fromStart bool) float32
	heuristic(c MoveClass, n, goal Square) float32
	isGoal(c MoveClass, def *SearchDef, n Square) bool
	goalBlocked(c MoveClass, def *SearchDef) bool
}

// SearchStats counts work done by a Searcher.
type SearchStats struct {
	Searches   uint64
	Expansions uint64
}

// Searcher runs best-first searches over one graph. It owns its node
// buffer and must not be used by two goroutines at once.
type Searcher struct {
	g       graph
	terrain Terrain
	nodes   *NodeStateBuffer
	open    openList
	trail   []Square

	bestIdx int
	bestH   float32

	stats SearchStats
}

func newSearcher(g graph, terrain Terrain) *Searcher {
	w, h := g.size()
	return &Searcher{
		g:       g,
		terrain: terrain,
		nodes:   NewNodeStateBuffer(w, h),
		open:    make(openList, 0, 1024),
	}
}

// Stats returns the counters accumulated so far.
func (s *Searcher) Stats() SearchStats { return s.stats }

// Nodes exposes the node buffer, mainly for extra-cost overlays.
func (s *Searcher) Nodes() *NodeStateBuffer { return s.nodes }

// Search looks for a path satisfying def, expanding at most maxNodes nodes.
// It never retries: running out of budget yields GoalOutOfRange with the
// best approach found so far.
func (s *Searcher) Search(c MoveClass, def SearchDef, maxNodes int) (Path, SearchResult) {
	s.stats.Searches++
	s.nodes.reset()
	s.open.reset()

	start := s.g.nodeOf(def.Start)
	goal := s.g.nodeOf(def.Goal)
	if !s.nodes.inside(start) {
		slog.Error("search start outside grid", "start", def.Start)
		return Path{}, Error
	}
	if s.g.isGoal(c, &def, start) {
		return Path{}, CantGetCloser
	}
	if def.ExactPath && s.g.goalBlocked(c, &def) {
		return Path{}, CantGetCloser
	}

	startIdx := s.nodes.index(start)
	h := s.g.heuristic(c, start, goal)
	s.nodes.setFlag(startIdx, nodeOpen|nodeStart)
	s.nodes.fCost[startIdx] = h
	s.open.push(openNode{idx: startIdx, fCost: h})
	s.bestIdx, s.bestH = startIdx, h

	found := -1
	expansions := 0
	for len(s.open) > 0 {
		top := s.open.pop()
		idx := top.idx
		if s.nodes.has(idx, nodeClosed) || top.fCost != s.nodes.fCost[idx] {
			continue
		}
		if !s.nodes.has(idx, nodeOpen) {
			slog.Error("open list entry not marked open", "node", s.nodeAt(idx))
			return Path{}, Error
		}
		n := s.nodeAt(idx)
		if s.g.isGoal(c, &def, n) {
			found = idx
			break
		}
		if expansions >= maxNodes {
			break
		}
		expansions++
		s.nodes.mask[idx] = s.nodes.mask[idx]&^nodeOpen | nodeClosed
		s.expand(c, &def, n, idx, goal)
	}
	s.stats.Expansions += uint64(expansions)

	if found >= 0 {
		return s.reconstruct(c, &def, found), Ok
	}
	if def.ExactPath {
		return Path{}, GoalOutOfRange
	}
	if s.bestIdx == startIdx {
		return Path{}, CantGetCloser
	}
	return s.reconstruct(c, &def, s.bestIdx), GoalOutOfRange
}

func (s *Searcher) nodeAt(idx int) Square {
	return Square{X: idx % s.nodes.width, Z: idx / s.nodes.width}
}

// expand tests all neighbours of n. Diagonals are only tried when both
// flanking cardinals are passable, so paths never squeeze between corners.
func (s *Searcher) expand(c MoveClass, def *SearchDef, n Square, idx int, goal Square) {
	fromStart := s.nodes.has(idx, nodeStart)
	var passable [numDirections]bool
	for _, d := range cardinalDirs {
		passable[d] = s.testNode(c, def, n, idx, d, goal, fromStart)
	}
	for _, d := range diagonalDirs {
		a, b := d.adjacentCardinals()
		if passable[a] && passable[b] {
			s.testNode(c, def, n, idx, d, goal, fromStart)
		}
	}
}

// testNode relaxes the edge from n in direction d. It returns false when
// the target node itself is impassable.
func (s *Searcher) testNode(c MoveClass, def *SearchDef, from Square, fromIdx int, d Direction, goal Square, fromStart bool) bool {
	to := from.Add(d.Vector())
	if !s.nodes.inside(to) {
		return false
	}
	idx := s.nodes.index(to)
	if s.nodes.has(idx, nodeBlocked|nodeForbidden) {
		return false
	}
	if s.nodes.has(idx, nodeClosed) {
		return true
	}
	if !s.nodes.has(idx, nodeOpen|nodeChecked) {
		if f := s.g.admit(c, def, to); f != 0 {
			s.nodes.setFlag(idx, f)
			return false
		}
		s.nodes.setFlag(idx, nodeChecked)
	}

	step := s.g.stepCost(c, def, from, d, fromStart)
	if step >= PathCostInfinity {
		return true
	}
	g := float32(s.nodes.gCost[fromIdx] + step)
	g = float32(g + s.nodes.extraCostAt(idx, def.Synced))
	h := s.g.heuristic(c, to, goal)
	f := float32(g + h)
	if s.nodes.has(idx, nodeOpen) && s.nodes.fCost[idx] <= f {
		return true
	}

	s.nodes.setFlag(idx, nodeOpen)
	s.nodes.gCost[idx] = g
	s.nodes.fCost[idx] = f
	s.nodes.parent[idx] = d
	s.open.push(openNode{idx: idx, fCost: f, gCost: g})

	if !def.ExactPath && h < s.bestH {
		s.bestIdx, s.bestH = idx, h
	}
	return true
}

// reconstruct walks parent links from end back to the start node.
func (s *Searcher) reconstruct(c MoveClass, def *SearchDef, end int) Path {
	p := Path{Cost: s.nodes.gCost[end]}
	if !def.NeedPath {
		return p
	}

	s.trail = s.trail[:0]
	idx := end
	for steps := 0; ; steps++ {
		n := s.nodeAt(idx)
		s.trail = append(s.trail, n)
		if s.nodes.has(idx, nodeStart) {
			break
		}
		if steps > len(s.nodes.dirty) {
			slog.Error("parent chain does not reach start", "end", s.nodeAt(end))
			return Path{Cost: p.Cost}
		}
		idx = s.nodes.index(n.Add(s.nodes.parent[idx].Opposite().Vector()))
	}

	count := len(s.trail)
	p.Squares = make([]Square, count)
	p.Points = make([]Vec3, count)
	for i, n := range s.trail {
		j := count - 1 - i
		sq := s.g.square(c, n)
		if j == 0 {
			sq = def.Start
		}
		p.Squares[j] = sq
		p.Points[j] = SquareCenter(sq, s.terrain.HeightAt(sq.X, sq.Z))
	}

	if _, ok := s.g.(*fineGraph); ok {
		s.cutCorners(c, def, &p)
	}
	return p
}
