package pathing

import (
	"cmp"
	"context"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// offsetCandidate is a square inside a block with its distance floor to
// the block centre. Candidates are sorted by floor so the offset scan can
// stop as soon as the floor alone exceeds the best cost.
type offsetCandidate struct {
	dx, dz int
	floor  float32
}

func offsetCandidates(blockSize int) []offsetCandidate {
	center := float32(blockSize-1) / 2
	out := make([]offsetCandidate, 0, blockSize*blockSize)
	for dz := range blockSize {
		for dx := range blockSize {
			fx := float32(dx) - center
			fz := float32(dz) - center
			out = append(out, offsetCandidate{dx: dx, dz: dz, floor: float32(fx*fx) + float32(fz*fz)})
		}
	}
	slices.SortStableFunc(out, func(a, b offsetCandidate) int { return cmp.Compare(a.floor, b.floor) })
	return out
}

// edgeRef names one stored edge: a block and one of its forward directions.
type edgeRef struct {
	block int
	dir   Direction
}

func (s *State) precomputeAll(ctx context.Context) error {
	start := time.Now()
	n := s.grid.NumBlocks()
	blocks := make([]int, n)
	edges := make([]edgeRef, 0, n*numStoredDirections)
	for i := range n {
		blocks[i] = i
		for d := range Direction(numStoredDirections) {
			edges = append(edges, edgeRef{block: i, dir: d})
		}
	}
	if err := s.recompute(ctx, blocks, edges); err != nil {
		return err
	}
	precomputeDuration.WithLabelValues(s.cfg.Tier, "full").Observe(time.Since(start).Seconds())
	return nil
}

// recompute runs phase A (offsets) for blocks, waits for every worker,
// then runs phase B (edge costs) for edges. Phase B reads neighbouring
// offsets, so the two phases must never overlap.
func (s *State) recompute(ctx context.Context, blocks []int, edges []edgeRef) error {
	numClasses := len(s.classes.Classes)

	err := s.parallel(ctx, len(blocks), func(_ *Searcher, i int) {
		for cls := range numClasses {
			s.findOffset(cls, blocks[i])
		}
	})
	if err != nil {
		return err
	}

	return s.parallel(ctx, len(edges), func(w *Searcher, i int) {
		for cls := range numClasses {
			s.computeEdge(w, cls, edges[i])
		}
	})
}

// parallel hands task indices [0, n) to the workers. Each worker owns one
// fine searcher for its whole lifetime.
func (s *State) parallel(ctx context.Context, n int, fn func(w *Searcher, i int)) error {
	var next atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1) - 1)
				if i >= n {
					return nil
				}
				fn(w, i)
			}
		})
	}
	return g.Wait()
}

// findOffset picks the cheapest unblocked square of a block, weighting
// closeness to the centre against slowness. A block with no usable
// square falls back to its centre.
func (s *State) findOffset(cls, block int) {
	c := s.classes.Classes[cls]
	rect := s.grid.BlockRect(s.grid.BlockAt(block))
	blockArea := float32(s.cfg.BlockSize*s.cfg.BlockSize) / SquareSize

	first := s.candidates[0]
	best := Square{X: rect.X1 + first.dx, Z: rect.Z1 + first.dz}
	bestCost := PathCostInfinity
	for _, cand := range s.candidates {
		if cand.floor >= bestCost {
			break
		}
		sq := Square{X: rect.X1 + cand.dx, Z: rect.Z1 + cand.dz}
		if c.IsBlocked(sq.X, sq.Z) {
			continue
		}
		speed := c.SpeedMod(sq.X, sq.Z)
		cost := float32(cand.floor + float32(blockArea/float32(0.001+speed)))
		if cost < bestCost {
			bestCost = cost
			best = sq
		}
	}
	s.offsets[cls][block] = best
}

// computeEdge runs an exact fine search between two neighbouring offsets,
// confined to the two blocks.
func (s *State) computeEdge(w *Searcher, cls int, e edgeRef) {
	slot := s.costIndex(cls, e.block, e.dir)
	b := s.grid.BlockAt(e.block)
	n := b.Add(e.dir.Vector())
	if !s.grid.HasBlock(n) {
		s.costs[slot] = PathCostInfinity
		return
	}

	c := s.classes.Classes[cls]
	from := s.offsets[cls][e.block]
	to := s.offsets[cls][s.grid.BlockIndex(n)]
	if !walkable(c, from) || !walkable(c, to) {
		s.costs[slot] = PathCostInfinity
		return
	}

	def := SearchDef{
		Start:       from,
		Goal:        to,
		Bounds:      s.grid.BlockRect(b).Union(s.grid.BlockRect(n)),
		Constrained: true,
		ExactPath:   true,
	}
	p, res := w.Search(c, def, s.cfg.EdgeNodeLimit)
	if res != Ok {
		s.costs[slot] = PathCostInfinity
		return
	}
	s.costs[slot] = p.Cost
}

// incidentEdges lists every stored edge touching one of blocks, sorted
// and without duplicates.
func (s *State) incidentEdges(blocks []int) []edgeRef {
	seen := make(map[edgeRef]struct{}, len(blocks)*numDirections)
	edges := make([]edgeRef, 0, len(blocks)*numDirections)
	add := func(e edgeRef) {
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		edges = append(edges, e)
	}
	for _, idx := range blocks {
		b := s.grid.BlockAt(idx)
		for d := range Direction(numDirections) {
			if d < numStoredDirections {
				add(edgeRef{block: idx, dir: d})
				continue
			}
			n := b.Add(d.Vector())
			if !s.grid.HasBlock(n) {
				continue
			}
			add(edgeRef{block: s.grid.BlockIndex(n), dir: d - numStoredDirections})
		}
	}
	slices.SortFunc(edges, func(a, b edgeRef) int {
		if a.block != b.block {
			return cmp.Compare(a.block, b.block)
		}
		return cmp.Compare(a.dir, b.dir)
	})
	return edges
}

func walkable(c MoveClass, sq Square) bool {
	return !c.IsBlocked(sq.X, sq.Z) && c.SpeedMod(sq.X, sq.Z) > 0
}
