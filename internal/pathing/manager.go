package pathing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/udisondev/pathgrid/internal/config"
	"github.com/udisondev/pathgrid/internal/store"
)

// blockTier bundles a coarse State with its searcher and query caches.
type blockTier struct {
	state    *State
	searcher *Searcher
	synced   *PathCache
	unsynced *PathCache
}

func (t *blockTier) cache(synced bool) *PathCache {
	if synced {
		return t.synced
	}
	return t.unsynced
}

// Manager is the pathing context for one loaded map. Queries run on the
// caller's goroutine; only precomputation fans out to workers.
type Manager struct {
	cfg     config.Pathing
	terrain Terrain
	classes ClassSet

	heat   *HeatMap
	fine   *Searcher
	blocks [numTiers]*blockTier // TierMed and TierLow

	paths  map[uint32]*MultiPath
	nextID uint32
	tick   int
	ready  bool
}

// NewManager builds the tiers for a map. Misconfiguration is returned as
// an error; nothing is precomputed until Init.
func NewManager(cfg config.Pathing, mapName string, terrain Terrain, classes ClassSet, st store.BlobStore) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating pathing config: %w", err)
	}
	mapX, mapZ := terrain.Size()

	m := &Manager{
		cfg:     cfg,
		terrain: terrain,
		classes: classes,
		heat:    NewHeatMap(mapX, mapZ, cfg.HeatMapScale),
		paths:   make(map[uint32]*MultiPath),
	}

	for _, t := range []Tier{TierMed, TierLow} {
		bs := cfg.MedResBlockSize
		if t == TierLow {
			bs = cfg.LowResBlockSize
		}
		state, err := NewState(StateConfig{
			Tier:             t.String(),
			MapName:          mapName,
			BlockSize:        bs,
			EdgeNodeLimit:    cfg.EdgeNodeLimit,
			SquaresToUpdate:  cfg.SquaresToUpdate,
			UpdateRate:       cfg.UpdateRate,
			UpdateDelayTicks: cfg.UpdateDelayTicks,
			Workers:          cfg.Workers,
		}, terrain, classes, st)
		if err != nil {
			return nil, err
		}
		g := state.Grid()
		m.blocks[t] = &blockTier{
			state:    state,
			synced:   NewPathCache(t.String()+"-synced", g.BlocksX, g.BlocksZ, len(classes.Classes), cfg.CacheLifetimeTicks, cfg.CacheMaxItems),
			unsynced: NewPathCache(t.String()+"-unsynced", g.BlocksX, g.BlocksZ, len(classes.Classes), cfg.CacheLifetimeTicks, cfg.CacheMaxItems),
		}
	}
	m.blocks[TierMed].state.SetNext(m.blocks[TierLow].state)

	m.fine = newFineSearcher(terrain, m.blocks[TierMed].state.invMaxSpeed, m.heat)
	for _, t := range []Tier{TierMed, TierLow} {
		m.blocks[t].searcher = NewBlockSearcher(m.blocks[t].state, m.fine, cfg.EdgeNodeLimit)
	}
	return m, nil
}

// Init loads or computes both block tiers.
func (m *Manager) Init(ctx context.Context) error {
	for _, t := range []Tier{TierMed, TierLow} {
		if err := m.blocks[t].state.Init(ctx); err != nil {
			return err
		}
	}
	m.ready = true
	return nil
}

// Close drops every path and pending update.
func (m *Manager) Close() {
	for _, t := range []Tier{TierMed, TierLow} {
		m.blocks[t].state.Close()
	}
	clear(m.paths)
	activePaths.Set(0)
	m.ready = false
}

// RequestPath plans a route for class from start to within radius world
// units of goal. The returned id is 0 when the request could not start.
func (m *Manager) RequestPath(classID int, start, goal Vec3, radius float32, synced bool) (uint32, SearchResult) {
	if !m.ready {
		slog.Warn("path requested before init", "class", classID)
		return 0, Error
	}
	if classID < 0 || classID >= len(m.classes.Classes) {
		slog.Warn("path requested for unknown class", "class", classID)
		return 0, Error
	}

	mapX, mapZ := m.terrain.Size()
	m.nextID++
	if m.nextID == 0 {
		m.nextID = 1
	}
	mp := &MultiPath{
		ID:         m.nextID,
		ClassID:    classID,
		Synced:     synced,
		Start:      start,
		Goal:       goal,
		GoalSquare: SquareOf(goal, mapX, mapZ),
		Radius:     max(radius/SquareSize, MinGoalRadius),
		Stage:      StageRequested,
	}
	startSq := SquareOf(start, mapX, mapZ)

	result := m.arrangePath(mp, startSq)
	if result == Error {
		return 0, Error
	}

	if result == CantGetCloser {
		// Nothing to refine; hand out the start so the agent stays put.
		mp.paths[TierFine] = Path{Squares: []Square{startSq}, Points: []Vec3{start}}
		mp.final[TierFine] = true
	} else {
		switch mp.SearchTier {
		case TierLow:
			mp.Stage = StageLowResSearched
			m.refine(mp, TierLow, startSq)
			mp.Stage = StageMedResRefined
			m.refine(mp, TierMed, startSq)
		case TierMed:
			mp.Stage = StageMedResRefined
			m.refine(mp, TierMed, startSq)
		}
		mp.anchorFine(startSq, start)
	}
	mp.Stage = StageFineResRefined

	mp.Result = result
	m.paths[mp.ID] = mp
	activePaths.Set(float64(len(m.paths)))
	return mp.ID, result
}

// arrangePath tries the tiers from finest to coarsest, skipping those whose
// distance limit is exceeded, and keeps the best result.
func (m *Manager) arrangePath(mp *MultiPath, startSq Square) SearchResult {
	dist := Octile(startSq, mp.GoalSquare)

	best := Error
	var bestPath Path
	bestTier := TierFine
	for _, t := range []Tier{TierFine, TierMed, TierLow} {
		if t == TierFine && dist > m.cfg.MaxResSearchDistance {
			continue
		}
		if t == TierMed && dist > m.cfg.MedResSearchDistance {
			continue
		}
		p, res := m.search(mp, t, startSq, mp.GoalSquare, mp.Radius, true)
		if res < best {
			best, bestPath, bestTier = res, p, t
		}
		if res == Ok {
			break
		}
	}

	// Far requests that failed get one unconstrained medium search.
	if best != Ok && dist > m.cfg.MedResSearchDistance {
		p, res := m.search(mp, TierMed, startSq, mp.GoalSquare, mp.Radius, false)
		if res < best {
			best, bestPath, bestTier = res, p, TierMed
		}
	}

	mp.SearchTier = bestTier
	mp.paths[bestTier] = bestPath
	mp.final[bestTier] = true
	return best
}

// search runs one query on a tier. Constrained searches stay within a
// window around start and goal and may be answered from the path cache.
func (m *Manager) search(mp *MultiPath, t Tier, from, to Square, radius float32, constrained bool) (Path, SearchResult) {
	c := m.classes.Classes[mp.ClassID]
	mapX, mapZ := m.terrain.Size()
	def := SearchDef{
		Start:    from,
		Goal:     to,
		Radius:   radius,
		NeedPath: true,
		Synced:   mp.Synced,
		OwnerID:  int(mp.ID),
	}

	if t == TierFine {
		def.Bounds = boundsAround(from, to, int(m.cfg.MaxResSearchDistance)).Clamp(mapX, mapZ)
		def.Constrained = true
		p, res := m.fine.Search(c, def, m.cfg.MaxResNodeLimit)
		searchesTotal.WithLabelValues(t.String(), res.String()).Inc()
		return p, res
	}

	bt := m.blocks[t]
	limit := m.cfg.MedResNodeLimit
	if t == TierLow {
		limit = m.cfg.LowResNodeLimit
	}
	if constrained && t == TierMed {
		def.Bounds = boundsAround(from, to, int(m.cfg.MedResSearchDistance)/4+bt.state.grid.BlockSize).Clamp(mapX, mapZ)
		def.Constrained = true
	}

	grid := bt.state.grid
	sb, gb := grid.BlockOf(from), grid.BlockOf(to)
	cache := bt.cache(mp.Synced)
	if constrained {
		if item, ok := cache.Get(sb, gb, radius, mp.ClassID); ok {
			cacheLookupsTotal.WithLabelValues(t.String(), "hit").Inc()
			p := item.Path
			if len(p.Squares) > 0 {
				p.Squares[0] = from
				p.Points[0] = SquareCenter(from, m.terrain.HeightAt(from.X, from.Z))
			}
			return p, item.Result
		}
		cacheLookupsTotal.WithLabelValues(t.String(), "miss").Inc()
	}

	p, res := bt.searcher.Search(c, def, limit)
	searchesTotal.WithLabelValues(t.String(), res.String()).Inc()
	if constrained && res != Error {
		cache.Put(CacheItem{
			Path:       p,
			Result:     res,
			StartBlock: sb,
			GoalBlock:  gb,
			GoalRadius: radius,
			ClassID:    mp.ClassID,
		})
	}
	return p, res
}

func boundsAround(a, b Square, margin int) Rect {
	return Rect{
		X1: min(a.X, b.X), Z1: min(a.Z, b.Z),
		X2: max(a.X, b.X), Z2: max(a.Z, b.Z),
	}.Inflate(margin)
}

// searchDistance is the distance limit of tier t in squares.
func (m *Manager) searchDistance(t Tier) float32 {
	if t == TierFine {
		return m.cfg.MaxResSearchDistance
	}
	return m.cfg.MedResSearchDistance
}

// refine rebuilds the tier below coarse from `from` toward the next
// waypoint of coarse that is not already close, or toward the final goal
// once coarse is used up.
func (m *Manager) refine(mp *MultiPath, coarse Tier, from Square) SearchResult {
	finer := coarse - 1
	cp := &mp.paths[coarse]
	waypointRadius := float32(m.blocks[coarse].state.grid.BlockSize) / 2
	limit := max(float32(refineExtRatio*m.searchDistance(finer)), waypointRadius+1)
	for cp.Len() > 0 && from.DistSq(cp.Squares[0]) <= limit*limit {
		cp.popFront()
	}

	for {
		goal, radius := mp.GoalSquare, mp.Radius
		toGoal := cp.Len() == 0 && mp.final[coarse]
		if cp.Len() > 0 {
			goal, radius = cp.Squares[0], waypointRadius
		}
		// With an unfinished, empty coarse path the coarse tier gave up
		// early and the finer tier aims straight at the goal.

		p, res := m.search(mp, finer, from, goal, radius, true)
		if res == CantGetCloser && cp.Len() > 0 {
			// Already within reach of this waypoint.
			cp.popFront()
			continue
		}
		mp.paths[finer] = p
		mp.final[finer] = toGoal && res != GoalOutOfRange
		return res
	}
}

// needsExtension reports whether the fine buffer should be rebuilt before
// handing out the next waypoint.
func (m *Manager) needsExtension(mp *MultiPath, from Square) bool {
	if mp.SearchTier == TierFine || mp.final[TierFine] {
		return false
	}
	if mp.paths[TierFine].Len() <= 2 {
		return true
	}
	med := &mp.paths[TierMed]
	ext := float32(refineExtRatio * m.cfg.MaxResSearchDistance)
	return med.Len() > 0 && from.DistSq(med.Squares[0]) <= ext*ext
}

func (m *Manager) extend(mp *MultiPath, from Square, pos Vec3) {
	if mp.SearchTier == TierLow && !mp.final[TierMed] {
		med := &mp.paths[TierMed]
		low := &mp.paths[TierLow]
		ext := float32(refineExtRatio * m.cfg.MedResSearchDistance)
		if med.Len() <= 2 || (low.Len() > 0 && from.DistSq(low.Squares[0]) <= ext*ext) {
			m.refine(mp, TierLow, from)
		}
	}
	m.refine(mp, TierMed, from)
	mp.anchorFine(from, pos)
}

// NextWaypoint returns the next waypoint at least minDistance world units
// from pos, refining coarser tiers on demand. NoPathPoint means the path
// is finished, failed or unknown.
func (m *Manager) NextWaypoint(pathID uint32, pos Vec3, minDistance float32) Vec3 {
	mp, ok := m.paths[pathID]
	if !ok || mp.Stage == StageDone {
		return NoPathPoint
	}
	mp.Stage = StageConsuming
	wp := m.nextWaypoint(mp, pos, minDistance, 0)
	if wp == NoPathPoint {
		mp.Stage = StageDone
	}
	return wp
}

func (m *Manager) nextWaypoint(mp *MultiPath, pos Vec3, minDistance float32, depth int) Vec3 {
	if depth > m.cfg.MaxRefinementDepth {
		slog.Debug("path refinement depth exceeded", "path", mp.ID, "depth", depth)
		return mp.Goal
	}

	mapX, mapZ := m.terrain.Size()
	from := SquareOf(pos, mapX, mapZ)
	if m.needsExtension(mp, from) {
		m.extend(mp, from, pos)
	}

	fp := &mp.paths[TierFine]
	minSq := minDistance * minDistance
	for fp.Len() > 0 && fp.Points[0].DistSq2D(pos) <= minSq {
		fp.popFront()
	}
	if fp.Len() > 0 {
		return fp.Points[0]
	}
	if mp.SearchTier != TierFine && !mp.final[TierFine] {
		return m.nextWaypoint(mp, pos, minDistance, depth+1)
	}
	return NoPathPoint
}

// UpdatePath deposits heat along the remaining fine waypoints of a path,
// strongest at the agent and fading along the route.
func (m *Manager) UpdatePath(pathID uint32) {
	mp, ok := m.paths[pathID]
	if !ok {
		return
	}
	produced := m.classes.Classes[mp.ClassID].HeatProduced()
	for i, sq := range mp.paths[TierFine].Squares {
		value := produced - i
		if value <= 0 {
			break
		}
		m.heat.Deposit(sq, int32(value), int(mp.ID))
	}
}

// DeletePath releases a path. Unknown ids are ignored.
func (m *Manager) DeletePath(pathID uint32) {
	delete(m.paths, pathID)
	activePaths.Set(float64(len(m.paths)))
}

// Path returns the live MultiPath for inspection.
func (m *Manager) Path(pathID uint32) (*MultiPath, bool) {
	mp, ok := m.paths[pathID]
	return mp, ok
}

// TerrainChanged invalidates the squares in [x1,x2] x [z1,z2]. The medium
// tier forwards drained blocks to the low tier.
func (m *Manager) TerrainChanged(x1, z1, x2, z2 int) {
	m.blocks[TierMed].state.MapChanged(Rect{X1: x1, Z1: z1, X2: x2, Z2: z2})
}

// Update advances one simulation tick: heat decay, incremental block
// recomputation, then cache expiry.
func (m *Manager) Update(ctx context.Context) error {
	m.tick++
	m.heat.Update()
	for _, t := range []Tier{TierMed, TierLow} {
		bt := m.blocks[t]
		if err := bt.state.Update(ctx); err != nil {
			return err
		}
		bt.synced.Update(m.tick)
		bt.unsynced.Update(m.tick)
	}
	return nil
}

// QueuedUpdates returns the obsolete blocks waiting in both tiers.
func (m *Manager) QueuedUpdates() int {
	return m.blocks[TierMed].state.QueuedUpdates() + m.blocks[TierLow].state.QueuedUpdates()
}

// PathChecksum combines both tier checksums.
func (m *Manager) PathChecksum() uint32 {
	return m.blocks[TierMed].state.PathChecksum() + m.blocks[TierLow].state.PathChecksum()
}

// SetNodeExtraCost biases square (x, z) on every tier.
func (m *Manager) SetNodeExtraCost(x, z int, cost float32, synced bool) {
	sq := Square{X: x, Z: z}
	m.fine.nodes.SetExtraCost(sq, cost, synced)
	for _, t := range []Tier{TierMed, TierLow} {
		bt := m.blocks[t]
		bt.searcher.nodes.SetExtraCost(bt.state.grid.BlockOf(sq), cost, synced)
	}
}

// NodeExtraCost returns the fine-tier bias of square (x, z).
func (m *Manager) NodeExtraCost(x, z int, synced bool) float32 {
	return m.fine.nodes.ExtraCost(Square{X: x, Z: z}, synced)
}

// RemoveCacheFiles deletes the persisted blobs of both tiers.
func (m *Manager) RemoveCacheFiles(ctx context.Context) error {
	for _, t := range []Tier{TierMed, TierLow} {
		if err := m.blocks[t].state.RemoveCache(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports searcher and cache counters per tier.
type Stats struct {
	Searches [numTiers]SearchStats
	Caches   [numTiers]CacheStats
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	var st Stats
	st.Searches[TierFine] = m.fine.Stats()
	for _, t := range []Tier{TierMed, TierLow} {
		bt := m.blocks[t]
		st.Searches[t] = bt.searcher.Stats()
		syn, uns := bt.synced.Stats(), bt.unsynced.Stats()
		st.Caches[t] = CacheStats{
			Hits:       syn.Hits + uns.Hits,
			Misses:     syn.Misses + uns.Misses,
			Collisions: syn.Collisions + uns.Collisions,
		}
	}
	return st
}
