package pathing

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/pathgrid/internal/store"
)

// ClassSet is the list of movement classes plus the checksum that
// identifies it in cache keys. Classes[i].PathType() must equal i.
type ClassSet struct {
	Classes  []MoveClass
	Checksum uint32
}

// StateConfig parametrizes one block tier.
type StateConfig struct {
	Tier      string // label used in logs, metrics and blob names
	MapName   string
	BlockSize int

	EdgeNodeLimit    int
	SquaresToUpdate  int
	UpdateRate       float32
	UpdateDelayTicks int
	Workers          int
}

// State owns the block offsets and edge costs of one tier, persists them
// and keeps them current after terrain edits.
type State struct {
	cfg         StateConfig
	grid        Grid
	terrain     Terrain
	classes     ClassSet
	invMaxSpeed []float32
	store       store.BlobStore

	offsets  [][]Square // [class][block]
	costs    []float32  // [class][block][forward dir]
	cacheKey uint32
	checksum uint32
	ready    bool

	candidates []offsetCandidate
	workers    []*Searcher

	obsolete []bool
	queue    []int
	penalty  int
	wait     int
	next     *State
}

// NewState validates the tier geometry and allocates tables. Nothing is
// computed until Init. st may be nil to disable persistence.
func NewState(cfg StateConfig, terrain Terrain, classes ClassSet, st store.BlobStore) (*State, error) {
	mapX, mapZ := terrain.Size()
	grid, err := NewGrid(mapX, mapZ, cfg.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("creating %s tier: %w", cfg.Tier, err)
	}
	// Cached offsets are stored as uint16 map coordinates.
	if mapX > maxCacheMapSize || mapZ > maxCacheMapSize {
		return nil, fmt.Errorf("creating %s tier: %w: map %dx%d wider than %d squares",
			cfg.Tier, ErrBadGrid, mapX, mapZ, maxCacheMapSize)
	}
	if len(classes.Classes) == 0 {
		return nil, fmt.Errorf("creating %s tier: no movement classes", cfg.Tier)
	}
	for i, c := range classes.Classes {
		if c.PathType() != i {
			return nil, fmt.Errorf("creating %s tier: class %d has path type %d", cfg.Tier, i, c.PathType())
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	n := grid.NumBlocks()
	s := &State{
		cfg:         cfg,
		grid:        grid,
		terrain:     terrain,
		classes:     classes,
		invMaxSpeed: inverseMaxSpeeds(mapX, mapZ, classes.Classes),
		store:       st,
		offsets:     make([][]Square, len(classes.Classes)),
		costs:       make([]float32, len(classes.Classes)*n*numStoredDirections),
		candidates:  offsetCandidates(cfg.BlockSize),
		obsolete:    make([]bool, n),
	}
	for i := range s.offsets {
		s.offsets[i] = make([]Square, n)
	}
	s.workers = make([]*Searcher, cfg.Workers)
	for i := range s.workers {
		s.workers[i] = newFineSearcher(terrain, s.invMaxSpeed, nil)
	}
	return s, nil
}

// SetNext links the next coarser tier; drained blocks are re-queued there.
func (s *State) SetNext(next *State) { s.next = next }

// Grid returns the tier geometry.
func (s *State) Grid() Grid { return s.grid }

// Tier returns the tier label.
func (s *State) Tier() string { return s.cfg.Tier }

// PathChecksum identifies the precomputed tables for multiplayer agreement.
func (s *State) PathChecksum() uint32 { return s.checksum }

// QueuedUpdates returns the number of blocks waiting for recomputation.
func (s *State) QueuedUpdates() int { return len(s.queue) }

// Offset returns the representative square of block b for a class.
func (s *State) Offset(classID int, b Square) Square {
	return s.offsets[classID][s.grid.BlockIndex(b)]
}

func (s *State) costIndex(classID, block int, d Direction) int {
	return (classID*s.grid.NumBlocks()+block)*numStoredDirections + int(d)
}

// EdgeCost returns the cost of moving from block b to its neighbour in
// direction d. Directions 4..7 read the neighbour's stored slot.
func (s *State) EdgeCost(classID int, b Square, d Direction) float32 {
	if d < numStoredDirections {
		return s.costs[s.costIndex(classID, s.grid.BlockIndex(b), d)]
	}
	n := b.Add(d.Vector())
	if !s.grid.HasBlock(n) {
		return PathCostInfinity
	}
	return s.costs[s.costIndex(classID, s.grid.BlockIndex(n), d-numStoredDirections)]
}

// CacheName is the blob name for the current terrain and class set.
func (s *State) CacheName() string {
	return fmt.Sprintf("%s.%s-%d-%08x.pcz", s.cfg.MapName, s.cfg.Tier, s.cfg.BlockSize, s.cacheKey)
}

// Init loads the tables from the store or computes them.
func (s *State) Init(ctx context.Context) error {
	start := time.Now()
	s.cacheKey = s.computeCacheKey()
	name := s.CacheName()

	loaded := s.loadCache(ctx, name)
	if !loaded {
		if err := s.precomputeAll(ctx); err != nil {
			return fmt.Errorf("precomputing %s tier: %w", s.cfg.Tier, err)
		}
		s.saveCache(ctx, name)
	}
	s.checksum = payloadChecksum(s.appendPayload(nil))
	s.ready = true

	slog.Info("pathing state ready",
		"tier", s.cfg.Tier,
		"block_size", s.cfg.BlockSize,
		"blocks", s.grid.NumBlocks(),
		"classes", len(s.classes.Classes),
		"from_cache", loaded,
		"checksum", fmt.Sprintf("%08x", s.checksum),
		"elapsed", time.Since(start))
	return nil
}

func (s *State) loadCache(ctx context.Context, name string) bool {
	if s.store == nil {
		return false
	}
	blob, err := s.store.Load(ctx, name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("loading pathing cache", "name", name, "err", err)
		}
		return false
	}
	if err := s.decode(blob); err != nil {
		slog.Warn("discarding pathing cache", "name", name, "err", err)
		if err := s.store.Remove(ctx, name); err != nil {
			slog.Warn("removing pathing cache", "name", name, "err", err)
		}
		return false
	}
	return true
}

func (s *State) saveCache(ctx context.Context, name string) {
	if s.store == nil {
		return
	}
	blob, err := s.encode()
	if err != nil {
		slog.Warn("encoding pathing cache", "name", name, "err", err)
		return
	}
	if err := s.store.Save(ctx, name, blob); err != nil {
		slog.Warn("saving pathing cache", "name", name, "err", err)
	}
}

// RemoveCache deletes this tier's blob from the store.
func (s *State) RemoveCache(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Remove(ctx, s.CacheName()); err != nil {
		return fmt.Errorf("removing %s cache: %w", s.cfg.Tier, err)
	}
	return nil
}

func (s *State) computeCacheKey() uint32 {
	var buf [20]byte
	binary.LittleEndian.PutUint32(buf[0:], s.terrain.HeightmapChecksum())
	binary.LittleEndian.PutUint32(buf[4:], s.terrain.TypemapChecksum())
	binary.LittleEndian.PutUint32(buf[8:], s.classes.Checksum)
	binary.LittleEndian.PutUint32(buf[12:], uint32(s.cfg.BlockSize))
	binary.LittleEndian.PutUint32(buf[16:], FormatVersion)
	sum := blake2b.Sum256(buf[:])
	return binary.LittleEndian.Uint32(sum[:4])
}

func payloadChecksum(payload []byte) uint32 {
	sum := blake2b.Sum256(payload)
	return binary.LittleEndian.Uint32(sum[:4])
}

// MapChanged marks every block overlapping r, grown by one block, as
// obsolete. Blocks already queued are left alone. r is in fine squares.
func (s *State) MapChanged(r Rect) {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Z1 > r.Z2 {
		r.Z1, r.Z2 = r.Z2, r.Z1
	}
	br, ok := s.grid.BlocksOverlapping(r)
	if !ok {
		return
	}
	br = br.Inflate(1).Clamp(s.grid.BlocksX, s.grid.BlocksZ)

	wasIdle := len(s.queue) == 0
	for z := br.Z2; z >= br.Z1; z-- {
		for x := br.X2; x >= br.X1; x-- {
			idx := s.grid.BlockIndex(Square{X: x, Z: z})
			if s.obsolete[idx] {
				continue
			}
			s.obsolete[idx] = true
			s.queue = append(s.queue, idx)
		}
	}
	if wasIdle && len(s.queue) > 0 {
		s.wait = s.cfg.UpdateDelayTicks
	}
	queuedBlocks.WithLabelValues(s.cfg.Tier).Set(float64(len(s.queue)))
}

// Update recomputes a bounded number of obsolete blocks. The budget grows
// with the backlog and is throttled by a penalty left by previous ticks.
// A freshly dirtied queue waits UpdateDelayTicks first so nearby edits
// are coalesced.
func (s *State) Update(ctx context.Context) error {
	if len(s.queue) == 0 || !s.ready {
		return nil
	}
	if s.wait > 0 {
		s.wait--
		return nil
	}

	numClasses := len(s.classes.Classes)
	base := s.cfg.SquaresToUpdate/(s.cfg.BlockSize*s.cfg.BlockSize) + 1
	minBudget := max(base>>1, 4)
	maxBudget := max(base<<1, minBudget)
	progressive := int(float32(len(s.queue)*numClasses) * s.cfg.UpdateRate)

	budget := clampInt(progressive, minBudget, maxBudget)
	s.penalty = max(0, s.penalty-budget)
	if s.penalty > 0 {
		budget -= s.penalty
	}
	if progressive != 0 && budget > 0 {
		s.penalty += (budget + numClasses - 1) / numClasses * numClasses
	}

	drained := s.drain(budget)
	queuedBlocks.WithLabelValues(s.cfg.Tier).Set(float64(len(s.queue)))
	if len(drained) == 0 {
		return nil
	}

	if s.next != nil {
		for _, idx := range drained {
			s.next.MapChanged(s.grid.BlockRect(s.grid.BlockAt(idx)))
		}
	}

	start := time.Now()
	if err := s.recompute(ctx, drained, s.incidentEdges(drained)); err != nil {
		s.requeue(drained)
		return fmt.Errorf("updating %s tier: %w", s.cfg.Tier, err)
	}
	s.checksum = payloadChecksum(s.appendPayload(nil))
	precomputeDuration.WithLabelValues(s.cfg.Tier, "incremental").Observe(time.Since(start).Seconds())
	blockUpdatesTotal.WithLabelValues(s.cfg.Tier).Add(float64(len(drained)))

	slog.Debug("pathing blocks updated",
		"tier", s.cfg.Tier,
		"blocks", len(drained),
		"queued", len(s.queue),
		"penalty", s.penalty)
	return nil
}

// drain pops obsolete blocks until budget block-class units are used.
func (s *State) drain(budget int) []int {
	numClasses := len(s.classes.Classes)
	var drained []int
	for consumed := 0; len(s.queue) > 0 && consumed < budget; {
		idx := s.queue[0]
		s.queue = s.queue[1:]
		if !s.obsolete[idx] {
			continue
		}
		s.obsolete[idx] = false
		drained = append(drained, idx)
		consumed += numClasses
	}
	return drained
}

// requeue puts blocks from an interrupted batch back at the front of the
// queue so the next Update recomputes them.
func (s *State) requeue(blocks []int) {
	back := make([]int, 0, len(blocks)+len(s.queue))
	for _, idx := range blocks {
		if !s.obsolete[idx] {
			s.obsolete[idx] = true
			back = append(back, idx)
		}
	}
	s.queue = append(back, s.queue...)
	queuedBlocks.WithLabelValues(s.cfg.Tier).Set(float64(len(s.queue)))
}

// Close drops pending work.
func (s *State) Close() {
	s.queue = nil
	clear(s.obsolete)
	queuedBlocks.WithLabelValues(s.cfg.Tier).Set(0)
}
