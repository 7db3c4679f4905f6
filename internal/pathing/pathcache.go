package pathing

import (
	"log/slog"
	"sync"
)

// radiusSlots is the multiplier reserved for the integral part of the
// goal radius in the cache hash.
const radiusSlots = 1 << 16

// CacheItem is a remembered block-tier search.
type CacheItem struct {
	Path       Path
	Result     SearchResult
	StartBlock Square
	GoalBlock  Square
	GoalRadius float32
	ClassID    int
}

type cacheEntry struct {
	item   CacheItem
	expiry int
}

type cacheSlot struct {
	hash   uint64
	expiry int
}

// CacheStats counts cache traffic.
type CacheStats struct {
	Hits       uint64
	Misses     uint64
	Collisions uint64
}

// PathCache maps (start block, goal block, radius, class) to a recent
// result. Entries live for a fixed number of ticks and are evicted in
// insertion order.
type PathCache struct {
	mu sync.Mutex

	name       string
	blocksX    int
	blocksZ    int
	maxClasses int
	lifetime   int
	capacity   int

	now   int
	items map[uint64]cacheEntry
	fifo  []cacheSlot
	stats CacheStats
}

// NewPathCache creates a cache for a tier of blocksX x blocksZ blocks.
func NewPathCache(name string, blocksX, blocksZ, maxClasses, lifetime, capacity int) *PathCache {
	return &PathCache{
		name:       name,
		blocksX:    blocksX,
		blocksZ:    blocksZ,
		maxClasses: max(maxClasses, 1),
		lifetime:   lifetime,
		capacity:   max(capacity, 1),
		items:      make(map[uint64]cacheEntry, capacity),
	}
}

func (pc *PathCache) hash(start, goal Square, radius float32, classID int) uint64 {
	n := uint64(pc.blocksX * pc.blocksZ)
	startIdx := uint64(start.Z*pc.blocksX + start.X)
	goalIdx := uint64(goal.Z*pc.blocksX + goal.X)
	h := startIdx*n + goalIdx
	h = h*uint64(pc.maxClasses) + uint64(classID)
	return h*radiusSlots + uint64(radius)%radiusSlots
}

// Get returns a live entry matching every key field.
func (pc *PathCache) Get(start, goal Square, radius float32, classID int) (CacheItem, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	e, ok := pc.items[pc.hash(start, goal, radius, classID)]
	if !ok || e.expiry <= pc.now {
		pc.stats.Misses++
		return CacheItem{}, false
	}
	it := e.item
	if it.StartBlock != start || it.GoalBlock != goal || it.GoalRadius != radius || it.ClassID != classID {
		pc.stats.Collisions++
		pc.stats.Misses++
		slog.Warn("path cache hash collision",
			"cache", pc.name,
			"start", start, "goal", goal, "radius", radius, "class", classID,
			"cached_start", it.StartBlock, "cached_goal", it.GoalBlock,
			"cached_radius", it.GoalRadius, "cached_class", it.ClassID)
		return CacheItem{}, false
	}
	pc.stats.Hits++
	it.Path = it.Path.clone()
	return it, true
}

// Put stores item, replacing whatever shares its hash.
func (pc *PathCache) Put(item CacheItem) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for len(pc.items) >= pc.capacity && len(pc.fifo) > 0 {
		pc.evictFront()
	}
	h := pc.hash(item.StartBlock, item.GoalBlock, item.GoalRadius, item.ClassID)
	expiry := pc.now + pc.lifetime
	item.Path = item.Path.clone()
	pc.items[h] = cacheEntry{item: item, expiry: expiry}
	pc.fifo = append(pc.fifo, cacheSlot{hash: h, expiry: expiry})
}

// Update moves the cache clock to tick and drops expired entries.
func (pc *PathCache) Update(tick int) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.now = tick
	for len(pc.fifo) > 0 && pc.fifo[0].expiry <= pc.now {
		pc.evictFront()
	}
}

// evictFront drops the oldest slot. A slot whose entry was overwritten by a
// later Put no longer owns the map entry and is discarded silently.
func (pc *PathCache) evictFront() {
	slot := pc.fifo[0]
	pc.fifo = pc.fifo[1:]
	if e, ok := pc.items[slot.hash]; ok && e.expiry == slot.expiry {
		delete(pc.items, slot.hash)
	}
}

// Len returns the number of cached entries, expired ones included until swept.
func (pc *PathCache) Len() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.items)
}

// Stats returns a snapshot of the counters.
func (pc *PathCache) Stats() CacheStats {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.stats
}
