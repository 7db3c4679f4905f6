package pathing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheItem(sx, sz, gx, gz int, radius float32, class int) CacheItem {
	start := Square{X: sx, Z: sz}
	return CacheItem{
		Path: Path{
			Squares: []Square{start, {X: gx, Z: gz}},
			Points:  []Vec3{center(sx, sz), center(gx, gz)},
			Cost:    3,
		},
		Result:     Ok,
		StartBlock: start,
		GoalBlock:  Square{X: gx, Z: gz},
		GoalRadius: radius,
		ClassID:    class,
	}
}

func TestPathCacheGetPut(t *testing.T) {
	pc := NewPathCache("test", 6, 6, 2, 10, 100)

	_, ok := pc.Get(Square{X: 1, Z: 1}, Square{X: 4, Z: 4}, 2, 0)
	assert.False(t, ok)

	item := cacheItem(1, 1, 4, 4, 2, 0)
	pc.Put(item)

	got, ok := pc.Get(Square{X: 1, Z: 1}, Square{X: 4, Z: 4}, 2, 0)
	require.True(t, ok)
	assert.Equal(t, item, got)

	// Every key field matters.
	for _, q := range []struct {
		start, goal Square
		radius      float32
		class       int
	}{
		{Square{X: 1, Z: 2}, Square{X: 4, Z: 4}, 2, 0},
		{Square{X: 1, Z: 1}, Square{X: 4, Z: 5}, 2, 0},
		{Square{X: 1, Z: 1}, Square{X: 4, Z: 4}, 3, 0},
		{Square{X: 1, Z: 1}, Square{X: 4, Z: 4}, 2, 1},
	} {
		_, ok := pc.Get(q.start, q.goal, q.radius, q.class)
		assert.False(t, ok, "%+v", q)
	}

	st := pc.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(5), st.Misses)
	assert.Zero(t, st.Collisions)
}

func TestPathCacheReturnsCopies(t *testing.T) {
	pc := NewPathCache("test", 6, 6, 1, 10, 100)
	item := cacheItem(0, 0, 2, 2, 1, 0)
	pc.Put(item)
	item.Path.Squares[0] = Square{X: 5, Z: 5}

	got, ok := pc.Get(Square{}, Square{X: 2, Z: 2}, 1, 0)
	require.True(t, ok)
	assert.Equal(t, Square{}, got.Path.Squares[0])
	got.Path.Points[0] = Vec3{X: 99}

	again, ok := pc.Get(Square{}, Square{X: 2, Z: 2}, 1, 0)
	require.True(t, ok)
	assert.Equal(t, center(0, 0), again.Path.Points[0])
}

func TestPathCacheExpiry(t *testing.T) {
	pc := NewPathCache("test", 6, 6, 1, 5, 100)
	pc.Put(cacheItem(0, 0, 3, 3, 1, 0))

	pc.Update(4)
	_, ok := pc.Get(Square{}, Square{X: 3, Z: 3}, 1, 0)
	assert.True(t, ok)

	pc.Update(5)
	_, ok = pc.Get(Square{}, Square{X: 3, Z: 3}, 1, 0)
	assert.False(t, ok)
	assert.Zero(t, pc.Len())
}

func TestPathCacheCapacity(t *testing.T) {
	pc := NewPathCache("test", 6, 6, 1, 100, 2)
	pc.Put(cacheItem(0, 0, 1, 1, 1, 0))
	pc.Put(cacheItem(0, 0, 2, 2, 1, 0))
	pc.Put(cacheItem(0, 0, 3, 3, 1, 0))

	assert.Equal(t, 2, pc.Len())
	_, ok := pc.Get(Square{}, Square{X: 1, Z: 1}, 1, 0)
	assert.False(t, ok, "oldest entry evicted")
	_, ok = pc.Get(Square{}, Square{X: 3, Z: 3}, 1, 0)
	assert.True(t, ok)
}

func TestPathCacheOverwrite(t *testing.T) {
	pc := NewPathCache("test", 6, 6, 1, 5, 100)
	pc.Put(cacheItem(0, 0, 3, 3, 1, 0))
	pc.Update(3)

	fresh := cacheItem(0, 0, 3, 3, 1, 0)
	fresh.Result = GoalOutOfRange
	pc.Put(fresh)

	// The first slot expires at 5 but no longer owns the entry.
	pc.Update(6)
	got, ok := pc.Get(Square{}, Square{X: 3, Z: 3}, 1, 0)
	require.True(t, ok)
	assert.Equal(t, GoalOutOfRange, got.Result)
	assert.Equal(t, 1, pc.Len())
}

func TestPathCacheCollision(t *testing.T) {
	pc := NewPathCache("test", 6, 6, 1, 10, 100)

	// Radii that differ by the slot count share a hash.
	pc.Put(cacheItem(0, 0, 3, 3, 1, 0))
	_, ok := pc.Get(Square{}, Square{X: 3, Z: 3}, 1+radiusSlots, 0)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), pc.Stats().Collisions)
}
