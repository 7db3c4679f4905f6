package pathing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/pathgrid/internal/store"
	"github.com/udisondev/pathgrid/internal/testutil"
)

func newFileStore(t *testing.T) *store.FileStore {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestStateOpenMap(t *testing.T) {
	m := openMap(t, 32, 32)
	s := newTestState(t, m, classSet(t, m), 8, nil)

	for idx := range s.grid.NumBlocks() {
		b := s.grid.BlockAt(idx)
		assert.Equal(t, Square{X: b.X*8 + 3, Z: b.Z*8 + 3}, s.Offset(0, b))
	}

	b := Square{X: 1, Z: 1}
	assert.InDelta(t, 8, s.EdgeCost(0, b, DirRight), 1e-5)
	assert.InDelta(t, 8, s.EdgeCost(0, b, DirUp), 1e-5)
	assert.InDelta(t, 8*math.Sqrt2, s.EdgeCost(0, b, DirRightDown), 1e-4)
	assert.InDelta(t, 8*math.Sqrt2, s.EdgeCost(0, b, DirLeftUp), 1e-4)

	// Directions 4..7 read the neighbour's stored slot.
	assert.Equal(t, s.EdgeCost(0, Square{X: 0, Z: 1}, DirRight), s.EdgeCost(0, b, DirLeft))
	assert.Equal(t, s.EdgeCost(0, Square{X: 2, Z: 0}, DirLeftDown), s.EdgeCost(0, b, DirRightUp))

	assert.Equal(t, PathCostInfinity, s.EdgeCost(0, Square{X: 0, Z: 0}, DirLeft))
	assert.Equal(t, PathCostInfinity, s.EdgeCost(0, Square{X: 3, Z: 3}, DirRight))
	assert.Equal(t, PathCostInfinity, s.EdgeCost(0, Square{X: 3, Z: 3}, DirDown))
	assert.NotZero(t, s.PathChecksum())
}

func TestStateOffsets(t *testing.T) {
	t.Run("blocked centre", func(t *testing.T) {
		m := openMap(t, 16, 16)
		m.SetBlocked(3, 3, 3, 3, true)
		s := newTestState(t, m, classSet(t, m), 8, nil)
		assert.Equal(t, Square{X: 4, Z: 3}, s.Offset(0, Square{}))
	})

	t.Run("slow centre", func(t *testing.T) {
		m := openMap(t, 16, 16)
		for z := 3; z <= 4; z++ {
			for x := 3; x <= 4; x++ {
				m.SetType(x, z, 1)
			}
		}
		s := newTestState(t, m, classSet(t, m), 8, nil)
		assert.Equal(t, Square{X: 3, Z: 2}, s.Offset(0, Square{}))
	})

	t.Run("fully blocked block", func(t *testing.T) {
		m := openMap(t, 16, 16)
		m.SetBlocked(0, 0, 7, 7, true)
		s := newTestState(t, m, classSet(t, m), 8, nil)

		b := Square{}
		assert.Equal(t, Square{X: 3, Z: 3}, s.Offset(0, b), "falls back to the centre")
		for d := range Direction(numDirections) {
			assert.Equal(t, PathCostInfinity, s.EdgeCost(0, b, d), "direction %d", d)
		}
		assert.Less(t, s.EdgeCost(0, Square{X: 1, Z: 0}, DirDown), PathCostInfinity)
	})
}

func TestStateRejectsBadSetup(t *testing.T) {
	m := openMap(t, 20, 16)
	cs := classSet(t, m)

	_, err := NewState(StateConfig{Tier: "med", BlockSize: 8}, m, cs, nil)
	require.ErrorIs(t, err, ErrBadGrid)

	m2 := openMap(t, 16, 16)
	_, err = NewState(StateConfig{Tier: "med", BlockSize: 8}, m2, ClassSet{}, nil)
	require.Error(t, err)

	swapped := ClassSet{Classes: []MoveClass{classSet(t, m2).Classes[0], classSet(t, m2).Classes[0]}}
	_, err = NewState(StateConfig{Tier: "med", BlockSize: 8}, m2, swapped, nil)
	require.Error(t, err, "path types must match class indices")
}

// wideTerrain reports a map size without backing it with data.
type wideTerrain struct{ x, z int }

func (w wideTerrain) Size() (int, int)        { return w.x, w.z }
func (wideTerrain) HeightAt(int, int) float32 { return 0 }
func (wideTerrain) HeightmapChecksum() uint32 { return 0 }
func (wideTerrain) TypemapChecksum() uint32   { return 0 }

func TestStateRejectsMapTooWideForCache(t *testing.T) {
	cs := classSet(t, openMap(t, 8, 8))

	tests := []struct {
		name string
		x, z int
	}{
		{name: "x too wide", x: 70000, z: 8},
		{name: "z too wide", x: 8, z: 65544},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewState(StateConfig{Tier: "med", BlockSize: 8, Workers: 1},
				wideTerrain{x: tt.x, z: tt.z}, cs, nil)
			require.ErrorIs(t, err, ErrBadGrid)
		})
	}
}

func TestPrecomputeIsDeterministic(t *testing.T) {
	m := parseMap(t,
		"................................",
		"....######......................",
		"....#..~~~~.....www.............",
		"....#..~~~~.....www......####...",
		"................www.........#...",
		"......................#######...",
		"................................",
		"..~~~~~~~~~~....................",
	)
	// The text map is 32x8; repeat it to fill 32x32.
	full := openMap(t, 32, 32)
	for z := range 32 {
		for x := range 32 {
			full.SetType(x, z, m.TypeAt(x, z%8))
			full.SetBlocked(x, z, x, z, m.IsStructureBlocked(x, z%8))
		}
	}
	cs := classSet(t, full)

	var states []*State
	for _, workers := range []int{1, 2, 7} {
		s, err := NewState(StateConfig{
			Tier: "med", MapName: "det", BlockSize: 8,
			EdgeNodeLimit: 16384, SquaresToUpdate: 1000, UpdateRate: 0.007,
			Workers: workers,
		}, full, cs, nil)
		require.NoError(t, err)
		require.NoError(t, s.Init(context.Background()))
		states = append(states, s)
	}
	for _, s := range states[1:] {
		assert.Equal(t, states[0].offsets, s.offsets)
		assert.Equal(t, states[0].costs, s.costs)
		assert.Equal(t, states[0].PathChecksum(), s.PathChecksum())
	}
}

func TestCacheBlobRoundTrip(t *testing.T) {
	m := openMap(t, 32, 32)
	m.SetBlocked(10, 0, 10, 20, true)
	cs := classSet(t, m)
	src := newTestState(t, m, cs, 8, nil)

	blob, err := src.encode()
	require.NoError(t, err)

	dst, err := NewState(src.cfg, m, cs, nil)
	require.NoError(t, err)
	dst.cacheKey = src.cacheKey
	require.NoError(t, dst.decode(blob))
	assert.Equal(t, src.offsets, dst.offsets)
	assert.Equal(t, src.costs, dst.costs)
}

func TestCacheBlobRejected(t *testing.T) {
	m := openMap(t, 16, 16)
	cs := classSet(t, m)

	tests := []struct {
		name   string
		mutate func(s *State)
		blob   func(good []byte) []byte
	}{
		{name: "not compressed", blob: func([]byte) []byte { return []byte("garbage") }},
		{name: "truncated", blob: func(good []byte) []byte { return good[:len(good)/2] }},
		{name: "wrong key", mutate: func(s *State) { s.cacheKey++ }},
		{name: "offset outside block", mutate: func(s *State) { s.offsets[0][0] = Square{X: 12, Z: 12} }},
		{name: "negative cost", mutate: func(s *State) { s.costs[1] = -1 }},
		{name: "nan cost", mutate: func(s *State) { s.costs[2] = float32(math.NaN()) }},
		{name: "cost above infinity", mutate: func(s *State) { s.costs[3] = PathCostInfinity * 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestState(t, m, cs, 8, nil)
			dst := newTestState(t, m, cs, 8, nil)
			before := dst.appendPayload(nil)

			if tt.mutate != nil {
				tt.mutate(src)
			}
			blob, err := src.encode()
			require.NoError(t, err)
			if tt.blob != nil {
				blob = tt.blob(blob)
			}

			require.ErrorIs(t, dst.decode(blob), ErrBadCache)
			assert.Equal(t, before, dst.appendPayload(nil), "tables untouched")
		})
	}
}

func TestStateInitUsesStore(t *testing.T) {
	ctx := context.Background()
	m := openMap(t, 32, 32)
	m.SetBlocked(5, 5, 20, 6, true)
	cs := classSet(t, m)
	st := testutil.NewMemStore()

	first := newTestState(t, m, cs, 8, st)
	assert.Equal(t, 1, st.Saves())
	_, err := st.Load(ctx, first.CacheName())
	require.NoError(t, err)

	second := newTestState(t, m, cs, 8, st)
	assert.Equal(t, 1, st.Saves(), "loaded, not recomputed")
	assert.Equal(t, first.offsets, second.offsets)
	assert.Equal(t, first.costs, second.costs)
	assert.Equal(t, first.PathChecksum(), second.PathChecksum())

	// A terrain change yields a different blob name.
	m.SetType(30, 30, 1)
	third := newTestState(t, m, cs, 8, st)
	assert.Equal(t, 2, st.Saves())
	assert.Len(t, st.Names(), 2)
	assert.NotEqual(t, first.CacheName(), third.CacheName())

	require.NoError(t, third.RemoveCache(ctx))
	_, err = st.Load(ctx, third.CacheName())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStateInitReplacesCorruptBlob(t *testing.T) {
	ctx := context.Background()
	m := openMap(t, 32, 32)
	cs := classSet(t, m)
	st := testutil.NewMemStore()
	want := newTestState(t, m, cs, 8, nil)

	s, err := NewState(want.cfg, m, cs, st)
	require.NoError(t, err)
	s.cacheKey = s.computeCacheKey()
	st.Put(s.CacheName(), []byte("definitely not zstd"))

	require.NoError(t, s.Init(ctx))
	assert.Equal(t, want.offsets, s.offsets)
	assert.Equal(t, want.costs, s.costs)
	assert.Equal(t, 1, st.Saves())

	blob, err := st.Load(ctx, s.CacheName())
	require.NoError(t, err)
	require.NoError(t, s.decode(blob), "corrupt blob was replaced")
}

func TestMapChangedQueue(t *testing.T) {
	m := openMap(t, 48, 48)
	s := newTestState(t, m, classSet(t, m), 8, nil)

	// One square grows to the 3x3 blocks around it.
	s.MapChanged(Rect{X1: 20, Z1: 20, X2: 20, Z2: 20})
	assert.Equal(t, 9, s.QueuedUpdates())

	// Already queued blocks are skipped; reversed corners are normalized.
	s.MapChanged(Rect{X1: 23, Z1: 23, X2: 16, Z2: 16})
	assert.Equal(t, 9, s.QueuedUpdates())

	// Edges of the map clamp.
	s.MapChanged(Rect{X1: 0, Z1: 0, X2: 0, Z2: 0})
	assert.Equal(t, 12, s.QueuedUpdates())

	// Changes entirely off the map touch nothing.
	s.MapChanged(Rect{X1: 40, Z1: -9, X2: 47, Z2: -2})
	s.MapChanged(Rect{X1: 48, Z1: 40, X2: 60, Z2: 47})
	assert.Equal(t, 12, s.QueuedUpdates())

	s.Close()
	assert.Zero(t, s.QueuedUpdates())
}

func TestStateUpdateBudget(t *testing.T) {
	ctx := context.Background()
	m := openMap(t, 48, 48)
	s := newTestState(t, m, classSet(t, m), 8, nil)

	s.MapChanged(Rect{X1: 0, Z1: 0, X2: 47, Z2: 47})
	require.Equal(t, 36, s.QueuedUpdates())

	// Two ticks of delay, then SquaresToUpdate/64+1 = 16 halved to 8 blocks.
	require.NoError(t, s.Update(ctx))
	require.NoError(t, s.Update(ctx))
	assert.Equal(t, 36, s.QueuedUpdates())
	require.NoError(t, s.Update(ctx))
	assert.Equal(t, 28, s.QueuedUpdates())
}

func TestIncrementalUpdateConverges(t *testing.T) {
	ctx := context.Background()
	m := openMap(t, 48, 48)
	cs := classSet(t, m)
	s := newTestState(t, m, cs, 8, nil)
	before := s.PathChecksum()

	m.SetBlocked(16, 16, 23, 23, true)
	m.SetBlocked(30, 2, 31, 40, true)
	for x := 2; x < 12; x++ {
		m.SetType(x, 44, 1)
	}
	s.MapChanged(Rect{X1: 16, Z1: 16, X2: 23, Z2: 23})
	s.MapChanged(Rect{X1: 30, Z1: 2, X2: 31, Z2: 40})
	s.MapChanged(Rect{X1: 2, Z1: 44, X2: 11, Z2: 44})

	for i := 0; s.QueuedUpdates() > 0 && i < 100; i++ {
		require.NoError(t, s.Update(ctx))
	}
	require.Zero(t, s.QueuedUpdates())

	fresh := newTestState(t, m, cs, 8, nil)
	assert.Equal(t, fresh.offsets, s.offsets)
	assert.Equal(t, fresh.costs, s.costs)
	assert.Equal(t, fresh.PathChecksum(), s.PathChecksum())
	assert.NotEqual(t, before, s.PathChecksum())

	blocked := Square{X: 2, Z: 2}
	for d := range Direction(numDirections) {
		assert.Equal(t, PathCostInfinity, s.EdgeCost(0, blocked, d), "direction %d", d)
	}
}

func TestInterruptedUpdateKeepsBlocksQueued(t *testing.T) {
	m := openMap(t, 48, 48)
	cs := classSet(t, m)
	s := newTestState(t, m, cs, 8, nil)

	m.SetBlocked(16, 16, 23, 23, true)
	s.MapChanged(Rect{X1: 16, Z1: 16, X2: 23, Z2: 23})
	queued := s.QueuedUpdates()
	require.Equal(t, 9, queued)

	bg := context.Background()
	require.NoError(t, s.Update(bg))
	require.NoError(t, s.Update(bg))

	ctx, cancel := context.WithCancel(bg)
	cancel()
	require.ErrorIs(t, s.Update(ctx), context.Canceled)
	assert.Equal(t, queued, s.QueuedUpdates())

	for i := 0; s.QueuedUpdates() > 0 && i < 100; i++ {
		require.NoError(t, s.Update(bg))
	}
	require.Zero(t, s.QueuedUpdates())

	fresh := newTestState(t, m, cs, 8, nil)
	assert.Equal(t, fresh.offsets, s.offsets)
	assert.Equal(t, fresh.costs, s.costs)
	assert.Equal(t, fresh.PathChecksum(), s.PathChecksum())
}

func TestIncidentEdges(t *testing.T) {
	m := openMap(t, 24, 24)
	s := newTestState(t, m, classSet(t, m), 8, nil)

	mid := s.grid.BlockIndex(Square{X: 1, Z: 1})
	edges := s.incidentEdges([]int{mid, mid})
	assert.Len(t, edges, numDirections)
	for i := 1; i < len(edges); i++ {
		prev, cur := edges[i-1], edges[i]
		assert.True(t, prev.block < cur.block || (prev.block == cur.block && prev.dir < cur.dir), "sorted and unique")
	}

	corner := s.grid.BlockIndex(Square{X: 0, Z: 0})
	// Forward slots always exist; a corner block has no neighbours behind it.
	assert.Len(t, s.incidentEdges([]int{corner}), numStoredDirections)
}

func TestStateInitSurvivesStoreFailures(t *testing.T) {
	m := openMap(t, 32, 32)
	cs := classSet(t, m)
	want := newTestState(t, m, cs, 8, nil)

	st := testutil.NewMemStore()
	st.FailLoad = true
	st.FailSave = true

	s := newTestState(t, m, cs, 8, st)
	assert.Equal(t, want.costs, s.costs)
	assert.Zero(t, st.Saves())
	assert.Empty(t, st.Names())
}
