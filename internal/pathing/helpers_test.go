package pathing

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/pathgrid/internal/config"
	"github.com/udisondev/pathgrid/internal/movedef"
	"github.com/udisondev/pathgrid/internal/store"
	"github.com/udisondev/pathgrid/internal/terrain"
)

// botDef moves at full speed on ground, half speed on rough ground and
// cannot enter water.
var botDef = movedef.Def{
	Name:         "bot",
	Footprint:    1,
	SpeedByType:  []float32{1, 0.5, 0},
	HeatMod:      0.5,
	HeatProduced: 20,
}

func openMap(t testing.TB, w, h int) *terrain.Map {
	t.Helper()
	m, err := terrain.New("test", w, h)
	require.NoError(t, err)
	return m
}

func parseMap(t testing.TB, rows ...string) *terrain.Map {
	t.Helper()
	m, err := terrain.Parse("test", strings.Join(rows, "\n"))
	require.NoError(t, err)
	return m
}

func classSet(t testing.TB, m *terrain.Map, defs ...movedef.Def) ClassSet {
	t.Helper()
	if len(defs) == 0 {
		defs = []movedef.Def{botDef}
	}
	set, err := movedef.NewSet(m, defs)
	require.NoError(t, err)

	cs := ClassSet{Checksum: set.Checksum()}
	for _, c := range set.Classes() {
		cs.Classes = append(cs.Classes, c)
	}
	return cs
}

// testConfig sizes the tiers for a 48x48 map: 6x6 medium blocks, 3x3 low
// blocks, and distances small enough that far requests use the low tier.
func testConfig() config.Pathing {
	cfg := config.DefaultPathing()
	cfg.MedResBlockSize = 8
	cfg.LowResBlockSize = 16
	cfg.MaxResSearchDistance = 10
	cfg.MedResSearchDistance = 20
	cfg.UpdateDelayTicks = 2
	cfg.Workers = 2
	cfg.CacheStore = "none"
	return cfg
}

func newTestState(t testing.TB, m *terrain.Map, cs ClassSet, bs int, st store.BlobStore) *State {
	t.Helper()
	s, err := NewState(StateConfig{
		Tier:             "med",
		MapName:          m.Name(),
		BlockSize:        bs,
		EdgeNodeLimit:    16384,
		SquaresToUpdate:  1000,
		UpdateRate:       0.007,
		UpdateDelayTicks: 2,
		Workers:          2,
	}, m, cs, st)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	return s
}

func newTestManager(t testing.TB, m *terrain.Map, cs ClassSet) *Manager {
	t.Helper()
	mgr, err := NewManager(testConfig(), m.Name(), m, cs, nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Init(context.Background()))
	t.Cleanup(mgr.Close)
	return mgr
}

// center returns the world position of the middle of square (x, z).
func center(x, z int) Vec3 {
	return SquareCenter(Square{X: x, Z: z}, 0)
}

// followPath consumes waypoints like an agent that teleports to each one,
// returning every waypoint handed out.
func followPath(t testing.TB, mgr *Manager, id uint32, start Vec3) []Vec3 {
	t.Helper()
	pos := start
	var out []Vec3
	for range 500 {
		wp := mgr.NextWaypoint(id, pos, 4)
		if wp == NoPathPoint {
			return out
		}
		out = append(out, wp)
		pos = wp
	}
	t.Fatalf("path %d did not finish", id)
	return nil
}

// walkPath moves an agent at most step world units per tick toward the
// current waypoint, asking for a new one every tick. It fails the test if
// the path does not finish within maxTicks and returns the final position.
func walkPath(t testing.TB, mgr *Manager, id uint32, start Vec3, step float32, maxTicks int) Vec3 {
	t.Helper()
	pos := start
	for range maxTicks {
		wp := mgr.NextWaypoint(id, pos, step)
		if wp == NoPathPoint {
			return pos
		}
		pos = stepToward(pos, wp, step)
	}
	t.Fatalf("path %d did not finish within %d ticks, agent at %v", id, maxTicks, pos)
	return pos
}

func stepToward(pos, target Vec3, step float32) Vec3 {
	d := float32(math.Sqrt(float64(pos.DistSq2D(target))))
	if d <= step {
		return target
	}
	k := step / d
	return Vec3{
		X: pos.X + (target.X-pos.X)*k,
		Y: target.Y,
		Z: pos.Z + (target.Z-pos.Z)*k,
	}
}

// pathCost sums the step costs along squares, the way the searcher does.
func pathCost(c MoveClass, squares []Square) float32 {
	var g float32
	for i := 1; i < len(squares); i++ {
		d, ok := directionBetween(squares[i-1], squares[i])
		if !ok {
			return -1
		}
		to := squares[i]
		g = float32(g + float32(d.Cost()/c.SpeedMod(to.X, to.Z)))
	}
	return g
}
