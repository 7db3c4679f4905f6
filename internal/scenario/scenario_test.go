package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/pathgrid/internal/config"
	"github.com/udisondev/pathgrid/internal/movedef"
	"github.com/udisondev/pathgrid/internal/pathing"
	"github.com/udisondev/pathgrid/internal/terrain"
	"github.com/udisondev/pathgrid/internal/testutil"
)

const wallScenario = `
name = "wall"
movedefs = "movedefs.lua"
ticks = 200

[map]
rows = """%s"""

[[rough]]
x1 = 0
z1 = 14
x2 = 3
z2 = 15

[[changes]]
tick = 5
blocked = true
area = { x1 = 0, z1 = 15, x2 = 0, z2 = 15 }

[[agents]]
class = "bot"
start = [1, 1]
goal = [14, 14]
radius = 8
synced = true

[[agents]]
class = "tank"
start = [2, 1]
goal = [14, 5]
radius = 8
speed = 4
`

// writeScenario puts the scenario and its movedefs into one directory.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movedefs.lua"), []byte(testutil.Fixtures.MoveDefs), 0o644))
	p := filepath.Join(dir, "scenario.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad(t *testing.T) {
	p := writeScenario(t, fmt.Sprintf(wallScenario, testutil.Fixtures.WallMap))

	sc, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "wall", sc.Name)
	assert.Equal(t, 200, sc.Ticks)
	assert.Equal(t, filepath.Join(filepath.Dir(p), "movedefs.lua"), sc.MoveDefsPath())
	require.Len(t, sc.Agents, 2)
	assert.Equal(t, Agent{Class: "bot", Start: [2]int{1, 1}, Goal: [2]int{14, 14}, Radius: 8, Synced: true}, sc.Agents[0])
	assert.InDelta(t, 4, sc.Agents[1].Speed, 0)

	require.Len(t, sc.Changes, 1)
	assert.Equal(t, Area{X1: 0, Z1: 15, X2: 0, Z2: 15}, sc.Changes[0].Area)
	assert.True(t, sc.Changes[0].Blocked)
	assert.Len(t, sc.ChangesAt(5), 1)
	assert.Empty(t, sc.ChangesAt(4))

	m, err := sc.BuildMap()
	require.NoError(t, err)
	w, h := m.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 16, h)
	assert.True(t, m.IsStructureBlocked(0, 8))
	assert.False(t, m.IsStructureBlocked(12, 8), "gap")
	assert.Equal(t, terrain.TypeRough, m.TypeAt(3, 15))
	assert.Equal(t, terrain.TypeWater, m.TypeAt(5, 11))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "bad toml",
			body: `name = `,
			want: "parsing scenario",
		},
		{
			name: "unknown key",
			body: `name = "x"
ticks = 1
colour = "red"
[map]
width = 8
height = 8
[[agents]]
class = "bot"`,
			want: "unknown keys colour",
		},
		{
			name: "missing everything",
			body: `movedefs = "x.lua"`,
			want: "name is required",
		},
		{
			name: "no map",
			body: `name = "x"
ticks = 1
[[agents]]
class = "bot"`,
			want: "map needs rows",
		},
		{
			name: "change after the end",
			body: `name = "x"
ticks = 3
[map]
width = 8
height = 8
[[agents]]
class = "bot"
[[changes]]
tick = 3`,
			want: "change 0: tick 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckClasses(t *testing.T) {
	m, err := terrain.New("x", 8, 8)
	require.NoError(t, err)
	defs, err := movedef.ParseLua(testutil.Fixtures.MoveDefs)
	require.NoError(t, err)
	set, err := movedef.NewSet(m, defs)
	require.NoError(t, err)

	sc := &Scenario{Agents: []Agent{{Class: "bot"}, {Class: "hover"}, {Class: "hover"}}}
	err = sc.CheckClasses(set)
	require.Error(t, err)
	assert.Equal(t, "unknown movement classes: hover", err.Error())

	sc.Agents = sc.Agents[:1]
	assert.NoError(t, sc.CheckClasses(set))
}

func TestRun(t *testing.T) {
	sc, err := Load(writeScenario(t, fmt.Sprintf(wallScenario, testutil.Fixtures.WallMap)))
	require.NoError(t, err)
	m, err := sc.BuildMap()
	require.NoError(t, err)
	defs, err := movedef.LoadLua(sc.MoveDefsPath())
	require.NoError(t, err)
	set, err := movedef.NewSet(m, defs)
	require.NoError(t, err)

	cfg := config.DefaultPathing()
	cfg.MedResBlockSize = 8
	cfg.LowResBlockSize = 16
	cfg.MaxResSearchDistance = 10
	cfg.MedResSearchDistance = 20
	cfg.Workers = 2
	cfg.CacheStore = "none"

	mgr, err := pathing.NewManager(cfg, m.Name(), m, ClassSet(set), nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Init(context.Background()))
	t.Cleanup(mgr.Close)

	rep, err := Run(context.Background(), mgr, sc, m, set)
	require.NoError(t, err)
	require.Len(t, rep.Agents, 2)

	bot := rep.Agents[0]
	assert.NotZero(t, bot.PathID)
	assert.Equal(t, pathing.Ok, bot.Result)
	assert.True(t, bot.Reached, "bot squeezes through the gap, ended at %+v", bot.Final)
	assert.Positive(t, bot.Steps)

	// The tank never needs to cross the wall.
	tank := rep.Agents[1]
	assert.Equal(t, pathing.Ok, tank.Result)
	assert.True(t, tank.Reached, "tank ended at %+v", tank.Final)
	assert.Less(t, tank.Final.Z, float32(8*pathing.SquareSize))

	assert.True(t, m.IsStructureBlocked(0, 15), "scheduled change applied")
	assert.Equal(t, mgr.PathChecksum(), rep.Checksum)
	assert.Positive(t, rep.Stats.Searches[pathing.TierFine].Searches)
}

func TestRunCancelled(t *testing.T) {
	sc, err := Load(writeScenario(t, fmt.Sprintf(wallScenario, testutil.Fixtures.WallMap)))
	require.NoError(t, err)
	m, err := sc.BuildMap()
	require.NoError(t, err)
	defs, err := movedef.ParseLua(testutil.Fixtures.MoveDefs)
	require.NoError(t, err)
	set, err := movedef.NewSet(m, defs)
	require.NoError(t, err)

	cfg := config.DefaultPathing()
	cfg.MedResBlockSize = 8
	cfg.LowResBlockSize = 16
	cfg.CacheStore = "none"
	mgr, err := pathing.NewManager(cfg, m.Name(), m, ClassSet(set), nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Init(context.Background()))
	t.Cleanup(mgr.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, mgr, sc, m, set)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStepToward(t *testing.T) {
	from := pathing.Vec3{X: 0, Z: 0}
	to := pathing.Vec3{X: 30, Y: 2, Z: 40}

	got := stepToward(from, to, 10)
	assert.InDelta(t, 6, got.X, 1e-4)
	assert.InDelta(t, 8, got.Z, 1e-4)

	assert.Equal(t, to, stepToward(from, to, 50))
}
