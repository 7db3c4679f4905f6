package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/udisondev/pathgrid/internal/movedef"
	"github.com/udisondev/pathgrid/internal/pathing"
	"github.com/udisondev/pathgrid/internal/terrain"
)

// AgentReport is the outcome for one agent.
type AgentReport struct {
	Class   string
	PathID  uint32
	Result  pathing.SearchResult
	Steps   int
	Reached bool
	Final   pathing.Vec3
}

// Report summarizes a run.
type Report struct {
	Ticks    int
	Agents   []AgentReport
	Checksum uint32
	Stats    pathing.Stats
}

// ClassSet adapts a movedef set to the engine's view of movement classes.
func ClassSet(set *movedef.Set) pathing.ClassSet {
	cs := pathing.ClassSet{Checksum: set.Checksum()}
	for _, c := range set.Classes() {
		cs.Classes = append(cs.Classes, c)
	}
	return cs
}

type agent struct {
	report *AgentReport
	pos    pathing.Vec3
	goal   pathing.Vec3
	radius float32
	speed  float32
	done   bool
}

// Run requests a path per agent, then steps every agent along its
// waypoints once per tick until all are done or the tick limit is hit.
// Terrain changes are applied to m and reported to mgr at their tick.
func Run(ctx context.Context, mgr *pathing.Manager, sc *Scenario, m *terrain.Map, set *movedef.Set) (Report, error) {
	rep := Report{Agents: make([]AgentReport, len(sc.Agents))}
	agents := make([]agent, len(sc.Agents))

	for i, a := range sc.Agents {
		class, ok := set.ByName(a.Class)
		if !ok {
			return rep, fmt.Errorf("agent %d: unknown movement class %q", i, a.Class)
		}
		start := squareCenter(m, a.Start)
		goal := squareCenter(m, a.Goal)
		speed := a.Speed
		if speed == 0 {
			speed = pathing.SquareSize
		}

		id, res := mgr.RequestPath(class.PathType(), start, goal, a.Radius, a.Synced)
		rep.Agents[i] = AgentReport{Class: a.Class, PathID: id, Result: res, Final: start}
		agents[i] = agent{
			report: &rep.Agents[i],
			pos:    start,
			goal:   goal,
			radius: a.Radius,
			speed:  speed,
			done:   id == 0,
		}
		slog.Info("path requested",
			"agent", i,
			"class", a.Class,
			"path", id,
			"result", res)
	}

	for tick := range sc.Ticks {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		for _, c := range sc.ChangesAt(tick) {
			m.SetBlocked(c.Area.X1, c.Area.Z1, c.Area.X2, c.Area.Z2, c.Blocked)
			mgr.TerrainChanged(c.Area.X1, c.Area.Z1, c.Area.X2, c.Area.Z2)
			slog.Debug("terrain changed", "tick", tick, "area", c.Area, "blocked", c.Blocked)
		}

		active := 0
		for i := range agents {
			ag := &agents[i]
			if ag.done {
				continue
			}
			wp := mgr.NextWaypoint(ag.report.PathID, ag.pos, ag.speed)
			if wp == pathing.NoPathPoint {
				ag.done = true
				mgr.DeletePath(ag.report.PathID)
				continue
			}
			active++
			ag.pos = stepToward(ag.pos, wp, ag.speed)
			ag.report.Steps++
			mgr.UpdatePath(ag.report.PathID)
		}

		if err := mgr.Update(ctx); err != nil {
			return rep, fmt.Errorf("updating pathing at tick %d: %w", tick, err)
		}
		rep.Ticks = tick + 1
		if active == 0 {
			break
		}
	}

	for i := range agents {
		ag := &agents[i]
		reach := ag.radius + pathing.SquareSize
		ag.report.Final = ag.pos
		ag.report.Reached = ag.pos.DistSq2D(ag.goal) <= reach*reach
	}
	rep.Checksum = mgr.PathChecksum()
	rep.Stats = mgr.Stats()
	return rep, nil
}

func squareCenter(m *terrain.Map, sq [2]int) pathing.Vec3 {
	return pathing.SquareCenter(pathing.Square{X: sq[0], Z: sq[1]}, m.HeightAt(sq[0], sq[1]))
}

// stepToward moves from pos up to step world units toward target.
func stepToward(pos, target pathing.Vec3, step float32) pathing.Vec3 {
	d := float32(math.Sqrt(float64(pos.DistSq2D(target))))
	if d <= step {
		return target
	}
	k := step / d
	return pathing.Vec3{
		X: pos.X + (target.X-pos.X)*k,
		Y: target.Y,
		Z: pos.Z + (target.Z-pos.Z)*k,
	}
}
