// Package planner drives the D*-Lite incremental search in planner/dstarlite against
// the shared grid store's published planning grid, reconstructing and smoothing a
// path to the active goal and republishing it whenever the search result changes.
package planner

import (
	"bytes"
	"context"
	"math"
	"time"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/navstack/gridstore"
	"go.viam.com/navstack/internal/geometry"
	"go.viam.com/navstack/internal/navcontext"
	"go.viam.com/navstack/logging"
	"go.viam.com/navstack/planner/dstarlite"
)

const (
	waitTimeout = 200 * time.Millisecond
	keyEpsilon  = 1e-9
)

// Planner owns one D*-Lite search and republishes its result through a Context's
// Store whenever the planning grid or goal changes. A start-cell move alone updates
// the search but does not republish.
type Planner struct {
	ctx    *navcontext.Context
	log    logging.Logger
	engine *dstarlite.Engine

	version   uint64
	lastOcc   []byte
	haveGoal  bool
	goal      geometry.Cell
	publishes int
}

// New constructs a Planner driven by ctx.
func New(ctx *navcontext.Context) *Planner {
	return &Planner{
		ctx:    ctx,
		log:    ctx.Log.Sublogger("planner"),
		engine: dstarlite.NewEngine(),
	}
}

// Run blocks, driving the incremental planning loop until runCtx is cancelled.
func (p *Planner) Run(runCtx context.Context) {
	for runCtx.Err() == nil {
		p.version = p.ctx.Store.WaitForChange(runCtx, p.version, waitTimeout)
		if runCtx.Err() != nil {
			return
		}
		p.iterate()
	}
}

// Publishes reports how many times this planner has republished a path.
func (p *Planner) Publishes() int { return p.publishes }

// Engine exposes the underlying search engine, chiefly for tests that need to inspect
// g/rhs values or the update-vertex counter directly.
func (p *Planner) Engine() *dstarlite.Engine { return p.engine }

// iterate runs one planning cycle: snapshot, goal/start/occupancy change detection,
// incremental recompute, and conditional republish.
func (p *Planner) iterate() {
	cfg := p.ctx.Config
	goal, ok := p.ctx.Goal()
	if !ok {
		return
	}

	planning, _ := p.ctx.Store.SnapshotPlanning()
	robot := p.ctx.Pose.Current()
	start, startOK := geometry.WorldToCell(r2.Point{X: robot.X, Y: robot.Y}, cfg.CellSize, planning.W, planning.H)
	if !startOK || !goal.InBounds(planning.W, planning.H) {
		return
	}

	goalChanged := !p.haveGoal || goal != p.goal
	if goalChanged {
		p.engine.Reset(start, goal)
		p.goal = goal
		p.haveGoal = true
		p.lastOcc = nil
	}

	if !goalChanged {
		sameOcc := p.lastOcc != nil && bytes.Equal(p.lastOcc, planning.Cells)
		sameStart := p.engine.Start() == start
		if sameOcc && sameStart {
			return
		}
	}

	p.engine.SetGrid(planning)
	p.engine.SetStart(start)

	changed := goalChanged
	if p.lastOcc != nil {
		for i, b := range planning.Cells {
			if b == p.lastOcc[i] {
				continue
			}
			changed = true
			c := geometry.Cell{X: i % planning.W, Y: i / planning.W}
			p.engine.UpdateVertex(c)
			for _, n := range p.engine.Neighbors(c) {
				p.engine.UpdateVertex(n)
			}
		}
	}

	p.engine.ComputeShortestPath()

	if !changed {
		return
	}

	path := reconstructPath(p.engine, start, goal, planning.W*planning.H)
	smoothed := smoothPath(planning, path)
	heatmap := normalizeHeatmap(p.engine, planning)

	p.ctx.Store.PublishPath(heatmap, smoothed)
	p.publishes++
	p.lastOcc = append([]byte(nil), planning.Cells...)

	p.log.Debugw("path republished", "raw_len", len(path), "smoothed_len", len(smoothed))
}

// reconstructPath greedily descends g from start to goal, at each step choosing the
// neighbor minimizing cost+g and, among ties, preferring a diagonal step. Returns nil
// if start has no finite path to goal. The walk is capped at maxSteps to bound a
// pathological oscillation.
func reconstructPath(e *dstarlite.Engine, start, goal dstarlite.Cell, maxSteps int) []dstarlite.Cell {
	if math.IsInf(e.G(start), 0) {
		return nil
	}

	path := []dstarlite.Cell{start}
	cur := start
	for cur != goal && len(path) < maxSteps {
		next, ok := bestDescent(e, cur)
		if !ok {
			break
		}
		cur = next
		path = append(path, cur)
	}
	return path
}

func bestDescent(e *dstarlite.Engine, cur dstarlite.Cell) (dstarlite.Cell, bool) {
	var best dstarlite.Cell
	bestCost := math.Inf(1)
	bestDiagonal := false
	found := false

	for _, v := range e.Neighbors(cur) {
		c := e.Cost(cur, v) + e.G(v)
		if math.IsInf(c, 0) {
			continue
		}
		diagonal := v.X != cur.X && v.Y != cur.Y

		better := !found || c < bestCost-keyEpsilon
		tiedPreferDiagonal := found && math.Abs(c-bestCost) <= keyEpsilon && diagonal && !bestDiagonal
		if !better && !tiedPreferDiagonal {
			continue
		}
		best, bestCost, bestDiagonal, found = v, c, diagonal, true
	}
	return best, found
}

// smoothPath keeps only the waypoints needed to preserve line-of-sight coverage of
// the raw path: starting from the last kept waypoint, it extends visibility as far
// as it can and only keeps a waypoint when the segment to its successor would
// collide with an obstacle. Endpoints are always kept.
func smoothPath(grid *gridstore.Planning, path []dstarlite.Cell) []dstarlite.Cell {
	if len(path) <= 2 {
		return path
	}

	smoothed := []dstarlite.Cell{path[0]}
	lastKept := 0
	for i := 1; i < len(path)-1; i++ {
		if segmentBlocked(grid, path[lastKept], path[i+1]) {
			smoothed = append(smoothed, path[i])
			lastKept = i
		}
	}
	return append(smoothed, path[len(path)-1])
}

func segmentBlocked(grid *gridstore.Planning, a, b dstarlite.Cell) bool {
	for _, c := range geometry.SegmentCells(grid.W, grid.H, a, b) {
		if grid.Blocked(c) {
			return true
		}
	}
	return false
}

// normalizeHeatmap maps every cell's g value into [0, 255] for visualization:
// non-finite g (unreached cells) map to 0; finite values map so that cells closer to
// the goal (lower g) render brighter. The finite-max scan uses gonum/floats.Max rather
// than a hand-rolled loop, the same idiom banshee-data-velocity.report's lidar monitor
// uses for its grid-statistics scans.
func normalizeHeatmap(e *dstarlite.Engine, grid *gridstore.Planning) []byte {
	gs := make([]float64, grid.W*grid.H)
	finite := make([]float64, 0, len(gs))
	for y := 0; y < grid.H; y++ {
		for x := 0; x < grid.W; x++ {
			g := e.G(dstarlite.Cell{X: x, Y: y})
			gs[y*grid.W+x] = g
			if !math.IsInf(g, 0) {
				finite = append(finite, g)
			}
		}
	}

	out := make([]byte, grid.W*grid.H)
	if len(finite) == 0 {
		return out
	}
	maxG := floats.Max(finite)
	if maxG == 0 {
		return out
	}
	for i, g := range gs {
		if math.IsInf(g, 0) {
			continue
		}
		v := 255.0 * (1 - g/maxG)
		out[i] = byte(geometry.Clamp(v, 0, 255))
	}
	return out
}
