// Package dstarlite implements the D*-Lite incremental shortest-path algorithm over
// an 8-connected grid, following Koenig and Likhachev's optimized version (Fast
// Replanning for Navigation in Unknown Terrain, Figure 9): g/rhs value maps, a
// lazy-delete priority queue keyed by (k1, k2), and a km offset that keeps keys
// admissible as the start cell moves.
package dstarlite

import (
	"math"

	"go.viam.com/navstack/internal/geometry"
)

// Cell identifies one grid cell.
type Cell = geometry.Cell

// Grid is the obstacle predicate the engine searches over. gridstore.Planning
// satisfies it.
type Grid interface {
	Blocked(c Cell) bool
}

var neighborOffsets = [8]Cell{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

// Engine holds D*-Lite's persistent search state for one active goal. Nothing here
// is safe for concurrent use; callers serialize access (the planner package runs one
// engine per goroutine).
type Engine struct {
	grid Grid

	start, goal Cell
	lastStart   Cell
	hasStart    bool

	g, rhs map[Cell]float64
	open   *priorityQueue
	km     float64

	updateVertexCalls int
}

// NewEngine constructs an Engine with no goal set; call Reset before the first
// ComputeShortestPath.
func NewEngine() *Engine {
	return &Engine{
		g:    make(map[Cell]float64),
		rhs:  make(map[Cell]float64),
		open: newPriorityQueue(),
	}
}

func (e *Engine) valueOf(m map[Cell]float64, c Cell) float64 {
	if v, ok := m[c]; ok {
		return v
	}
	return math.Inf(1)
}

// G returns the current best-known cost-to-goal for c (may be +Inf).
func (e *Engine) G(c Cell) float64 { return e.valueOf(e.g, c) }

// Rhs returns the current one-step-lookahead cost for c (may be +Inf).
func (e *Engine) Rhs(c Cell) float64 { return e.valueOf(e.rhs, c) }

// Start returns the current start cell.
func (e *Engine) Start() Cell { return e.start }

// Goal returns the current goal cell.
func (e *Engine) Goal() Cell { return e.goal }

// UpdateVertexCalls reports how many times UpdateVertex has run since the last
// ResetUpdateVertexCalls. Tests use this as the change-propagation instrumentation
// counter.
func (e *Engine) UpdateVertexCalls() int { return e.updateVertexCalls }

// ResetUpdateVertexCalls zeros the counter UpdateVertexCalls reports.
func (e *Engine) ResetUpdateVertexCalls() { e.updateVertexCalls = 0 }

// SetGrid installs the planning-grid snapshot that Cost/neighbor queries read for
// the remainder of this iteration.
func (e *Engine) SetGrid(grid Grid) { e.grid = grid }

// Reset wipes all search state and seeds a fresh search toward goal. Used whenever
// the goal cell changes.
func (e *Engine) Reset(start, goal Cell) {
	e.g = make(map[Cell]float64)
	e.rhs = make(map[Cell]float64)
	e.open = newPriorityQueue()
	e.km = 0
	e.start = start
	e.lastStart = start
	e.hasStart = true
	e.goal = goal

	e.rhs[goal] = 0
	e.open.insert(goal, key{K1: geometry.Octile(start, goal), K2: 0})
}

// SetStart moves the start cell without resetting search state, accumulating the km
// offset that keeps previously computed keys admissible.
func (e *Engine) SetStart(start Cell) {
	if !e.hasStart {
		e.start = start
		e.lastStart = start
		e.hasStart = true
		return
	}
	if start == e.lastStart {
		return
	}
	e.km += geometry.Octile(e.lastStart, start)
	e.lastStart = start
	e.start = start
}

// Cost returns the edge traversal cost from u to its neighbor v: +Inf if v is out of
// bounds or blocked, or if the move is diagonal and either orthogonal-adjacent cell
// of the step is blocked (corner-cutting prevention). Otherwise 1 for an orthogonal
// step or sqrt(2) for a diagonal one.
func (e *Engine) Cost(u, v Cell) float64 {
	if e.grid.Blocked(v) {
		return math.Inf(1)
	}
	dx, dy := v.X-u.X, v.Y-u.Y
	if dx != 0 && dy != 0 {
		if e.grid.Blocked(Cell{X: u.X + dx, Y: u.Y}) || e.grid.Blocked(Cell{X: u.X, Y: u.Y + dy}) {
			return math.Inf(1)
		}
		return math.Sqrt2
	}
	return 1
}

// Neighbors returns u's 8-connected neighbor cells. Out-of-bounds neighbors are
// included; Cost treats them as infinite via Grid.Blocked.
func (e *Engine) Neighbors(u Cell) []Cell {
	out := make([]Cell, 0, 8)
	for _, off := range neighborOffsets {
		out = append(out, Cell{X: u.X + off.X, Y: u.Y + off.Y})
	}
	return out
}

func (e *Engine) calculateKey(u Cell) key {
	m := math.Min(e.G(u), e.Rhs(u))
	return key{K1: m + geometry.Octile(u, e.start) + e.km, K2: m}
}

// UpdateVertex recomputes u's rhs from its neighbors (unless u is the goal) and
// repositions it in the open set: removed if locally consistent (g == rhs),
// inserted/updated with its current key otherwise.
func (e *Engine) UpdateVertex(u Cell) {
	e.updateVertexCalls++

	if u != e.goal {
		minRhs := math.Inf(1)
		for _, v := range e.Neighbors(u) {
			if c := e.Cost(u, v) + e.G(v); c < minRhs {
				minRhs = c
			}
		}
		e.rhs[u] = minRhs
	}

	consistent := e.G(u) == e.Rhs(u)
	inOpen := e.open.contains(u)
	switch {
	case !consistent && inOpen:
		e.open.update(u, e.calculateKey(u))
	case !consistent && !inOpen:
		e.open.insert(u, e.calculateKey(u))
	case consistent && inOpen:
		e.open.remove(u)
	}
}

// ComputeShortestPath drains the open set until the start cell is locally consistent
// and no remaining open entry could still improve it.
func (e *Engine) ComputeShortestPath() {
	for !e.open.isEmpty() {
		topKey := e.open.topKey()
		startKey := e.calculateKey(e.start)
		if !topKey.less(startKey) && e.Rhs(e.start) == e.G(e.start) {
			break
		}

		u := e.open.top()
		kOld := topKey
		kNew := e.calculateKey(u)

		switch {
		case kOld.less(kNew):
			e.open.update(u, kNew)
		case e.G(u) > e.Rhs(u):
			e.g[u] = e.Rhs(u)
			e.open.remove(u)
			for _, v := range e.Neighbors(u) {
				e.UpdateVertex(v)
			}
		default:
			e.g[u] = math.Inf(1)
			for _, v := range append(e.Neighbors(u), u) {
				e.UpdateVertex(v)
			}
		}
	}
}
