// Package geometry implements the pure grid and angle math shared by the mapper and
// the planner: world-to-cell conversion, triangle and segment rasterization, disc
// dilation, and angle wrapping. It holds no grid state of its own; callers pass grid
// dimensions so this package stays a leaf with no dependency on gridstore.
package geometry

import (
	"math"

	"github.com/golang/geo/r2"
)

// Cell is an integer grid coordinate, row-major (X is column, Y is row).
type Cell struct {
	X, Y int
}

// InBounds reports whether c lies within a w x h grid.
func (c Cell) InBounds(w, h int) bool {
	return c.X >= 0 && c.X < w && c.Y >= 0 && c.Y < h
}

// WorldToCell maps a world point to the grid cell containing it: world (x,y) maps to
// cell (floor(x/cellSize) + w/2, floor(y/cellSize) + h/2). Returns false if the
// resulting cell is outside the grid.
func WorldToCell(p r2.Point, cellSize float64, w, h int) (Cell, bool) {
	c := Cell{
		X: int(math.Floor(p.X/cellSize)) + w/2,
		Y: int(math.Floor(p.Y/cellSize)) + h/2,
	}
	return c, c.InBounds(w, h)
}

// CellToWorld returns the world-space center of a grid cell.
func CellToWorld(c Cell, cellSize float64, w, h int) r2.Point {
	return r2.Point{
		X: (float64(c.X-w/2) + 0.5) * cellSize,
		Y: (float64(c.Y-h/2) + 0.5) * cellSize,
	}
}

// Wrap reduces an angle to (-pi, pi].
func Wrap(a float64) float64 {
	a -= 2 * math.Pi * math.Round(a/(2*math.Pi))
	if a <= -math.Pi {
		a += 2 * math.Pi
	}
	if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Octile returns the admissible octile distance heuristic between two cells: the
// 8-connected shortest path length on an unobstructed grid with diagonal cost sqrt(2).
func Octile(a, b Cell) float64 {
	dx := math.Abs(float64(a.X - b.X))
	dy := math.Abs(float64(a.Y - b.Y))
	return (dx + dy) + (math.Sqrt2-2)*math.Min(dx, dy)
}

// SegmentCells returns every grid cell touched by the Bresenham rasterization of the
// straight line from a to b, inclusive of both endpoints, clipped to a w x h grid.
func SegmentCells(w, h int, a, b Cell) []Cell {
	var out []Cell
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X >= b.X {
		sx = -1
	}
	if a.Y >= b.Y {
		sy = -1
	}
	err := dx + dy
	x, y := a.X, a.Y
	for {
		c := Cell{x, y}
		if c.InBounds(w, h) {
			out = append(out, c)
		}
		if x == b.X && y == b.Y {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
	return out
}

// TriangleCells returns every grid cell whose center lies within or on the boundary
// of the triangle (a, b, c), clipped to a w x h grid. Used by the mapper to carve
// free space between consecutive lidar beams and the robot cell.
func TriangleCells(w, h int, a, b, c Cell) []Cell {
	minY := min3(a.Y, b.Y, c.Y)
	maxY := max3(a.Y, b.Y, c.Y)
	minX := min3(a.X, b.X, c.X)
	maxX := max3(a.X, b.X, c.X)
	if minY < 0 {
		minY = 0
	}
	if minX < 0 {
		minX = 0
	}
	if maxY >= h {
		maxY = h - 1
	}
	if maxX >= w {
		maxX = w - 1
	}
	var out []Cell
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if pointInTriangle(x, y, a, b, c) {
				out = append(out, Cell{x, y})
			}
		}
	}
	return out
}

func pointInTriangle(px, py int, a, b, c Cell) bool {
	d1 := sign(px, py, a, b)
	d2 := sign(px, py, b, c)
	d3 := sign(px, py, c, a)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

func sign(px, py int, a, b Cell) int {
	v := (px-b.X)*(a.Y-b.Y) - (a.X-b.X)*(py-b.Y)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// DiscOffsets returns the (dx, dy) offsets of every integer cell within radius
// (inclusive) of the origin, i.e. a structuring element for disc dilation.
func DiscOffsets(radius int) []Cell {
	var out []Cell
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				out = append(out, Cell{dx, dy})
			}
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max3(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
