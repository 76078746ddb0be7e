// Package mapper folds lidar scans into the occupancy grid and republishes the
// safety-inflated planning grid.
package mapper

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/navstack/config"
	"go.viam.com/navstack/gridstore"
	"go.viam.com/navstack/internal/geometry"
	"go.viam.com/navstack/logging"
	"go.viam.com/navstack/pose"
	"go.viam.com/navstack/telemetry"
)

// headerBeamMargin is the number of leading/trailing beams excluded from free-space
// carving. Their exact purpose (sensor-dead vs header-encoded) is unresolved upstream,
// so the margin is treated as a fixed constant rather than inferred per scan.
const headerBeamMargin = 3

// obstacleStampMaxGap is the maximum Euclidean distance (meters) between two
// consecutive beam endpoints for them to be stamped as a continuous obstacle segment.
// Isolated returns farther apart than this are treated as speckle and not stamped.
const obstacleStampMaxGap = 0.25

// Mapper folds scans into an occupancy grid and republishes the planning grid it
// implies. All shared state lives in the gridstore.Store/Occupancy it is constructed
// with; Mapper itself is stateless between ticks.
type Mapper struct {
	store *gridstore.Store
	occ   *gridstore.Occupancy
	log   logging.Logger
}

// New constructs a Mapper that folds scans into occ and publishes the planning grids
// it derives to store.
func New(store *gridstore.Store, occ *gridstore.Occupancy, log logging.Logger) *Mapper {
	return &Mapper{store: store, occ: occ, log: log}
}

// scanPoint is one beam's endpoint in both world and grid coordinates, plus whether it
// registered a return (range below LidarMaxRange).
type scanPoint struct {
	world  r2.Point
	cell   geometry.Cell
	inGrid bool
	hit    bool
}

// Tick folds one telemetry frame into the occupancy grid and republishes the planning
// grid. Free-space carving runs before obstacle stamping so that a cell stamped
// Occupied by this scan is never carved back to Free within the same Tick.
func (m *Mapper) Tick(frame telemetry.Frame, robot pose.Robot, cfg config.Params) {
	robotCell, robotInGrid := geometry.WorldToCell(r2.Point{X: robot.X, Y: robot.Y}, cfg.CellSize, m.occ.W, m.occ.H)

	points := m.computeScanPoints(frame, robot, cfg)

	if robotInGrid {
		m.carveFreeSpace(robotCell, points)
	}
	m.stampObstacles(points)
	m.publishPlanning(cfg)
}

// computeScanPoints converts every beam into a world-frame endpoint: the sensor spans
// SensorSpanDeg degrees forward across SensorBeams samples, angle a = heading +
// (halfSpan - i*step), offset by pi when running in reverse.
func (m *Mapper) computeScanPoints(frame telemetry.Frame, robot pose.Robot, cfg config.Params) []scanPoint {
	n := len(frame.Ranges)
	points := make([]scanPoint, n)
	halfSpan := cfg.SensorSpanDeg / 2 * math.Pi / 180
	step := (cfg.SensorSpanDeg * math.Pi / 180) / float64(cfg.SensorBeams-1)

	for i, rng := range frame.Ranges {
		a := robot.Heading + (halfSpan - float64(i)*step)
		if cfg.Backwards {
			a += math.Pi
		}
		d := rng
		hit := d < cfg.LidarMaxRange
		if !hit {
			d = cfg.LidarMaxRange
		}
		w := r2.Point{
			X: robot.X + d*math.Sin(a),
			Y: robot.Y - d*math.Cos(a),
		}
		cell, inGrid := geometry.WorldToCell(w, cfg.CellSize, m.occ.W, m.occ.H)
		points[i] = scanPoint{world: w, cell: cell, inGrid: inGrid, hit: hit}
	}
	return points
}

// carveFreeSpace fills the triangle (robot, endpoint[i-1], endpoint[i]) with Free for
// every i in [headerBeamMargin, len-headerBeamMargin] (3..357 for a 360-beam scan).
// Filling triangles is strictly more conservative than Bresenham-per-beam and runs in
// O(area) per scan rather than O(range*numBeams).
func (m *Mapper) carveFreeSpace(robotCell geometry.Cell, points []scanPoint) {
	n := len(points)
	for i := headerBeamMargin; i <= n-headerBeamMargin; i++ {
		prev, cur := points[i-1], points[i]
		for _, cell := range geometry.TriangleCells(m.occ.W, m.occ.H, robotCell, prev.cell, cur.cell) {
			m.occ.Set(cell, gridstore.Free)
		}
	}
}

// stampObstacles draws consecutive beams that both hit and whose endpoints are close
// together as a continuous Occupied segment. Isolated returns are not stamped, which
// suppresses speckle.
func (m *Mapper) stampObstacles(points []scanPoint) {
	n := len(points)
	for i := 1; i < n; i++ {
		prev, cur := points[i-1], points[i]
		if !prev.hit || !cur.hit {
			continue
		}
		if dist(prev.world, cur.world) >= obstacleStampMaxGap {
			continue
		}
		for _, cell := range geometry.SegmentCells(m.occ.W, m.occ.H, prev.cell, cur.cell) {
			m.occ.Set(cell, gridstore.Occupied)
		}
	}
}

func dist(a, b r2.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// publishPlanning dilates the occupancy grid's Occupied set by a disc structuring
// element of radius RInflate and publishes the result atomically, bumping the Store's
// version. No partial publish is possible: the new grid is built fully before the
// single PublishPlanning call.
func (m *Mapper) publishPlanning(cfg config.Params) {
	planning := gridstore.NewPlanning(m.occ.W, m.occ.H)
	offsets := geometry.DiscOffsets(cfg.RInflate)

	for y := 0; y < m.occ.H; y++ {
		for x := 0; x < m.occ.W; x++ {
			c := geometry.Cell{X: x, Y: y}
			if m.occ.Get(c) != gridstore.Occupied {
				continue
			}
			for _, off := range offsets {
				nc := geometry.Cell{X: x + off.X, Y: y + off.Y}
				if nc.InBounds(m.occ.W, m.occ.H) {
					planning.Cells[nc.Y*m.occ.W+nc.X] = 1
				}
			}
		}
	}

	m.store.PublishPlanning(planning)
	m.log.Debugw("planning grid republished")
}
