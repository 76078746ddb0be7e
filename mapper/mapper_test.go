package mapper

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/navstack/config"
	"go.viam.com/navstack/gridstore"
	"go.viam.com/navstack/internal/geometry"
	"go.viam.com/navstack/logging"
	"go.viam.com/navstack/pose"
	"go.viam.com/navstack/telemetry"
)

func testConfig() config.Params {
	cfg := config.Default()
	cfg.GridW, cfg.GridH = 200, 200
	cfg.CellSize = 0.1
	cfg.RInflate = 2
	return cfg
}

// beamEndpoint reproduces mapper.computeScanPoints's per-beam world point, so tests
// can assert on the exact cell a given beam lands in without hardcoding approximate
// geometry that floating-point beam spacing would make flaky.
func beamEndpoint(robot pose.Robot, cfg config.Params, beam int, rng float64) r2.Point {
	halfSpan := cfg.SensorSpanDeg / 2 * math.Pi / 180
	step := (cfg.SensorSpanDeg * math.Pi / 180) / float64(cfg.SensorBeams-1)
	a := robot.Heading + (halfSpan - float64(beam)*step)
	if cfg.Backwards {
		a += math.Pi
	}
	d := rng
	if d >= cfg.LidarMaxRange {
		d = cfg.LidarMaxRange
	}
	return r2.Point{X: robot.X + d*math.Sin(a), Y: robot.Y - d*math.Cos(a)}
}

func allMissFrame(cfg config.Params) telemetry.Frame {
	ranges := make([]float64, cfg.SensorBeams)
	for i := range ranges {
		ranges[i] = cfg.LidarMaxRange + 1
	}
	return telemetry.Frame{Ranges: ranges}
}

func TestTickCarvesFreeSpaceAtRobotCell(t *testing.T) {
	cfg := testConfig()
	occ := gridstore.NewOccupancy(cfg.GridW, cfg.GridH)
	store := gridstore.NewStore(cfg.GridW, cfg.GridH)
	m := New(store, occ, logging.NewLogger("test"))

	robot := pose.Robot{X: 0, Y: 0, Heading: 0}
	frame := allMissFrame(cfg)
	m.Tick(frame, robot, cfg)

	robotCell, ok := geometry.WorldToCell(r2.Point{X: robot.X, Y: robot.Y}, cfg.CellSize, cfg.GridW, cfg.GridH)
	test.That(t, ok, test.ShouldBeTrue)
	// a miss beam still carves free space out to the max range triangle it forms with
	// its neighbors; the cell directly under the robot is always inside that fan.
	test.That(t, occ.Get(robotCell), test.ShouldEqual, gridstore.Free)
}

func TestTickDoesNotOverwriteOccupiedToFreeWithinSameScan(t *testing.T) {
	cfg := testConfig()
	occ := gridstore.NewOccupancy(cfg.GridW, cfg.GridH)
	store := gridstore.NewStore(cfg.GridW, cfg.GridH)
	m := New(store, occ, logging.NewLogger("test"))

	robot := pose.Robot{X: 0, Y: 0, Heading: 0}
	ranges := make([]float64, cfg.SensorBeams)
	for i := range ranges {
		ranges[i] = cfg.LidarMaxRange + 1
	}
	mid := cfg.SensorBeams / 2
	ranges[mid] = 1.0
	ranges[mid+1] = 1.0
	frame := telemetry.Frame{Ranges: ranges}

	m.Tick(frame, robot, cfg)

	hitWorld := beamEndpoint(robot, cfg, mid, ranges[mid])
	hitCell, ok := geometry.WorldToCell(hitWorld, cfg.CellSize, cfg.GridW, cfg.GridH)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, occ.Get(hitCell), test.ShouldEqual, gridstore.Occupied)
}

func TestPublishPlanningDilatesOccupiedCells(t *testing.T) {
	cfg := testConfig()
	cfg.RInflate = 3
	occ := gridstore.NewOccupancy(cfg.GridW, cfg.GridH)
	store := gridstore.NewStore(cfg.GridW, cfg.GridH)
	m := New(store, occ, logging.NewLogger("test"))

	center := geometry.Cell{X: 100, Y: 100}
	occ.Set(center, gridstore.Occupied)
	m.publishPlanning(cfg)

	planning, version := store.SnapshotPlanning()
	test.That(t, version, test.ShouldEqual, uint64(1))
	test.That(t, planning.Blocked(center), test.ShouldBeTrue)
	test.That(t, planning.Blocked(geometry.Cell{X: 102, Y: 100}), test.ShouldBeTrue)
	test.That(t, planning.Blocked(geometry.Cell{X: 110, Y: 100}), test.ShouldBeFalse)
}

func TestStampObstaclesSkipsIsolatedReturns(t *testing.T) {
	cfg := testConfig()
	occ := gridstore.NewOccupancy(cfg.GridW, cfg.GridH)
	store := gridstore.NewStore(cfg.GridW, cfg.GridH)
	m := New(store, occ, logging.NewLogger("test"))

	robot := pose.Robot{X: 0, Y: 0, Heading: 0}
	ranges := make([]float64, cfg.SensorBeams)
	for i := range ranges {
		ranges[i] = cfg.LidarMaxRange + 1
	}
	mid := cfg.SensorBeams / 2
	ranges[mid] = 1.0 // isolated: no close neighbor hit
	frame := telemetry.Frame{Ranges: ranges}

	m.Tick(frame, robot, cfg)

	hitWorld := beamEndpoint(robot, cfg, mid, ranges[mid])
	hitCell, ok := geometry.WorldToCell(hitWorld, cfg.CellSize, cfg.GridW, cfg.GridH)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, occ.Get(hitCell), test.ShouldNotEqual, gridstore.Occupied)
}

func TestRangesAtOrBeyondMaxRangeCarveButDoNotStampObstacle(t *testing.T) {
	cfg := testConfig()
	occ := gridstore.NewOccupancy(cfg.GridW, cfg.GridH)
	store := gridstore.NewStore(cfg.GridW, cfg.GridH)
	m := New(store, occ, logging.NewLogger("test"))

	robot := pose.Robot{X: 0, Y: 0, Heading: 0}
	ranges := make([]float64, cfg.SensorBeams)
	for i := range ranges {
		ranges[i] = cfg.LidarMaxRange // >= max range: no return
	}
	frame := telemetry.Frame{Ranges: ranges}

	m.Tick(frame, robot, cfg)

	for _, c := range occ.Cells {
		test.That(t, c, test.ShouldNotEqual, gridstore.Occupied)
	}
}
