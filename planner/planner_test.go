package planner

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/navstack/config"
	"go.viam.com/navstack/gridstore"
	"go.viam.com/navstack/internal/geometry"
	"go.viam.com/navstack/internal/navcontext"
	"go.viam.com/navstack/logging"
	"go.viam.com/navstack/pose"
)

func testConfig() config.Params {
	cfg := config.Default()
	cfg.GridW, cfg.GridH = 100, 100
	cfg.CellSize = 1
	return cfg
}

// worldFor returns the world-frame point that maps to cell c under testConfig's
// grid, so tests can seed a pose landing exactly on a chosen cell.
func worldFor(cfg config.Params, c geometry.Cell) (float64, float64) {
	p := geometry.CellToWorld(c, cfg.CellSize, cfg.GridW, cfg.GridH)
	return p.X, p.Y
}

func TestEmptyGridStraightPath(t *testing.T) {
	cfg := testConfig()
	ctx := navcontext.New(cfg, logging.NewLogger("test"))

	start := geometry.Cell{X: 10, Y: 0}
	goal := geometry.Cell{X: 0, Y: 0}
	x, y := worldFor(cfg, start)
	ctx.Pose.SetCurrent(pose.Robot{X: x, Y: y})
	ctx.SetGoal(goal)

	p := New(ctx)
	p.iterate()

	test.That(t, p.Engine().G(start), test.ShouldAlmostEqual, 10.0, 1e-6)

	_, path := ctx.Store.ReadPath()
	test.That(t, len(path), test.ShouldEqual, 2)
	test.That(t, path[0], test.ShouldResemble, start)
	test.That(t, path[1], test.ShouldResemble, goal)
}

func TestSingleWallDetour(t *testing.T) {
	cfg := testConfig()
	ctx := navcontext.New(cfg, logging.NewLogger("test"))

	planning := gridstore.NewPlanning(cfg.GridW, cfg.GridH)
	for x := 0; x <= 60; x++ {
		c := geometry.Cell{X: x, Y: 50}
		planning.Cells[c.Y*planning.W+c.X] = 1
	}
	ctx.Store.PublishPlanning(planning)

	start := geometry.Cell{X: 10, Y: 40}
	goal := geometry.Cell{X: 10, Y: 60}
	x, y := worldFor(cfg, start)
	ctx.Pose.SetCurrent(pose.Robot{X: x, Y: y})
	ctx.SetGoal(goal)

	p := New(ctx)
	p.iterate()

	_, path := ctx.Store.ReadPath()
	test.That(t, len(path) > 0, test.ShouldBeTrue)
	test.That(t, path[0], test.ShouldResemble, start)
	test.That(t, path[len(path)-1], test.ShouldResemble, goal)
	test.That(t, len(path), test.ShouldEqual, 3)
}

func TestDynamicObstacleOffPathLeavesStartCostUnchanged(t *testing.T) {
	cfg := testConfig()
	ctx := navcontext.New(cfg, logging.NewLogger("test"))

	start := geometry.Cell{X: 10, Y: 0}
	goal := geometry.Cell{X: 0, Y: 0}
	x, y := worldFor(cfg, start)
	ctx.Pose.SetCurrent(pose.Robot{X: x, Y: y})
	ctx.SetGoal(goal)

	p := New(ctx)
	p.iterate()
	test.That(t, p.Engine().G(start), test.ShouldAlmostEqual, 10.0, 1e-6)
	firstPublishes := p.Publishes()

	planning, _ := ctx.Store.SnapshotPlanning()
	next := gridstore.NewPlanning(planning.W, planning.H)
	copy(next.Cells, planning.Cells)
	obstacle := geometry.Cell{X: 50, Y: 90}
	next.Cells[obstacle.Y*next.W+obstacle.X] = 1
	ctx.Store.PublishPlanning(next)

	p.Engine().ResetUpdateVertexCalls()
	p.iterate()

	test.That(t, p.Engine().G(start), test.ShouldAlmostEqual, 10.0, 1e-6)
	test.That(t, p.Engine().UpdateVertexCalls() <= 5*cfg.GridW, test.ShouldBeTrue)
	test.That(t, p.Publishes() > firstPublishes, test.ShouldBeTrue)
}

func TestGoalChangeResetsSearch(t *testing.T) {
	cfg := testConfig()
	ctx := navcontext.New(cfg, logging.NewLogger("test"))

	start := geometry.Cell{X: 10, Y: 0}
	x, y := worldFor(cfg, start)
	ctx.Pose.SetCurrent(pose.Robot{X: x, Y: y})
	ctx.SetGoal(geometry.Cell{X: 0, Y: 0})

	p := New(ctx)
	p.iterate()

	newGoal := geometry.Cell{X: 0, Y: 50}
	ctx.SetGoal(newGoal)
	p.iterate()

	test.That(t, p.Engine().G(start), test.ShouldAlmostEqual, geometry.Octile(start, newGoal), 1e-6)
}

func TestNoChangeFastPathSkipsRepublish(t *testing.T) {
	cfg := testConfig()
	ctx := navcontext.New(cfg, logging.NewLogger("test"))

	start := geometry.Cell{X: 10, Y: 0}
	x, y := worldFor(cfg, start)
	ctx.Pose.SetCurrent(pose.Robot{X: x, Y: y})
	ctx.SetGoal(geometry.Cell{X: 0, Y: 0})

	p := New(ctx)
	p.iterate()
	after := p.Publishes()

	p.iterate()
	test.That(t, p.Publishes(), test.ShouldEqual, after)
}
