package follower

import (
	"math"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/navstack/config"
	"go.viam.com/navstack/internal/geometry"
	"go.viam.com/navstack/internal/navcontext"
	"go.viam.com/navstack/logging"
	"go.viam.com/navstack/motorcmd"
	"go.viam.com/navstack/pose"
)

// fakeSender is a motorcmd.Sender stand-in that hands each emitted command to the
// test over a channel, letting the test drive a simple simulated plant in lockstep
// with the follower's PID loop instead of racing a real clock.
type fakeSender struct {
	cmds chan motorcmd.Command
}

func newFakeSender() *fakeSender {
	return &fakeSender{cmds: make(chan motorcmd.Command, 1)}
}

func (f *fakeSender) Send(cmd motorcmd.Command) error {
	f.cmds <- cmd
	return nil
}

func testConfig() config.Params {
	cfg := config.Default()
	cfg.GridW, cfg.GridH = 4000, 4000
	cfg.CellSize = 0.01
	return cfg
}

// driveOneTick signals a telemetry arrival, waits for the follower's resulting motor
// command, and integrates it into the pose the same way pose.Estimator.Update would:
// heading from angular velocity, x/y from linear velocity at the new heading. It
// returns the command the follower emitted for this tick.
func driveOneTick(t *testing.T, ctx *navcontext.Context, sender *fakeSender, cfg config.Params) motorcmd.Command {
	t.Helper()
	ctx.Store.SetTelemetryUpdated()

	select {
	case cmd := <-sender.cmds:
		robot := ctx.Pose.Current()
		robot.Heading = geometry.Wrap(robot.Heading - cmd.W*cfg.DT)
		robot.Speed = cmd.V
		ds := cmd.V * cfg.DT
		robot.X += ds * math.Sin(robot.Heading)
		robot.Y -= ds * math.Cos(robot.Heading)
		ctx.Pose.SetCurrent(robot)
		return cmd
	case <-time.After(time.Second):
		t.Fatal("follower did not emit a command within one second")
		return motorcmd.Command{}
	}
}

func TestAlignPhaseConvergesThenCompletesShortPath(t *testing.T) {
	cfg := testConfig()
	ctx := navcontext.New(cfg, logging.NewLogger("test"))
	ctx.Pose.SetCurrent(pose.Robot{})

	start := geometry.Cell{X: cfg.GridW / 2, Y: cfg.GridH / 2}
	target := geometry.Cell{X: cfg.GridW/2 + 1, Y: cfg.GridH / 2}
	targetWorld := geometry.CellToWorld(target, cfg.CellSize, cfg.GridW, cfg.GridH)
	wantHeading := math.Atan2(targetWorld.X, -targetWorld.Y)

	sender := newFakeSender()
	f := New(ctx, sender)
	f.StartPath([]geometry.Cell{start, target})
	test.That(t, f.State(), test.ShouldEqual, PathFollowing)

	maxTicks := int(math.Ceil(math.Pi/(cfg.TurningLimit*cfg.DT))) * 4
	converged := false
	var lastCmd motorcmd.Command
	for i := 0; i < maxTicks; i++ {
		lastCmd = driveOneTick(t, ctx, sender, cfg)
		if math.Abs(geometry.Wrap(ctx.Pose.Current().Heading-wantHeading)) <= cfg.AngularPrecision {
			converged = true
			break
		}
	}
	test.That(t, converged, test.ShouldBeTrue)

	// The follower checks alignment against the pose it read before this test applied
	// its latest command, so it may issue one more align command before it sees the
	// converged heading. The target cell is within LinearPrecision of the start, so
	// once it does, the single-waypoint job runs no drive ticks and its next command is
	// the terminal zero-velocity send.
	terminated := false
	for i := 0; i < maxTicks && !terminated; i++ {
		lastCmd = driveOneTick(t, ctx, sender, cfg)
		terminated = lastCmd == (motorcmd.Command{})
	}
	if !terminated {
		t.Fatal("follower did not emit the terminal zero-velocity command")
	}
	test.That(t, lastCmd, test.ShouldResemble, motorcmd.Command{})
	test.That(t, waitForState(t, f, ManualControl), test.ShouldBeTrue)
}

func TestStopDuringDriveEmitsZeroWithinOneTick(t *testing.T) {
	cfg := testConfig()
	ctx := navcontext.New(cfg, logging.NewLogger("test"))
	ctx.Pose.SetCurrent(pose.Robot{})

	start := geometry.Cell{X: cfg.GridW / 2, Y: cfg.GridH / 2}
	target := geometry.Cell{X: cfg.GridW/2 + 999, Y: cfg.GridH / 2}

	sender := newFakeSender()
	f := New(ctx, sender)
	f.StartPath([]geometry.Cell{start, target})

	// Drive enough ticks to get past align and well into the drive phase before
	// cancelling (the path spans ~10m; a handful of ticks only turns to face it).
	for i := 0; i < 60; i++ {
		driveOneTick(t, ctx, sender, cfg)
	}
	test.That(t, f.State(), test.ShouldEqual, PathFollowing)

	f.Stop()

	select {
	case cmd := <-sender.cmds:
		test.That(t, cmd, test.ShouldResemble, motorcmd.Command{})
	case <-time.After(time.Second):
		t.Fatal("follower did not emit a zero-velocity command after Stop")
	}

	test.That(t, waitForState(t, f, ManualControl), test.ShouldBeTrue)
}

func waitForState(t *testing.T, f *Follower, want State) bool {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if f.State() == want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestStateStringers(t *testing.T) {
	test.That(t, ManualControl.String(), test.ShouldEqual, "ManualControl")
	test.That(t, PathFollowing.String(), test.ShouldEqual, "PathFollowing")
}

func TestStartPathWithFewerThanTwoCellsIsNoop(t *testing.T) {
	cfg := testConfig()
	ctx := navcontext.New(cfg, logging.NewLogger("test"))
	f := New(ctx, newFakeSender())

	f.StartPath([]geometry.Cell{{X: 1, Y: 1}})
	test.That(t, f.State(), test.ShouldEqual, ManualControl)
}
