// Package follower drives the robot along a planner-published waypoint path with a
// per-tick PID control law, one waypoint at a time: align to face it, drive toward
// it, slow for the upcoming turn, and arc through the turn before moving on.
package follower

import (
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"go.viam.com/navstack/config"
	"go.viam.com/navstack/internal/geometry"
	"go.viam.com/navstack/internal/navcontext"
	"go.viam.com/navstack/logging"
	"go.viam.com/navstack/motorcmd"
	"go.viam.com/navstack/pose"
)

// State is one of the follower's two top-level modes.
type State int

const (
	// ManualControl is the idle state: the follower issues no commands of its own.
	ManualControl State = iota
	// PathFollowing is active while a StartPath job is running.
	PathFollowing
)

func (s State) String() string {
	if s == PathFollowing {
		return "PathFollowing"
	}
	return "ManualControl"
}

// Sender is the motor command sink a Follower drives. motorcmd.Sender satisfies it.
type Sender interface {
	Send(motorcmd.Command) error
}

// waypoint is one point on the path being followed, in world coordinates, with the
// cornering radius to use when arcing away from it toward the next point. Radius is
// zero for the final waypoint, which has no following turn.
type waypoint struct {
	Pos    r2.Point
	Radius float64
}

// Follower owns the ManualControl/PathFollowing state machine. A zero Follower is not
// usable; construct with New.
type Follower struct {
	ctx    *navcontext.Context
	log    logging.Logger
	sender Sender
	cfg    config.Params

	mu       sync.Mutex
	state    State
	stop     chan struct{}
	stopOnce *sync.Once
}

// New constructs a Follower that reads pose and config from ctx and writes motor
// commands to sender.
func New(ctx *navcontext.Context, sender Sender) *Follower {
	return &Follower{
		ctx:    ctx,
		log:    ctx.Log.Sublogger("follower"),
		sender: sender,
		cfg:    ctx.Config,
		state:  ManualControl,
	}
}

// State reports the follower's current top-level mode.
func (f *Follower) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// StartPath begins following path, a sequence of grid cells as returned by
// gridstore.Store.ReadPath with path[0] the robot's current cell. Any job already in
// progress is cancelled first, exactly as a fresh StartPath would be expected to
// preempt one already running. A path with fewer than two cells is a no-op: there is
// nowhere to go.
func (f *Follower) StartPath(path []geometry.Cell) {
	if len(path) < 2 {
		return
	}

	f.mu.Lock()
	f.cancelLocked()
	stop := make(chan struct{})
	f.stop = stop
	f.stopOnce = &sync.Once{}
	f.state = PathFollowing
	f.mu.Unlock()

	waypoints := buildWaypoints(f.cfg, path)
	go f.run(waypoints, stop)
}

// Stop cancels any in-progress path-following job. The job emits one zero-velocity
// command and returns to ManualControl within its current tick.
func (f *Follower) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelLocked()
}

// cancelLocked closes the active job's stop channel, guarded by its sync.Once so a
// second Stop() before the job's finish runs doesn't double-close it. It deliberately
// leaves f.stop/f.stopOnce in place: finish identifies "this is still the active job"
// by comparing f.stop against the channel it was started with, so clearing it here
// would make that comparison always fail and strand the state in PathFollowing.
func (f *Follower) cancelLocked() {
	if f.stopOnce != nil {
		f.stopOnce.Do(func() { close(f.stop) })
	}
}

// finish transitions back to ManualControl once a job completes or is cancelled,
// unless a newer StartPath has already replaced this job's stop channel.
func (f *Follower) finish(stop chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop == stop {
		f.stop = nil
		f.stopOnce = nil
		f.state = ManualControl
	}
}

func buildWaypoints(cfg config.Params, path []geometry.Cell) []waypoint {
	out := make([]waypoint, len(path))
	for i, c := range path {
		out[i] = waypoint{
			Pos:    geometry.CellToWorld(c, cfg.CellSize, cfg.GridW, cfg.GridH),
			Radius: cfg.CorneringRadius,
		}
	}
	out[len(out)-1].Radius = 0
	return out
}

// run is the body of one follow job: spec.md's per-waypoint Align/Drive/SlowDrive/
// ArcTurn sequence, ticking the PID law on every telemetry frame and bailing out to a
// single zero-velocity command the instant stop is closed.
func (f *Follower) run(waypoints []waypoint, stop chan struct{}) {
	defer f.finish(stop)

	var pid pidState
	pid.reset(f.ctx.Pose.Current().Heading)

	for i := 1; i < len(waypoints); i++ {
		target := waypoints[i]
		last := i == len(waypoints)-1

		robot := f.ctx.Pose.Current()
		alignA := headingTo(robot.X, robot.Y, target.Pos)

		for math.Abs(geometry.Wrap(f.ctx.Pose.Current().Heading-alignA)) > f.cfg.AngularPrecision {
			if !f.tick(&pid, 0, alignA, stop) {
				return
			}
		}

		if last {
			for distanceTo(f.ctx.Pose.Current(), target.Pos) > f.cfg.LinearPrecision {
				if !f.tick(&pid, f.cfg.LinearSpeed, alignA, stop) {
					return
				}
			}
			continue
		}

		next := waypoints[i+1]
		turnStartA := alignA
		turnEndA := headingTo(target.Pos.X, target.Pos.Y, next.Pos)
		turnDeltaA := geometry.Wrap(turnEndA - turnStartA)
		turnStartDistance := math.Abs(target.Radius * math.Tan(turnDeltaA/2))
		turnArcLength := math.Abs(target.Radius * turnDeltaA)

		for distanceTo(f.ctx.Pose.Current(), target.Pos) > turnStartDistance+f.cfg.TurningSlowdownDistance {
			if !f.tick(&pid, f.cfg.LinearSpeed, alignA, stop) {
				return
			}
		}

		for distanceTo(f.ctx.Pose.Current(), target.Pos) > f.cfg.LinearPrecision+turnStartDistance {
			if !f.tick(&pid, f.cfg.TurningSpeed, alignA, stop) {
				return
			}
		}

		if turnArcLength != 0 {
			turnProgress := 0.0
			for turnProgress < 1 {
				targetA := turnStartA + turnDeltaA*turnProgress
				robot := f.ctx.Pose.Current()
				if !f.tick(&pid, f.cfg.TurningSpeed, targetA, stop) {
					return
				}
				turnProgress += robot.Speed * f.cfg.DT / turnArcLength
			}
		}
	}

	f.sendZero()
	f.log.Debugw("path following complete")
}

// tick waits for the next telemetry frame (or cancellation), issues one PID-computed
// motor command toward the given target, and reports whether the job should
// continue. On cancellation it emits one zero-velocity command before returning false.
func (f *Follower) tick(pid *pidState, targetV, targetA float64, stop chan struct{}) bool {
	if !f.waitForTelemetry(stop) {
		f.sendZero()
		return false
	}
	robot := f.ctx.Pose.Current()
	cmd := pid.tick(robot.Heading, robot.Speed, targetA, targetV, f.cfg)
	if err := f.sender.Send(cmd); err != nil {
		f.log.Warnw("motor command send failed", "err", err)
	}
	return true
}

// waitForTelemetry blocks until a new telemetry frame has been consumed or stop is
// closed, reporting false in the latter case.
func (f *Follower) waitForTelemetry(stop chan struct{}) bool {
	for {
		select {
		case <-stop:
			return false
		default:
		}
		if f.ctx.Store.ConsumeTelemetryUpdated() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *Follower) sendZero() {
	if err := f.sender.Send(motorcmd.Command{}); err != nil {
		f.log.Warnw("zero-velocity command send failed", "err", err)
	}
}

func headingTo(fromX, fromY float64, to r2.Point) float64 {
	return math.Atan2(to.X-fromX, -(to.Y - fromY))
}

func distanceTo(robot pose.Robot, p r2.Point) float64 {
	return math.Hypot(p.X-robot.X, p.Y-robot.Y)
}
