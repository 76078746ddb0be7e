// Command navserver is the navigation stack's process entrypoint: it wires the grid
// store, pose estimator, mapper, planner, and follower into a single navcontext.Context
// and runs the telemetry/mapper, planner, and follower tasks as supervised goroutines
// until it is asked to shut down or telemetry ingress fails.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/navstack/config"
	"go.viam.com/navstack/follower"
	"go.viam.com/navstack/gridstore"
	"go.viam.com/navstack/internal/geometry"
	"go.viam.com/navstack/internal/navcontext"
	"go.viam.com/navstack/logging"
	"go.viam.com/navstack/mapper"
	"go.viam.com/navstack/motorcmd"
	"go.viam.com/navstack/planner"
	"go.viam.com/navstack/pose"
	"go.viam.com/navstack/telemetry"
)

// heartbeatEvery is the telemetry-frame interval at which T1 logs an Infow summary,
// per SPEC_FULL.md §9.1's carried-over heartbeat.
const heartbeatEvery = 100

func main() {
	log := logging.NewLogger("navstack")

	if err := run(log); err != nil {
		log.Errorw("navserver exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log logging.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	nc := navcontext.New(cfg, log)
	goalPoint := r2.Point{X: cfg.GoalX, Y: cfg.GoalY}
	if goal, ok := geometry.WorldToCell(goalPoint, cfg.CellSize, cfg.GridW, cfg.GridH); ok {
		nc.SetGoal(goal)
	} else {
		log.Warnw("configured goal falls outside the grid, planner will idle", "goal_x", cfg.GoalX, "goal_y", cfg.GoalY)
	}

	telListener, err := telemetry.Listen(cfg.TelHost, cfg.TelPort)
	if err != nil {
		return errors.Wrap(err, "starting telemetry listener")
	}
	defer telListener.Close()

	// Telemetry accept and motor command dial are independent blocking socket
	// operations; bring them up concurrently with errgroup rather than paying their
	// latencies back to back.
	var cmdSender *motorcmd.Sender
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("waiting for telemetry connection", "host", cfg.TelHost, "port", cfg.TelPort)
		if err := telListener.Accept(gctx); err != nil {
			return errors.Wrap(err, "accepting telemetry connection")
		}
		log.Infow("telemetry connected")
		return nil
	})
	g.Go(func() error {
		sender, err := motorcmd.Dial(cfg.CmdHost, cfg.CmdPort)
		if err != nil {
			return errors.Wrap(err, "dialing motor command socket")
		}
		cmdSender = sender
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	defer cmdSender.Close()

	occ := gridstore.NewOccupancy(cfg.GridW, cfg.GridH)
	m := mapper.New(nc.Store, occ, log.Sublogger("mapper"))
	pl := planner.New(nc)
	fo := follower.New(nc, cmdSender)

	ingressErr := make(chan error, 1)

	// T2 (planner) and the path-watcher bridging published paths to the follower (T3's
	// input) run under one supervised worker: both are cheap, long-lived loops that
	// must stop together on shutdown.
	workers := goutils.NewBackgroundStoppableWorkers(func(workerCtx context.Context) {
		goutils.PanicCapturingGo(func() {
			pl.Run(workerCtx)
		})
		runPathWatcher(workerCtx, nc.Store, fo)
	})
	defer workers.Stop()

	goutils.PanicCapturingGo(func() {
		ingressErr <- runIngress(ctx, telListener, nc, m, cfg, log.Sublogger("telemetry"))
	})

	select {
	case <-ctx.Done():
		fo.Stop()
		log.Infow("shutting down on signal")
		return nil
	case err := <-ingressErr:
		fo.Stop()
		return err
	}
}

// runIngress is T1: it blocks reading telemetry frames, folds each into the pose
// estimate and occupancy/planning grids, and signals the follower's tick. A short read
// is fatal to the process, per spec.md §7.
func runIngress(
	ctx context.Context,
	listener *telemetry.Listener,
	nc *navcontext.Context,
	m *mapper.Mapper,
	cfg config.Params,
	log logging.Logger,
) error {
	frames := 0
	prevX, prevY := 0.0, 0.0
	havePrev := false
	for ctx.Err() == nil {
		frame, err := listener.Next()
		if err != nil {
			return errors.Wrap(err, "telemetry ingress")
		}

		if !havePrev {
			prevX, prevY = frame.PoseX, frame.PoseY
			havePrev = true
		}
		poseFrame := pose.Frame{
			GyroZ: frame.GyroZ,
			PrevX: prevX,
			PrevY: prevY,
			CurrX: frame.PoseX,
			CurrY: frame.PoseY,
			Vx:    frame.VelX,
		}
		prevX, prevY = frame.PoseX, frame.PoseY
		robot := nc.Pose.Update(poseFrame, cfg)

		m.Tick(frame, robot, cfg)
		nc.Store.SetTelemetryUpdated()

		frames++
		log.Debugw("telemetry frame processed", "frame", frames, "x", robot.X, "y", robot.Y, "heading", robot.Heading)
		if frames%heartbeatEvery == 0 {
			log.Infow("telemetry heartbeat", "frames", frames, "x", robot.X, "y", robot.Y, "speed", robot.Speed)
		}
	}
	return ctx.Err()
}

// runPathWatcher is the bridge between the planner's publish slot and the follower's
// StartPath entry point: it polls gridstore.Store.PathVersion and hands each freshly
// published path to the follower, exactly the "consumes the published path" role
// spec.md §2 assigns the Path Follower.
func runPathWatcher(ctx context.Context, store *gridstore.Store, fo *follower.Follower) {
	var lastVersion uint64
	for ctx.Err() == nil {
		if v := store.PathVersion(); v != lastVersion {
			lastVersion = v
			_, path := store.ReadPath()
			fo.StartPath(path)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
