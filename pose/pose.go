// Package pose maintains the robot's dead-reckoned (x, y, heading, speed) by
// integrating simulator odometry deltas and a yaw-rate gyro.
package pose

import (
	"math"
	"sync"

	"go.viam.com/navstack/config"
)

// Robot is the robot's estimated world-frame pose and speed.
type Robot struct {
	X, Y    float64
	Heading float64
	Speed   float64
}

// Frame is the subset of a telemetry frame the pose estimator consumes: the yaw-rate
// gyro reading, the simulator's previous and current ground-truth position (used only
// to derive a displacement magnitude; navstack never trusts it directly), and the
// signed forward velocity used by the BACKWARDS-selected ds sign.
type Frame struct {
	GyroZ    float64
	PrevX    float64
	PrevY    float64
	CurrX    float64
	CurrY    float64
	Vx       float64
}

// EncoderLinearMultiplier scales the simulator displacement into the encoder's
// reported linear distance.
const EncoderLinearMultiplier = 1.0

// Estimator holds the current Robot pose behind a lock; it is written once per
// telemetry frame by the mapper/telemetry goroutine (T1) and read by the planner
// (T2) and follower (T3).
type Estimator struct {
	mu  sync.RWMutex
	cur Robot
}

// Current returns a copy of the latest estimated pose.
func (e *Estimator) Current() Robot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cur
}

// SetCurrent overwrites the estimate directly, used to seed a known starting pose or
// to relocalize outside the normal per-frame integration.
func (e *Estimator) SetCurrent(r Robot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cur = r
}

// Update folds one telemetry frame into the dead-reckoning estimate and returns the
// new pose, integrating in order: displacement, then heading, then position, then
// speed.
func (e *Estimator) Update(f Frame, cfg config.Params) Robot {
	e.mu.Lock()
	defer e.mu.Unlock()

	dist := math.Hypot(f.CurrX-f.PrevX, f.CurrY-f.PrevY)
	ds := dist * EncoderLinearMultiplier
	if cfg.Backwards && f.Vx < 0 {
		ds = -ds
	}

	e.cur.Heading -= f.GyroZ * cfg.DT
	e.cur.X += ds * math.Sin(e.cur.Heading)
	e.cur.Y -= ds * math.Cos(e.cur.Heading)
	e.cur.Speed = ds / cfg.DT

	return e.cur
}
