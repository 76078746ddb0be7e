package follower

import (
	"go.viam.com/navstack/config"
	"go.viam.com/navstack/internal/geometry"
	"go.viam.com/navstack/motorcmd"
)

// pidState holds the one term of the control law that needs history across ticks:
// the previous heading, used to derive the turning rate for the D term.
type pidState struct {
	prevHeading float64
	primed      bool
}

// reset seeds prevHeading so the first tick's D term doesn't see a spurious jump from
// a zero-valued default.
func (s *pidState) reset(heading float64) {
	s.prevHeading = heading
	s.primed = true
}

// tick computes one motor command from the current heading/speed against a target
// heading and target linear speed, and advances the D-term history. Turning output is
// a clamped heading-error P term plus an unclamped turn-rate D term; driving output is
// a clamped speed-error P term, forced to zero when the target speed is zero (a
// stopped waypoint phase commands no forward drive correction). When cfg.Backwards is
// set, the linear component is negated to match the physically reversed drivetrain.
func (s *pidState) tick(heading, speed, targetA, targetV float64, cfg config.Params) motorcmd.Command {
	if !s.primed {
		s.reset(heading)
	}

	aErr := geometry.Wrap(targetA - heading)
	aRate := geometry.Wrap(heading-s.prevHeading) / cfg.DT
	s.prevHeading = heading

	turningP := geometry.Clamp(-aErr*cfg.TurningKp, -cfg.TurningLimit, cfg.TurningLimit)
	turningD := aRate * cfg.TurningKd

	var drivingP float64
	if targetV != 0 {
		drivingP = geometry.Clamp(-(speed-targetV)*cfg.DrivingKp, -cfg.DrivingLimit, cfg.DrivingLimit)
	}

	cmd := motorcmd.Command{V: drivingP, W: turningP + turningD}
	if cfg.Backwards {
		cmd.V = -cmd.V
	}
	return cmd
}
