// Package config reads navstack's environment-driven parameters: the telemetry/motor
// socket endpoints and the grid/physics constants. There is no config file to watch
// (navstack runs as a single fixed binary), so this applies a typed-getter-with-default
// idiom to os.Getenv instead of a JSON attribute map.
package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Params holds every environment-tunable parameter navstack reads at startup.
type Params struct {
	TelHost string
	TelPort int
	CmdHost string
	CmdPort int

	GridW    int
	GridH    int
	CellSize float64
	DT       float64

	LidarMaxRange float64
	RInflate      int
	SensorBeams   int
	SensorSpanDeg float64

	Backwards     bool
	Visualization bool

	// GoalX, GoalY is the initial planning goal in world units. Real deployments feed
	// this from a static waypoint script (out of scope here, spec.md §1); navserver
	// reads it as a plain env-driven stand-in so the planner has a goal to seed.
	GoalX float64
	GoalY float64

	LinearSpeed             float64
	TurningSpeed            float64
	TurningSlowdownDistance float64
	LinearPrecision         float64
	AngularPrecision        float64
	CorneringRadius         float64

	TurningKp    float64
	TurningLimit float64
	TurningKd    float64
	DrivingKp    float64
	DrivingLimit float64
}

// Default returns navstack's compile-time parameter defaults.
func Default() Params {
	return Params{
		TelHost: "0.0.0.0",
		TelPort: 5600,
		CmdHost: "127.0.0.1",
		CmdPort: 5555,

		GridW:    1000,
		GridH:    1000,
		CellSize: 0.02,
		DT:       0.05,

		LidarMaxRange: 8,
		RInflate:      10,
		SensorBeams:   360,
		SensorSpanDeg: 90,

		Backwards:     false,
		Visualization: false,

		GoalX: 0,
		GoalY: 0,

		LinearSpeed:             1.0,
		TurningSpeed:            0.3,
		TurningSlowdownDistance: 0.5,
		LinearPrecision:         0.1,
		AngularPrecision:        0.1,
		CorneringRadius:         0.3,

		TurningKp:    12.0,
		TurningLimit: 3.0,
		TurningKd:    6.0,
		DrivingKp:    50.0,
		DrivingLimit: 1.0,
	}
}

// Load reads Params from the environment, falling back to Default() for any variable
// that is unset or empty. A variable that is set but fails to parse makes Load return
// an error naming it.
func Load() (Params, error) {
	p := Default()

	p.TelHost = getString("TEL_HOST", p.TelHost)
	p.CmdHost = getString("CMD_HOST", p.CmdHost)

	var err error
	if p.TelPort, err = getInt("TEL_PORT", p.TelPort); err != nil {
		return Params{}, errors.Wrap(err, "TEL_PORT")
	}
	if p.CmdPort, err = getInt("CMD_PORT", p.CmdPort); err != nil {
		return Params{}, errors.Wrap(err, "CMD_PORT")
	}
	if p.GridW, err = getInt("GRID_W", p.GridW); err != nil {
		return Params{}, errors.Wrap(err, "GRID_W")
	}
	if p.GridH, err = getInt("GRID_H", p.GridH); err != nil {
		return Params{}, errors.Wrap(err, "GRID_H")
	}
	if p.RInflate, err = getInt("R_INFLATE", p.RInflate); err != nil {
		return Params{}, errors.Wrap(err, "R_INFLATE")
	}
	if p.CellSize, err = getFloat("CELL_SIZE", p.CellSize); err != nil {
		return Params{}, errors.Wrap(err, "CELL_SIZE")
	}
	if p.DT, err = getFloat("DT", p.DT); err != nil {
		return Params{}, errors.Wrap(err, "DT")
	}
	if p.LidarMaxRange, err = getFloat("LIDAR_MAX_RANGE", p.LidarMaxRange); err != nil {
		return Params{}, errors.Wrap(err, "LIDAR_MAX_RANGE")
	}
	if p.Backwards, err = getBool("BACKWARDS", p.Backwards); err != nil {
		return Params{}, errors.Wrap(err, "BACKWARDS")
	}
	if p.Visualization, err = getBool("VISUALIZATION", p.Visualization); err != nil {
		return Params{}, errors.Wrap(err, "VISUALIZATION")
	}
	if p.GoalX, err = getFloat("GOAL_X", p.GoalX); err != nil {
		return Params{}, errors.Wrap(err, "GOAL_X")
	}
	if p.GoalY, err = getFloat("GOAL_Y", p.GoalY); err != nil {
		return Params{}, errors.Wrap(err, "GOAL_Y")
	}

	return p, nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %q as int", v)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %q as float64", v)
	}
	return f, nil
}

func getBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "parsing %q as bool", v)
	}
	return b, nil
}
