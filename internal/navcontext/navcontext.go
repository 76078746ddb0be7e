// Package navcontext bundles the shared state and configuration every task in the
// navigation stack touches, replacing scattered global state with one value
// constructed at startup and passed into each task's constructor.
package navcontext

import (
	"sync"

	"go.viam.com/navstack/config"
	"go.viam.com/navstack/gridstore"
	"go.viam.com/navstack/internal/geometry"
	"go.viam.com/navstack/logging"
	"go.viam.com/navstack/pose"
)

// Context holds the pieces of shared state the mapper, planner, and follower tasks
// read or write concurrently.
type Context struct {
	Store  *gridstore.Store
	Pose   *pose.Estimator
	Config config.Params
	Log    logging.Logger

	goalMu   sync.RWMutex
	goal     geometry.Cell
	haveGoal bool
}

// New constructs a Context with a fresh Store sized by cfg and an idle Estimator.
func New(cfg config.Params, log logging.Logger) *Context {
	return &Context{
		Store:  gridstore.NewStore(cfg.GridW, cfg.GridH),
		Pose:   &pose.Estimator{},
		Config: cfg,
		Log:    log,
	}
}

// SetGoal installs the active planning goal cell.
func (c *Context) SetGoal(cell geometry.Cell) {
	c.goalMu.Lock()
	defer c.goalMu.Unlock()
	c.goal = cell
	c.haveGoal = true
}

// Goal returns the active planning goal cell, or ok=false if none has been set yet.
func (c *Context) Goal() (geometry.Cell, bool) {
	c.goalMu.RLock()
	defer c.goalMu.RUnlock()
	return c.goal, c.haveGoal
}
