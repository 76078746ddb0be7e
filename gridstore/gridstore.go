// Package gridstore owns the shared spatial state of the navigation stack: the
// occupancy grid, the derived planning grid, and the planner's published path
// artifacts. It mediates all cross-goroutine access: the planning grid and its
// version are protected by a mutex and condition variable so the planner can block
// efficiently for change notifications; the path-publish slot is protected by a
// separate lock so the planner never blocks the follower behind its own writes (or
// vice versa).
package gridstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"go.viam.com/navstack/internal/geometry"
)

// CellState is the tri-state occupancy value tracked per grid cell.
type CellState byte

// The three occupancy states. Initialized Unknown; transitions to Free or Occupied are
// made by scans and Free<->Occupied transitions are allowed thereafter.
const (
	Unknown CellState = iota
	Occupied
	Free
)

// Occupancy is the mapper's source-of-truth grid.
type Occupancy struct {
	W, H  int
	Cells []CellState
}

// NewOccupancy allocates a w x h grid, every cell Unknown.
func NewOccupancy(w, h int) *Occupancy {
	return &Occupancy{W: w, H: h, Cells: make([]CellState, w*h)}
}

// Get returns the state of cell c, or Unknown if out of bounds.
func (o *Occupancy) Get(c geometry.Cell) CellState {
	if !c.InBounds(o.W, o.H) {
		return Unknown
	}
	return o.Cells[c.Y*o.W+c.X]
}

// Set writes the state of cell c. Out-of-bounds writes are silently dropped: scan
// endpoints falling outside the grid are simply not recorded.
func (o *Occupancy) Set(c geometry.Cell, s CellState) {
	if !c.InBounds(o.W, o.H) {
		return
	}
	o.Cells[c.Y*o.W+c.X] = s
}

// Clone returns a deep copy, used by the mapper to build the next planning-grid
// snapshot without holding a lock while it dilates.
func (o *Occupancy) Clone() *Occupancy {
	cells := make([]CellState, len(o.Cells))
	copy(cells, o.Cells)
	return &Occupancy{W: o.W, H: o.H, Cells: cells}
}

// Planning is the binary, safety-inflated grid the planner searches over. Zero means
// traversable; nonzero means blocked.
type Planning struct {
	W, H  int
	Cells []byte
}

// NewPlanning allocates a w x h all-traversable planning grid.
func NewPlanning(w, h int) *Planning {
	return &Planning{W: w, H: h, Cells: make([]byte, w*h)}
}

// Blocked reports whether cell c is blocked, treating out-of-bounds as blocked.
func (p *Planning) Blocked(c geometry.Cell) bool {
	if !c.InBounds(p.W, p.H) {
		return true
	}
	return p.Cells[c.Y*p.W+c.X] != 0
}

// Store is the shared state mediating between the mapper, planner, and follower
// goroutines.
type Store struct {
	mu      sync.Mutex
	cond    *sync.Cond
	version uint64
	planning *Planning

	pathMu      sync.RWMutex
	pathVersion uint64
	costField   []byte
	path        []geometry.Cell

	telemetryUpdated atomic.Bool
}

// NewStore constructs a Store with an empty (all-traversable) w x h planning grid.
func NewStore(w, h int) *Store {
	s := &Store{planning: NewPlanning(w, h)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// SnapshotPlanning returns an immutable snapshot of the planning grid and the version
// it was published at. Safe to call concurrently with PublishPlanning.
func (s *Store) SnapshotPlanning() (*Planning, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planning, s.version
}

// PublishPlanning atomically replaces the planning grid, bumps the version, and wakes
// every goroutine blocked in WaitForChange. The swap strictly precedes the notify.
func (s *Store) PublishPlanning(p *Planning) {
	s.mu.Lock()
	s.planning = p
	s.version++
	s.mu.Unlock()
	s.cond.Broadcast()
}

// WaitForChange blocks until the planning-grid version advances past last, the
// timeout elapses, or ctx is done. It returns the (possibly unchanged) current
// version. A sync.Cond has no timeout or context support of its own, so a helper
// goroutine wakes the waiter once the deadline or ctx.Done() fires; it exits as soon
// as it does either, never leaking past this call.
func (s *Store) WaitForChange(ctx context.Context, last uint64, timeout time.Duration) uint64 {
	deadline := time.Now().Add(timeout)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		case <-stop:
			return
		}
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.version == last && ctx.Err() == nil && time.Now().Before(deadline) {
		s.cond.Wait()
	}
	return s.version
}

// PublishPath atomically replaces the planner's published cost field and smoothed
// path, under a lock dedicated to the path slot so the follower is never blocked
// behind the planning-grid lock.
func (s *Store) PublishPath(cost []byte, path []geometry.Cell) {
	s.pathMu.Lock()
	defer s.pathMu.Unlock()
	s.costField = cost
	s.path = path
	s.pathVersion++
}

// ReadPath returns the latest published cost field and path. Readers see either the
// old pair or the new pair, never a mix.
func (s *Store) ReadPath() ([]byte, []geometry.Cell) {
	s.pathMu.RLock()
	defer s.pathMu.RUnlock()
	return s.costField, s.path
}

// PathVersion returns the number of times PublishPath has been called. A caller that
// wants to react only to new paths (e.g. handing each fresh publish to the follower)
// can poll this alongside ReadPath instead of diffing path contents itself.
func (s *Store) PathVersion() uint64 {
	s.pathMu.RLock()
	defer s.pathMu.RUnlock()
	return s.pathVersion
}

// SetTelemetryUpdated and ConsumeTelemetryUpdated implement a one-shot flag written
// once per telemetry frame by the mapper's goroutine and consumed (and reset) by the
// follower as its tick signal.
func (s *Store) SetTelemetryUpdated() {
	s.telemetryUpdated.Store(true)
}

// ConsumeTelemetryUpdated reports whether a frame has arrived since the last call,
// resetting the flag atomically.
func (s *Store) ConsumeTelemetryUpdated() bool {
	return s.telemetryUpdated.CompareAndSwap(true, false)
}
