// Package missioncontext holds the Mission Context: the shared mutable
// state the Operator Listener, Planner/Executor, Motion-Controller
// Listener, and Snapshot Workers all coordinate through.
//
// Three locks, each paired with one condition variable, protect disjoint
// concerns:
//
//   - ctxMu / newTaskCond guards phase, the plan buffer, and abortRequested.
//   - ackMu / ackCond guards lastMotionAckID.
//   - captureMu / captureCond guards lastCaptureID.
//
// AwaitMotionAck and AwaitCapture briefly take ctxMu while holding ackMu or
// captureMu, to read abortRequested; nothing takes ackMu or captureMu while
// holding ctxMu, so the acquisition order is fixed and deadlock-free.
package missioncontext

import (
	"sync"

	"github.com/fieldrelay/missionctl/internal/types"
)

// Context is the Mission Context. It is created once at process start and
// lives until shutdown; one Context backs the whole Idle→Planning→
// Navigating cycle, repeated for the process lifetime.
type Context struct {
	ctxMu        sync.Mutex
	newTaskCond  *sync.Cond
	phase        types.Phase
	plan         types.Plan
	startPose    types.RobotPose
	obstacles    []types.WireObstacle
	retrying     bool
	abortRequested bool
	newMapReceived bool
	nextCmdID    uint32 // per-mission counter, reset to 1 on each Idle→Planning transition

	ackMu           sync.Mutex
	ackCond         *sync.Cond
	lastMotionAckID uint32

	captureMu       sync.Mutex
	captureCond     *sync.Cond
	lastCaptureID   int
}

// New creates a Context in Idle phase.
func New() *Context {
	c := &Context{phase: types.PhaseIdle, lastCaptureID: noCapture}
	c.newTaskCond = sync.NewCond(&c.ctxMu)
	c.ackCond = sync.NewCond(&c.ackMu)
	c.captureCond = sync.NewCond(&c.captureMu)
	return c
}

// Phase returns the current phase.
func (c *Context) Phase() types.Phase {
	c.ctxMu.Lock()
	defer c.ctxMu.Unlock()
	return c.phase
}

// TryAcceptMission stores an incoming map and starting pose and raises
// newMapReceived, iff the current phase is Idle. Returns false (and leaves
// everything unchanged) if a mission is already in progress; the caller
// must report "Robot is busy" to the operator.
func (c *Context) TryAcceptMission(obstacles []types.WireObstacle, pose types.RobotPose, retrying bool) bool {
	c.ctxMu.Lock()
	defer c.ctxMu.Unlock()
	if c.phase != types.PhaseIdle {
		return false
	}
	c.obstacles = obstacles
	c.startPose = pose
	c.retrying = retrying
	c.newMapReceived = true
	c.newTaskCond.Signal()
	return true
}

// RequestAbort raises abortRequested from any phase and wakes anything
// waiting on the new-task, ack, or capture conditions so it can observe it.
func (c *Context) RequestAbort() {
	c.ctxMu.Lock()
	c.abortRequested = true
	c.newTaskCond.Broadcast()
	c.ctxMu.Unlock()

	c.ackMu.Lock()
	c.ackCond.Broadcast()
	c.ackMu.Unlock()

	c.captureMu.Lock()
	c.captureCond.Broadcast()
	c.captureMu.Unlock()
}

// AwaitMission blocks until a new mission has been accepted (newMapReceived)
// or ctx is cancelled via done. On success it consumes newMapReceived,
// transitions Idle→Planning, resets the per-mission command-id counter, and
// returns the stored obstacles/pose/retrying flag.
func (c *Context) AwaitMission(done <-chan struct{}) (obstacles []types.WireObstacle, pose types.RobotPose, retrying bool, ok bool) {
	c.ctxMu.Lock()
	defer c.ctxMu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-done:
			c.ctxMu.Lock()
			c.newTaskCond.Broadcast()
			c.ctxMu.Unlock()
		case <-stop:
		}
	}()

	for c.phase == types.PhaseIdle && !c.newMapReceived {
		select {
		case <-done:
			return nil, types.RobotPose{}, false, false
		default:
		}
		c.newTaskCond.Wait()
	}
	if !c.newMapReceived {
		return nil, types.RobotPose{}, false, false
	}
	c.newMapReceived = false
	c.phase = types.PhasePlanning
	c.nextCmdID = 1
	return c.obstacles, c.startPose, c.retrying, true
}

// SetPlan stores the parsed Plan on a successful planner round-trip and
// transitions Planning→Navigating.
func (c *Context) SetPlan(p types.Plan) {
	c.ctxMu.Lock()
	defer c.ctxMu.Unlock()
	c.plan = p
	c.phase = types.PhaseNavigating
}

// ReturnToIdle transitions back to Idle unconditionally. Used on planner
// failure, completed navigation, abort, or timeout.
func (c *Context) ReturnToIdle() {
	c.ctxMu.Lock()
	defer c.ctxMu.Unlock()
	c.phase = types.PhaseIdle
	c.plan = types.Plan{}
}

// CheckAndClearAbort reports whether abortRequested is set and, if so,
// clears it. Abort is only consumed at abort-observation points, after
// which it is cleared.
func (c *Context) CheckAndClearAbort() bool {
	c.ctxMu.Lock()
	defer c.ctxMu.Unlock()
	if c.abortRequested {
		c.abortRequested = false
		return true
	}
	return false
}

// NextCommandID allocates the next monotonically increasing mission-scoped
// command id, starting at 1 for each mission.
func (c *Context) NextCommandID() uint32 {
	c.ctxMu.Lock()
	defer c.ctxMu.Unlock()
	id := c.nextCmdID
	c.nextCmdID++
	return id
}

// ---------------------------------------------------------------------------
// Motion ack register (ackMu / ackCond)
// ---------------------------------------------------------------------------

// RecordMotionAck overwrites lastMotionAckID and wakes any waiter. It is
// monotonically overwritten, never queued.
func (c *Context) RecordMotionAck(id uint32) {
	c.ackMu.Lock()
	c.lastMotionAckID = id
	c.ackCond.Signal()
	c.ackMu.Unlock()
}

// AwaitMotionAck blocks until lastMotionAckID == id, abortRequested is set,
// or timedOut fires. The wait is interruptible and re-checks both
// predicates on every wakeup (guards against spurious wakeups).
func (c *Context) AwaitMotionAck(id uint32, timedOut <-chan struct{}) (acked bool, aborted bool) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-timedOut:
			c.ackMu.Lock()
			c.ackCond.Broadcast()
			c.ackMu.Unlock()
		case <-stop:
		}
	}()

	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	for {
		if c.lastMotionAckID == id {
			return true, false
		}
		if c.abortRequestedSnapshot() {
			return false, true
		}
		select {
		case <-timedOut:
			return false, false
		default:
		}
		c.ackCond.Wait()
	}
}

// abortRequestedSnapshot reads abortRequested under ctxMu. Called while
// holding ackMu/captureMu, which is safe: the two locks are never held by
// any other goroutine at the same time the other is being acquired here,
// since RequestAbort takes them one at a time and releases before moving on.
func (c *Context) abortRequestedSnapshot() bool {
	c.ctxMu.Lock()
	defer c.ctxMu.Unlock()
	return c.abortRequested
}

// ---------------------------------------------------------------------------
// Capture register (captureMu / captureCond)
// ---------------------------------------------------------------------------

// RecordCapture overwrites lastCaptureID and wakes any waiter. 0 signals
// capture failure.
func (c *Context) RecordCapture(obstacleID int) {
	c.captureMu.Lock()
	c.lastCaptureID = obstacleID
	c.captureCond.Signal()
	c.captureMu.Unlock()
}

// noCapture marks the capture register as holding no unconsumed result.
const noCapture = -1

// AwaitCapture blocks until lastCaptureID == obstacleID (success),
// lastCaptureID == 0 (failure), abortRequested is set, or timedOut fires.
// A success or failure result is consumed: the register is reset to
// noCapture before returning.
func (c *Context) AwaitCapture(obstacleID int, timedOut <-chan struct{}) (status CaptureStatus) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-timedOut:
			c.captureMu.Lock()
			c.captureCond.Broadcast()
			c.captureMu.Unlock()
		case <-stop:
		}
	}()

	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	for {
		if c.lastCaptureID == obstacleID {
			c.lastCaptureID = noCapture
			return CaptureSucceeded
		}
		if c.lastCaptureID == 0 {
			c.lastCaptureID = noCapture
			return CaptureFailed
		}
		if c.abortRequestedSnapshot() {
			return CaptureAborted
		}
		select {
		case <-timedOut:
			return CaptureTimedOut
		default:
		}
		c.captureCond.Wait()
	}
}

// CaptureStatus is the outcome of AwaitCapture.
type CaptureStatus int

const (
	CaptureSucceeded CaptureStatus = iota
	CaptureFailed
	CaptureAborted
	CaptureTimedOut
)
