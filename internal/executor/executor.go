// Package executor is the Planner/Executor: the mission state machine that
// drives the planner round-trip, walks the returned Plan against the
// motion controller under strict per-command ack discipline, spawns
// Snapshot Workers, and honours abort throughout.
//
// Shaped as a long-lived role with a tight per-step loop and structured
// logging at every stage.
package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrelay/missionctl/internal/bus"
	"github.com/fieldrelay/missionctl/internal/missioncontext"
	"github.com/fieldrelay/missionctl/internal/missionlog"
	"github.com/fieldrelay/missionctl/internal/motionlink"
	"github.com/fieldrelay/missionctl/internal/operator"
	"github.com/fieldrelay/missionctl/internal/planner"
	"github.com/fieldrelay/missionctl/internal/snapshot"
	"github.com/fieldrelay/missionctl/internal/types"
)

const (
	motionAckTimeout = 10 * time.Second
	captureTimeout   = 10 * time.Second
)

// Executor is the Planner/Executor role.
type Executor struct {
	mctx   *missioncontext.Context
	plan   *planner.Client
	link   *motionlink.Link
	sender *operator.Sender
	worker *snapshot.Worker
	logReg *missionlog.Registry
	bus    *bus.Bus
}

// New creates an Executor. b may be nil, in which case bus events are
// silently skipped; only the mission log and operator reports are load-
// bearing.
func New(mctx *missioncontext.Context, plan *planner.Client, link *motionlink.Link, sender *operator.Sender, worker *snapshot.Worker, logReg *missionlog.Registry, b *bus.Bus) *Executor {
	return &Executor{mctx: mctx, plan: plan, link: link, sender: sender, worker: worker, logReg: logReg, bus: b}
}

// publish is a nil-safe wrapper around bus.Publish so the executor doesn't
// need a nil check before every event.
func (e *Executor) publish(kind types.EventKind, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(types.Message{Timestamp: time.Now(), Kind: kind, Payload: payload})
}

// Run drives the Idle→Planning→Navigating→Idle cycle for the process
// lifetime, until ctx is cancelled.
func (e *Executor) Run(ctx context.Context) {
	for {
		obstacles, pose, retrying, ok := e.mctx.AwaitMission(ctx.Done())
		if !ok {
			return
		}
		e.runMission(ctx, obstacles, pose, retrying)
	}
}

func (e *Executor) runMission(ctx context.Context, obstacles []types.WireObstacle, pose types.RobotPose, retrying bool) {
	missionID := uuid.New().String()
	mlog := e.logReg.Open(missionID)
	mlog.PhaseChange(string(types.PhaseIdle), string(types.PhasePlanning))
	e.publish(types.EventPhaseChanged, types.Phase(types.PhasePlanning))
	log.Printf("[EXECUTOR] mission=%s planning, obstacles=%d", missionID, len(obstacles))

	plan, err := e.plan.Plan(ctx, obstacles, pose, retrying)
	if err != nil {
		log.Printf("[EXECUTOR] mission=%s planner failed: %v", missionID, err)
		e.sender.SendText(fmt.Sprintf("Planning failed: %v", err))
		e.mctx.ReturnToIdle()
		mlog.PhaseChange(string(types.PhasePlanning), string(types.PhaseIdle))
		e.publish(types.EventPhaseChanged, types.PhaseIdle)
		e.publish(types.EventMissionEnded, missionID)
		e.logReg.Close(missionID, "error")
		return
	}

	e.mctx.SetPlan(plan)
	mlog.PhaseChange(string(types.PhasePlanning), string(types.PhaseNavigating))
	e.publish(types.EventPhaseChanged, types.PhaseNavigating)
	e.sender.SendText("Plan received.")

	status := e.navigate(ctx, missionID, mlog, plan)

	e.mctx.ReturnToIdle()
	mlog.PhaseChange(string(types.PhaseNavigating), string(types.PhaseIdle))
	e.publish(types.EventPhaseChanged, types.PhaseIdle)
	e.publish(types.EventMissionEnded, missionID)
	e.logReg.Close(missionID, status)
}

// navigate walks the plan's commands in order and returns the terminal
// status string used for the mission log.
func (e *Executor) navigate(ctx context.Context, missionID string, mlog *missionlog.Log, plan types.Plan) string {
	snapshotOrdinal := 0

	for _, cmd := range plan.Commands {
		if e.mctx.CheckAndClearAbort() {
			log.Printf("[EXECUTOR] mission=%s abort observed", missionID)
			e.sender.SendText("Mission aborted.")
			mlog.Abort(string(types.PhaseNavigating))
			e.publish(types.EventAbortObserved, missionID)
			return "aborted"
		}

		switch cmd.Kind {
		case types.CmdMoveForward, types.CmdMoveBackward, types.CmdTurnLeft, types.CmdTurnRight:
			if status, done := e.runMotion(missionID, mlog, cmd); done {
				return status
			}
		case types.CmdSnapshot:
			pos := e.snapPositionFor(missionID, plan, snapshotOrdinal)
			snapshotOrdinal++
			if status, done := e.runSnapshot(ctx, missionID, mlog, cmd.Value, pos); done {
				return status
			}
		default:
			log.Printf("[EXECUTOR] mission=%s unknown command kind %q, skipped", missionID, cmd.Kind)
		}
	}

	e.sender.SendText("Navigation complete.")
	return "completed"
}

// snapPositionFor looks up the ordinal-th SnapPosition, falling back to the
// sentinel pose with a logged warning when the planner returned fewer
// positions than Snapshot commands.
func (e *Executor) snapPositionFor(missionID string, plan types.Plan, ordinal int) types.SnapPosition {
	if ordinal < len(plan.SnapPositions) {
		return plan.SnapPositions[ordinal]
	}
	log.Printf("[EXECUTOR] mission=%s snap position %d missing, using sentinel pose", missionID, ordinal)
	return types.SentinelSnapPosition
}

var verbByKind = map[types.CommandKind]motionlink.Verb{
	types.CmdMoveForward:  motionlink.VerbForward,
	types.CmdMoveBackward: motionlink.VerbBackward,
	types.CmdTurnLeft:     motionlink.VerbTurnLeft,
	types.CmdTurnRight:    motionlink.VerbTurnRight,
}

// runMotion sends one motion command and waits for its ack. done is true
// when Navigating must terminate (error, timeout, or abort); status is the
// mission-log terminal status in that case.
func (e *Executor) runMotion(missionID string, mlog *missionlog.Log, cmd types.Command) (status string, done bool) {
	id := e.mctx.NextCommandID()
	verb := verbByKind[cmd.Kind]

	mlog.MotionSend(id, string(verb), cmd.Value)
	e.publish(types.EventMotionSent, id)
	if err := e.link.Send(id, verb, cmd.Value); err != nil {
		log.Printf("[EXECUTOR] mission=%s motion send failed: %v", missionID, err)
		e.sender.SendText(fmt.Sprintf("Motion send failed: %v", err))
		return "error", true
	}

	timedOut := make(chan struct{})
	timer := time.AfterFunc(motionAckTimeout, func() { close(timedOut) })
	defer timer.Stop()

	acked, aborted := e.mctx.AwaitMotionAck(id, timedOut)
	switch {
	case acked:
		mlog.MotionAck(id)
		e.publish(types.EventMotionAck, id)
		return "", false
	case aborted:
		e.mctx.CheckAndClearAbort()
		log.Printf("[EXECUTOR] mission=%s abort observed awaiting ack id=%d", missionID, id)
		e.sender.SendText("Mission aborted.")
		mlog.Abort(string(types.PhaseNavigating))
		e.publish(types.EventAbortObserved, missionID)
		return "aborted", true
	default:
		log.Printf("[EXECUTOR] mission=%s motion ack id=%d timed out", missionID, id)
		e.sender.SendText("Motion command timed out.")
		return "timed_out", true
	}
}

// runSnapshot spawns a Snapshot Worker and waits for its capture-complete
// signal. done is true when Navigating must terminate.
func (e *Executor) runSnapshot(ctx context.Context, missionID string, mlog *missionlog.Log, obstacleID int, pos types.SnapPosition) (status string, done bool) {
	mlog.SnapshotSpawn(obstacleID)
	e.publish(types.EventSnapshotSpawn, obstacleID)
	e.worker.Spawn(ctx, obstacleID, pos)

	timedOut := make(chan struct{})
	timer := time.AfterFunc(captureTimeout, func() { close(timedOut) })
	defer timer.Stop()

	switch e.mctx.AwaitCapture(obstacleID, timedOut) {
	case missioncontext.CaptureSucceeded:
		return "", false
	case missioncontext.CaptureFailed:
		log.Printf("[EXECUTOR] mission=%s capture failed for obstacle=%d", missionID, obstacleID)
		e.sender.SendText("Capture failed.")
		return "error", true
	case missioncontext.CaptureAborted:
		e.mctx.CheckAndClearAbort()
		log.Printf("[EXECUTOR] mission=%s abort observed awaiting capture obstacle=%d", missionID, obstacleID)
		e.sender.SendText("Mission aborted.")
		mlog.Abort(string(types.PhaseNavigating))
		e.publish(types.EventAbortObserved, missionID)
		return "aborted", true
	default: // CaptureTimedOut
		log.Printf("[EXECUTOR] mission=%s capture timed out for obstacle=%d", missionID, obstacleID)
		e.sender.SendText("Capture timed out.")
		return "timed_out", true
	}
}
