// Package snapshot is the Snapshot Worker: a detached, fire-and-forget
// goroutine per obstacle that captures, reports the capture outcome back to
// the Mission Context, and then independently uploads and classifies in the
// background. Logging here uses log/slog with key-value pairs rather than
// the log.Printf("[TAG] ...") style used elsewhere, reserved for this one
// async fire-and-forget component.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldrelay/missionctl/internal/camera"
	"github.com/fieldrelay/missionctl/internal/missioncontext"
	"github.com/fieldrelay/missionctl/internal/operator"
	"github.com/fieldrelay/missionctl/internal/recognizer"
	"github.com/fieldrelay/missionctl/internal/types"
)

// Worker spawns detached per-obstacle capture+upload+classify lifecycles.
type Worker struct {
	mctx     *missioncontext.Context
	capturer camera.Capturer
	sender   *operator.Sender
	recog    *recognizer.Client
}

// New creates a Worker.
func New(mctx *missioncontext.Context, capturer camera.Capturer, sender *operator.Sender, recog *recognizer.Client) *Worker {
	return &Worker{mctx: mctx, capturer: capturer, sender: sender, recog: recog}
}

// Spawn launches one detached snapshot lifecycle for obstacleID at pose.
// It returns immediately; the lifecycle runs on its own goroutine and is
// never cancelled once started. A snapshot lifecycle always runs to
// completion, even if the mission that spawned it has already moved on.
func (w *Worker) Spawn(ctx context.Context, obstacleID int, pose types.SnapPosition) {
	go w.run(ctx, obstacleID, pose)
}

func (w *Worker) run(ctx context.Context, obstacleID int, pose types.SnapPosition) {
	slog.Info("snapshot worker started", "obstacle_id", obstacleID, "pose", pose)

	path, err := w.capturer.Capture(ctx, obstacleID)
	if err != nil {
		slog.Warn("capture failed", "obstacle_id", obstacleID, "err", err)
		w.mctx.RecordCapture(0)
		return
	}
	w.mctx.RecordCapture(obstacleID)
	slog.Info("capture complete", "obstacle_id", obstacleID, "path", path)

	robotMsg := robotPositionMessage(pose)
	w.sender.SendText(robotMsg)

	detections, err := w.recog.Detect(ctx, path, obstacleID)
	if err != nil {
		slog.Warn("recogniser upload failed, navigation continues", "obstacle_id", obstacleID, "err", err)
		return
	}

	detection, ok := recognizer.First(detections)
	if !ok {
		slog.Info("no resolvable classification", "obstacle_id", obstacleID)
		return
	}
	w.sender.SendText(targetMessage(obstacleID, detection.ResolvedID))
	slog.Info("classification relayed", "obstacle_id", obstacleID, "img_id", detection.ResolvedID, "class_label", detection.ClassLabel)
}

var dirNames = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// robotPositionMessage composes "ROBOT,<x+1>,<y+1>,<DIR>": 1-indexed
// coordinates and an 8-way compass direction string.
func robotPositionMessage(pose types.SnapPosition) string {
	dir := "U"
	if pose.D >= 0 && int(pose.D) < len(dirNames) {
		dir = dirNames[pose.D]
	}
	return fmt.Sprintf("ROBOT,%d,%d,%s", pose.X+1, pose.Y+1, dir)
}

func targetMessage(obstacleID, imgID int) string {
	return fmt.Sprintf("TARGET,%d,%d", obstacleID, imgID)
}
