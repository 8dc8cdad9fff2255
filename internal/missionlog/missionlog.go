// Package missionlog provides per-mission structured JSONL logging.
//
// Each mission gets one JSONL file in a configurable directory. Events
// capture every stage of the Idle→Planning→Navigating cycle: phase
// transitions, motion sends/acks, snapshot spawns, aborts, and mission end.
//
// Design constraints:
//   - All Log methods are nil-safe (no-op on nil receiver) so components
//     don't need nil checks before every log call.
//   - Registry is the sole owner of JSONL persistence; components never
//     open files directly.
package missionlog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventKind labels a single structured event in the mission log.
type EventKind string

const (
	KindMissionBegin  EventKind = "mission_begin"
	KindMissionEnd    EventKind = "mission_end"
	KindPhaseChange   EventKind = "phase_change"
	KindMotionSend    EventKind = "motion_send"
	KindMotionAck     EventKind = "motion_ack"
	KindSnapshotSpawn EventKind = "snapshot_spawn"
	KindAbort         EventKind = "abort"
)

// Event is one JSONL line in the mission log. Fields are omitempty so each
// event only serialises relevant data.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp string    `json:"ts"`

	// mission_begin / mission_end
	MissionID string `json:"mission_id,omitempty"`
	Status    string `json:"status,omitempty"` // "completed" | "aborted" | "timed_out" | "error"
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`

	// phase_change
	FromPhase string `json:"from_phase,omitempty"`
	ToPhase   string `json:"to_phase,omitempty"`

	// motion_send / motion_ack
	CommandID uint32 `json:"command_id,omitempty"`
	Verb      string `json:"verb,omitempty"`
	Value     int    `json:"value,omitempty"`

	// snapshot_spawn
	ObstacleID int `json:"obstacle_id,omitempty"`

	// abort
	ObservedAtPhase string `json:"observed_at_phase,omitempty"`
}

// Log is a handle for writing structured events for one mission.
//
// All methods are nil-safe (no-op when called on a nil *Log); concurrent
// writes are safe (mutex-protected).
type Log struct {
	missionID string
	started   time.Time
	mu        sync.Mutex
	f         *os.File
}

// Registry maps mission IDs to open Logs. It is the sole authority for
// creating and closing mission log files.
type Registry struct {
	dir  string
	mu   sync.Mutex
	logs map[string]*Log
}

// NewRegistry creates a Registry that writes one JSONL file per mission
// under dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, logs: make(map[string]*Log)}
}

// Open creates a new Log for missionID, writes a mission_begin event, and
// registers it. If a log for missionID is already open it returns the
// existing one (idempotent).
func (r *Registry) Open(missionID string) *Log {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.logs[missionID]; ok {
		return l
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		log.Printf("[MISSIONLOG] could not create dir %s: %v", r.dir, err)
		return nil
	}
	path := filepath.Join(r.dir, missionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[MISSIONLOG] could not open %s: %v", path, err)
		return nil
	}

	l := &Log{missionID: missionID, started: time.Now(), f: f}
	r.logs[missionID] = l
	l.write(Event{Kind: KindMissionBegin, MissionID: missionID})
	return l
}

// Close writes a mission_end event, flushes and closes the file, and
// removes the entry from the registry. Safe on a nil *Registry or unknown
// missionID.
func (r *Registry) Close(missionID, status string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	l, ok := r.logs[missionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.logs, missionID)
	r.mu.Unlock()

	l.mu.Lock()
	elapsed := time.Since(l.started).Milliseconds()
	l.mu.Unlock()

	l.write(Event{Kind: KindMissionEnd, MissionID: missionID, Status: status, ElapsedMs: elapsed})

	l.mu.Lock()
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	l.mu.Unlock()
}

// PhaseChange writes a phase_change event.
func (l *Log) PhaseChange(from, to string) {
	if l == nil {
		return
	}
	l.write(Event{Kind: KindPhaseChange, FromPhase: from, ToPhase: to})
}

// MotionSend writes a motion_send event.
func (l *Log) MotionSend(id uint32, verb string, value int) {
	if l == nil {
		return
	}
	l.write(Event{Kind: KindMotionSend, CommandID: id, Verb: verb, Value: value})
}

// MotionAck writes a motion_ack event.
func (l *Log) MotionAck(id uint32) {
	if l == nil {
		return
	}
	l.write(Event{Kind: KindMotionAck, CommandID: id})
}

// SnapshotSpawn writes a snapshot_spawn event.
func (l *Log) SnapshotSpawn(obstacleID int) {
	if l == nil {
		return
	}
	l.write(Event{Kind: KindSnapshotSpawn, ObstacleID: obstacleID})
}

// Abort writes an abort event recording which phase observed it.
func (l *Log) Abort(observedAtPhase string) {
	if l == nil {
		return
	}
	l.write(Event{Kind: KindAbort, ObservedAtPhase: observedAtPhase})
}

func (l *Log) write(e Event) {
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		log.Printf("[MISSIONLOG] marshal event: %v", err)
		return
	}
	if _, err := fmt.Fprintln(l.f, string(b)); err != nil {
		log.Printf("[MISSIONLOG] write event: %v", err)
	}
}
