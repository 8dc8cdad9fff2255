package missionlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry_OpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	l1 := r.Open("mission-1")
	l2 := r.Open("mission-1")
	if l1 != l2 {
		t.Error("expected Open to return the same Log for an already-open mission")
	}
	r.Close("mission-1", "completed")
}

func TestRegistry_OpenWritesMissionBegin(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)
	r.Open("mission-2")
	r.Close("mission-2", "completed")

	events := readEvents(t, filepath.Join(dir, "mission-2.jsonl"))
	if len(events) < 2 {
		t.Fatalf("expected at least 2 events, got %d", len(events))
	}
	if events[0].Kind != KindMissionBegin || events[0].MissionID != "mission-2" {
		t.Errorf("first event = %+v, want mission_begin", events[0])
	}
	last := events[len(events)-1]
	if last.Kind != KindMissionEnd || last.Status != "completed" {
		t.Errorf("last event = %+v, want mission_end/completed", last)
	}
}

func TestLog_RecordsAllEventKinds(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)
	l := r.Open("mission-3")

	l.PhaseChange("Idle", "Planning")
	l.MotionSend(1, "FWD", 10)
	l.MotionAck(1)
	l.SnapshotSpawn(5)
	l.Abort("Navigating")
	r.Close("mission-3", "aborted")

	events := readEvents(t, filepath.Join(dir, "mission-3.jsonl"))
	kinds := make(map[EventKind]bool)
	for _, e := range events {
		kinds[e.Kind] = true
	}
	for _, want := range []EventKind{KindMissionBegin, KindPhaseChange, KindMotionSend, KindMotionAck, KindSnapshotSpawn, KindAbort, KindMissionEnd} {
		if !kinds[want] {
			t.Errorf("missing event kind %q in %+v", want, events)
		}
	}
}

func TestLog_NilSafe(t *testing.T) {
	var l *Log
	// None of these should panic on a nil receiver.
	l.PhaseChange("Idle", "Planning")
	l.MotionSend(1, "FWD", 10)
	l.MotionAck(1)
	l.SnapshotSpawn(1)
	l.Abort("Navigating")
}

func TestRegistry_CloseUnknownMissionIsNoop(t *testing.T) {
	r := NewRegistry(t.TempDir())
	r.Close("never-opened", "completed") // must not panic
}

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal event line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return events
}
